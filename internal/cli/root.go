// Package cli implements the menubot command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/menu-bot/internal/config"
	"github.com/Sternrassler/menu-bot/pkg/logging"
)

// RootOptions holds global flags and the loaded configuration.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Version string

	// Config is loaded from the environment in PersistentPreRunE and then
	// overridden by any flags set on the command line.
	Config config.Config

	storeSlug  string
	apiBaseURL string
	logLevel   string
	pretty     bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:   "menubot",
		Short: "Telegram menu browser for a single store",
		Long: `menubot serves a store's public catalog as a Telegram chat menu.

Settings come from the environment (BOT_TOKEN, API_BASE_URL, STORE_SLUG,
CACHE_TTL, ...). Flags override the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.storeSlug, "store", "", "store slug (overrides STORE_SLUG)")
	cmd.PersistentFlags().StringVar(&opts.apiBaseURL, "api-base-url", "", "catalog API base URL (overrides API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "human-readable logs (overrides LOG_PRETTY)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.StoreSlug = o.storeSlug
	}
	if flags.Changed("api-base-url") {
		cfg.APIBaseURL = o.apiBaseURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("pretty") {
		cfg.LogPretty = o.pretty
	}
	if o.Verbose {
		cfg.LogLevel = string(logging.LevelDebug)
	}

	if err := logging.ValidateLevel(cfg.LogLevel); err != nil {
		return err
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	})

	o.Config = cfg
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// NewVersionCommand creates the version command.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), opts.Version)
			return err
		},
	}
}
