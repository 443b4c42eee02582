package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
	"github.com/Sternrassler/menu-bot/pkg/delivery"
	"github.com/Sternrassler/menu-bot/pkg/navigation"
)

// CatalogOutput is the JSON payload of the catalog command.
type CatalogOutput struct {
	Store      StoreOutput   `json:"store"`
	Categories []string      `json:"categories"`
	Groups     []GroupOutput `json:"groups"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// StoreOutput is the store profile in CatalogOutput.
type StoreOutput struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Address     string            `json:"address,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Website     string            `json:"website,omitempty"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
}

// GroupOutput is one category listing in CatalogOutput.
type GroupOutput struct {
	Name     string          `json:"name"`
	Products []ProductOutput `json:"products"`
}

// ProductOutput is one product in CatalogOutput.
type ProductOutput struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       string `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
	Available   *bool  `json:"available,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(opts *RootOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Fetch and print the store catalog",
		Long: `Fetch the store profile, categories and products once and print them
the way the bot would list them.

With --category only that category is listed, falling back to all
products when it is unknown or empty, as in the chat.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

			if err := opts.Config.Validate(); err != nil {
				return formatter.Error(fmt.Errorf("invalid configuration: %w", err))
			}
			c, err := newCatalogCache(opts.Config)
			if err != nil {
				return formatter.Error(err)
			}

			snap, err := c.Catalog(cmd.Context())
			if err != nil {
				return formatter.Error(err)
			}

			out := buildCatalogOutput(snap, category)
			return formatter.Success(out, func(w io.Writer) error {
				return writeCatalogText(w, snap.Store, out)
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only list this category")
	return cmd
}

func buildCatalogOutput(snap catalog.Snapshot, category string) CatalogOutput {
	s := snap.Store
	out := CatalogOutput{
		Store: StoreOutput{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Address:     s.Address,
			Phone:       s.Phone,
			Website:     s.Website,
			SocialLinks: s.SocialLinks,
		},
		Categories: make([]string, 0, len(snap.Categories)),
		Groups:     []GroupOutput{},
		FetchedAt:  snap.FetchedAt,
	}
	for _, c := range snap.Categories {
		out.Categories = append(out.Categories, c.Name)
	}

	if category != "" {
		out.Groups = append(out.Groups, GroupOutput{
			Name:     category,
			Products: productOutputs(catalog.SelectCategory(snap.Products, snap.Categories, category)),
		})
		return out
	}
	for _, g := range catalog.GroupByCategory(snap.Products, snap.Categories) {
		out.Groups = append(out.Groups, GroupOutput{Name: g.Name, Products: productOutputs(g.Products)})
	}
	return out
}

func productOutputs(products []catalog.Product) []ProductOutput {
	out := make([]ProductOutput, 0, len(products))
	for _, p := range products {
		out = append(out, ProductOutput{
			ID:          p.ID,
			Title:       p.Title,
			Price:       p.Price,
			Description: p.Description,
			Available:   p.Available,
			ImageURL:    p.ImageURL,
		})
	}
	return out
}

func writeCatalogText(w io.Writer, store *catalog.Store, out CatalogOutput) error {
	if _, err := io.WriteString(w, navigation.StoreCard(store)); err != nil {
		return err
	}
	for _, g := range out.Groups {
		fmt.Fprintf(w, "\n%s%s (%d)\n", navigation.CategoryPrefix, g.Name, len(g.Products))
		if len(g.Products) == 0 {
			fmt.Fprintf(w, "  %s\n", delivery.DefaultEmptyNotice)
		}
		for _, p := range g.Products {
			line := "  " + p.Title
			if p.Price != "" {
				line += " - " + p.Price
			}
			if p.Available != nil && !*p.Available {
				line += " (unavailable)"
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
