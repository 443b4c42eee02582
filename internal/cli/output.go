package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// Response is the JSON envelope for command output.
type Response struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  string      `json:"error,omitempty"` // error message
}

// OutputFormatter handles JSON vs text output for commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Success writes data as a JSON envelope, or calls text for text output.
func (f *OutputFormatter) Success(data interface{}, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

// Error writes err in the configured format and returns it.
func (f *OutputFormatter) Error(err error) error {
	if f.Format == "json" {
		if encErr := json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: err.Error()}); encErr != nil {
			return encErr
		}
		return err
	}
	fmt.Fprintf(f.Writer, "Error: %v\n", err)
	return err
}
