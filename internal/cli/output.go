package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/summary"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the server or the controller refused the change
	ExitCommandError = 2 // bad flags, config, or arguments
)

// ExitError carries a process exit code alongside an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CollectionView is what list and mutation commands print
type CollectionView struct {
	Collection string                     `json:"collection"`
	Items      []optimistic.Item          `json:"items"`
	Summary    summary.Summary            `json:"summary"`
	Conflict   *optimistic.Conflict       `json:"conflict,omitempty"`
	Error      *optimistic.OperationError `json:"error,omitempty"`
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Collection prints a collection in the configured format.
func (f *OutputFormatter) Collection(v CollectionView) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if len(v.Items) == 0 {
		fmt.Fprintf(f.Writer, "%s is empty\n", v.Collection)
	} else {
		tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPRODUCT\tNAME\tQTY\tPRICE")
		for _, it := range v.Items {
			p := it.Payload
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", it.ID, p.ProductID, p.Name, p.Quantity, formatCents(p.PriceCents))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	s := v.Summary
	fmt.Fprintf(f.Writer, "items %d  subtotal %s  tax %s  shipping %s  discount %s  total %s\n",
		s.ItemCount, formatCents(s.Subtotal), formatCents(s.Tax), formatCents(s.Shipping),
		formatCents(s.Discount), formatCents(s.Total))

	if v.Conflict != nil {
		fmt.Fprintf(f.Writer, "conflict: server holds %d item(s), local view %d\n", len(v.Conflict.Remote), len(v.Conflict.Local))
	}
	return nil
}

// MoveView is what the wishlist move command prints
type MoveView struct {
	Result optimistic.MoveResult `json:"result"`
	Cart   CollectionView        `json:"cart"`
}

// Move prints the outcome of a wishlist move followed by the cart.
func (f *OutputFormatter) Move(v MoveView) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Fprintf(f.Writer, "moved %d\n", v.Result.Moved)
	for _, id := range v.Result.Errors {
		fmt.Fprintf(f.Writer, "not moved: %s\n", id)
	}
	return f.Collection(v.Cart)
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
