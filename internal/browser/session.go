package browser

import "context"

// Session is the contract for an open browser page. Implementations are
// driven by one goroutine at a time.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	SetValue(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// Evaluate runs a JavaScript expression and decodes its value into res.
	Evaluate(ctx context.Context, expression string, res any) error
	// OuterHTML returns the serialized document.
	OuterHTML(ctx context.Context) (string, error)
	// PrintPDF renders the current page as a PDF document.
	PrintPDF(ctx context.Context) ([]byte, error)
	Close() error
}
