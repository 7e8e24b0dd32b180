// Package assistant holds the read-only context shared with the chat
// assistant: the latest derived view (capped upstream at 100 rows) and
// the aggregate stats. The assistant UI itself lives elsewhere and gets
// no mutation rights.
package assistant

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rleiva/taxqual/internal/qualification"
)

// Context implements qualification.ViewSink and keeps the last published
// state for rendering.
type Context struct {
	mu    sync.Mutex
	rows  []qualification.Record
	total int
	stats qualification.Stats
}

// New returns an empty assistant context.
func New() *Context {
	return &Context{}
}

// PublishView replaces the held view. rows is already capped by the
// publisher; total is the full filtered count.
func (c *Context) PublishView(rows []qualification.Record, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rows
	c.total = total
}

// PublishStats replaces the held aggregates.
func (c *Context) PublishStats(stats qualification.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
}

// View returns the held rows and the full filtered count.
func (c *Context) View() ([]qualification.Record, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows, c.total
}

// Render produces the compact text block handed to the assistant.
func (c *Context) Render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Visible qualifications: %d of %d\n", len(c.rows), c.total)
	fmt.Fprintf(&b, "Totals: %d records, %d unregistered\n", c.stats.Total, c.stats.Unregistered)
	for currency, amount := range c.stats.AmountByCurrency {
		fmt.Fprintf(&b, "Amount %s: %.2f\n", currency, amount)
	}
	for _, r := range c.rows {
		fmt.Fprintf(&b, "- %s | %s | %s | %s | %.2f %s\n",
			r.TaxpayerID, r.InstrumentType, r.Market, r.Period,
			r.Amount.Value, r.Amount.Currency)
	}
	return b.String()
}
