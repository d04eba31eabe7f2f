package fragment

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/kingrea/comdesk/internal/logging"
)

// Region is the product table container. The search controller is its only
// writer (Replace); the export serializer and the modal controller only read
// it. Content and visibility are separate concerns: Replace swaps content
// wholesale, the local Filter only hides rows.
type Region struct {
	markup  string
	filter  Filter
	version int
	logger  *zap.Logger
}

// NewRegion returns an empty table region.
func NewRegion(logger *zap.Logger) *Region {
	logger = logging.OrNop(logger)
	return &Region{logger: logger}
}

// Replace swaps the whole container content for markup. Nothing is merged.
func (r *Region) Replace(markup string) {
	r.markup = markup
	r.version++
	if _, dups, err := parse(markup); err != nil {
		r.logger.Warn("table fragment unreadable", zap.Error(err))
	} else if len(dups) > 0 {
		r.logger.Warn("duplicate product ids in fragment", zap.Strings("product_ids", dups))
	}
}

// Markup returns the current container content.
func (r *Region) Markup() string { return r.markup }

// Version increments on every Replace so views can tell content changed.
func (r *Region) Version() int { return r.version }

// Rows reconstructs the rendered rows from the current markup.
func (r *Region) Rows() []ProductRow {
	rows, err := Parse(r.markup)
	if err != nil {
		return nil
	}
	return rows
}

// SetFilter changes the local visibility filter.
func (r *Region) SetFilter(text string) { r.filter = NewFilter(text) }

// FilterText returns the current local filter input.
func (r *Region) FilterText() string { return r.filter.text }

// Visible returns the rendered rows that pass the local filter.
func (r *Region) Visible() []ProductRow {
	return r.filter.Apply(r.Rows())
}

// Filter is the instant local filter: a case-insensitive substring match on
// product name or brand.
type Filter struct {
	text   string
	needle string
}

// NewFilter prepares a filter for text; blank text matches everything.
func NewFilter(text string) Filter {
	return Filter{text: text, needle: cases.Fold().String(strings.TrimSpace(text))}
}

// Matches reports whether row stays visible.
func (f Filter) Matches(row ProductRow) bool {
	if f.needle == "" {
		return true
	}
	fold := cases.Fold()
	if strings.Contains(fold.String(row.Name), f.needle) {
		return true
	}
	return strings.Contains(fold.String(row.Brand), f.needle)
}

// Apply returns the rows of rows that match, preserving order.
func (f Filter) Apply(rows []ProductRow) []ProductRow {
	if f.needle == "" {
		return rows
	}
	visible := make([]ProductRow, 0, len(rows))
	for _, row := range rows {
		if f.Matches(row) {
			visible = append(visible, row)
		}
	}
	return visible
}
