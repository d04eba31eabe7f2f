// Package fragment is the read/write model of the product table region.
// The server renders the table as an HTML fragment; Parse reconstructs
// ProductRow values from it on demand and Region holds the current markup.
package fragment

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const productIDAttr = "data-product-id"

// ProductRow is a read-only projection of one rendered table row. Prices
// keep the displayed text exactly as rendered.
type ProductRow struct {
	ProductID      string
	Name           string
	Brand          string
	CostPrice      string
	WholesalePrice string
	SellingPrice   string

	// Raw numeric seeds, taken from data-*-price attributes when the
	// fragment provides them.
	seeds map[string]string
}

// Seed returns the numeric value for a price column: the raw data attribute
// when present, otherwise the displayed text. Missing or unparsable values
// yield 0.
func (r ProductRow) Seed(column string) float64 {
	raw := r.seeds[column]
	if raw == "" {
		switch column {
		case "cost":
			raw = r.CostPrice
		case "wholesale":
			raw = r.WholesalePrice
		case "selling":
			raw = r.SellingPrice
		}
	}
	return ParseAmount(raw)
}

// ID returns the numeric product id, or 0.
func (r ProductRow) ID() int {
	id, err := strconv.Atoi(strings.TrimSpace(r.ProductID))
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// Parse extracts every <tr data-product-id> row from markup. Cells are read
// in fixed order: name, brand, cost, wholesale, selling. A product id that
// already appeared is skipped.
func Parse(markup string) ([]ProductRow, error) {
	rows, _, err := parse(markup)
	return rows, err
}

func parse(markup string) ([]ProductRow, []string, error) {
	doc, err := html.Parse(strings.NewReader(wrapRows(markup)))
	if err != nil {
		return nil, nil, fmt.Errorf("fragment: parse: %w", err)
	}
	var (
		rows       []ProductRow
		duplicates []string
		seen       = map[string]struct{}{}
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			if id, ok := attr(n, productIDAttr); ok {
				id = strings.TrimSpace(id)
				if _, dup := seen[id]; dup {
					duplicates = append(duplicates, id)
				} else {
					seen[id] = struct{}{}
					rows = append(rows, rowFromNode(id, n))
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows, duplicates, nil
}

// wrapRows puts bare <tr> sequences inside a table; the HTML parser drops
// rows found outside of one.
func wrapRows(markup string) string {
	if strings.Contains(strings.ToLower(markup), "<table") {
		return markup
	}
	return "<table><tbody>" + markup + "</tbody></table>"
}

func rowFromNode(id string, tr *html.Node) ProductRow {
	row := ProductRow{ProductID: id, seeds: map[string]string{}}
	for column, name := range map[string]string{
		"cost":      "data-cost-price",
		"wholesale": "data-wholesale-price",
		"selling":   "data-selling-price",
	} {
		if v, ok := attr(tr, name); ok {
			row.seeds[column] = strings.TrimSpace(v)
		}
	}
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, textContent(c))
		}
	}
	fields := []*string{&row.Name, &row.Brand, &row.CostPrice, &row.WholesalePrice, &row.SellingPrice}
	for i, field := range fields {
		if i < len(cells) {
			*field = cells[i]
		}
	}
	return row
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// textContent concatenates descendant text and collapses whitespace.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// ParseAmount reads a displayed price such as "1 250,50" or "1250.5 DA".
// Anything unparsable, or negative, is 0.
func ParseAmount(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ',' || r == '.':
			b.WriteRune('.')
		}
	}
	cleaned := b.String()
	// keep only the last separator as the decimal point
	if idx := strings.LastIndex(cleaned, "."); idx >= 0 {
		cleaned = strings.ReplaceAll(cleaned[:idx], ".", "") + cleaned[idx:]
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// ParseInput reads an amount typed by the user. It accepts digits with at
// most one decimal separator ("," or "."); spaces, no-break spaces and
// narrow no-break spaces are allowed as grouping. Anything else, including
// signs and exponents, is invalid and yields 0.
func ParseInput(raw string) float64 {
	var b strings.Builder
	separators := 0
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',' || r == '.':
			separators++
			b.WriteRune('.')
		case r == ' ' || r == '\u00a0' || r == '\u202f':
		default:
			return 0
		}
	}
	cleaned := b.String()
	if separators > 1 || cleaned == "" || cleaned == "." {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
