package fragment

import (
	"testing"
)

const sampleFragment = `
<tr data-product-id="1" data-cost-price="1200.50"><td>Casque X</td><td>Acme</td><td>1 200,50</td><td>1 300,00</td><td>1 500,00</td><td><button>Prix</button></td></tr>
<tr data-product-id="2"><td>Casque X</td><td>Zenith</td><td>900</td><td>950</td><td>1 000</td></tr>
<tr data-product-id="3"><td> Gant
   <b>Y</b></td><td>Acme</td><td>10</td><td>12</td><td>15</td></tr>
<tr class="empty"><td colspan="5">Aucun produit</td></tr>
`

func TestParseReadsRowsInColumnOrder(t *testing.T) {
	rows, err := Parse(sampleFragment)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 product rows, got %d", len(rows))
	}
	first := rows[0]
	if first.ProductID != "1" || first.Name != "Casque X" || first.Brand != "Acme" {
		t.Fatalf("unexpected first row %+v", first)
	}
	if first.CostPrice != "1 200,50" || first.WholesalePrice != "1 300,00" || first.SellingPrice != "1 500,00" {
		t.Fatalf("prices must keep displayed text, got %+v", first)
	}
	if rows[2].Name != "Gant Y" {
		t.Fatalf("expected collapsed whitespace, got %q", rows[2].Name)
	}
}

func TestParseFullTableAndDuplicates(t *testing.T) {
	markup := `<table class="t"><thead><tr><th>Produit</th></tr></thead><tbody>
<tr data-product-id="5"><td>A</td><td>B</td><td>1</td><td>2</td><td>3</td></tr>
<tr data-product-id="5"><td>dup</td><td>B</td><td>1</td><td>2</td><td>3</td></tr>
</tbody></table>`
	rows, dups, err := parse(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "A" {
		t.Fatalf("expected first occurrence only, got %+v", rows)
	}
	if len(dups) != 1 || dups[0] != "5" {
		t.Fatalf("expected duplicate report, got %v", dups)
	}
}

func TestSeedPrefersDataAttributes(t *testing.T) {
	rows, err := Parse(sampleFragment)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := rows[0].Seed("cost"); got != 1200.5 {
		t.Fatalf("expected data attribute seed, got %v", got)
	}
	if got := rows[0].Seed("selling"); got != 1500 {
		t.Fatalf("expected displayed text seed, got %v", got)
	}
	if got := (ProductRow{}).Seed("wholesale"); got != 0 {
		t.Fatalf("absent seed must be 0, got %v", got)
	}
	if rows[1].ID() != 2 || (ProductRow{ProductID: "x"}).ID() != 0 {
		t.Fatalf("unexpected ids")
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]float64{
		"":          0,
		"abc":       0,
		"1 250,50":  1250.5,
		"1.250,50":  1250.5,
		"1250.5 DA": 1250.5,
		"-3":        0,
		"42":        42,
	}
	for in, want := range cases {
		if got := ParseAmount(in); got != want {
			t.Fatalf("ParseAmount(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseInputIsStrict(t *testing.T) {
	cases := map[string]float64{
		"":             0,
		"  ":           0,
		"1e3":          0,
		"abc5":         0,
		"12abc":        0,
		"1O0":          0,
		"-5":           0,
		"1.250,50":     0,
		".":            0,
		"1250.5 DA":    0,
		"42":           42,
		" 7,5 ":        7.5,
		"1 250,50":     1250.5,
		"1\u00a0250.5": 1250.5,
		"3\u202f000":   3000,
	}
	for in, want := range cases {
		if got := ParseInput(in); got != want {
			t.Fatalf("ParseInput(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLocalFilterMatchesNameOrBrand(t *testing.T) {
	region := NewRegion(nil)
	region.Replace(sampleFragment)
	region.SetFilter("zen")
	visible := region.Visible()
	if len(visible) != 1 || visible[0].ProductID != "2" {
		t.Fatalf("expected only the Zenith row, got %+v", visible)
	}
	region.SetFilter("CASQUE")
	if got := len(region.Visible()); got != 2 {
		t.Fatalf("expected case-insensitive name match on 2 rows, got %d", got)
	}
	region.SetFilter("   ")
	if got := len(region.Visible()); got != 3 {
		t.Fatalf("blank filter should show all rows, got %d", got)
	}
}

func TestReplaceIsWholesaleAndKeepsFilter(t *testing.T) {
	region := NewRegion(nil)
	region.Replace(sampleFragment)
	region.SetFilter("acme")
	before := region.Version()
	region.Replace(`<tr data-product-id="9"><td>Pneu</td><td>Acme</td><td>1</td><td>1</td><td>1</td></tr>`)
	if region.Version() != before+1 {
		t.Fatalf("expected version bump")
	}
	rows := region.Rows()
	if len(rows) != 1 || rows[0].ProductID != "9" {
		t.Fatalf("expected content replaced, got %+v", rows)
	}
	if region.FilterText() != "acme" || len(region.Visible()) != 1 {
		t.Fatalf("filter should survive replace")
	}
}
