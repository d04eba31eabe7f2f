// Package export builds the product spreadsheet download. It always fetches
// the complete table itself, independent of the search or filter on screen,
// and writes the rows as an HTML table. The file keeps the .xlsx name and
// spreadsheet content type that spreadsheet software expects from the
// dashboard, even though the bytes are HTML.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/fragment"
	"github.com/kingrea/comdesk/internal/logging"
)

const (
	// FileName is the fixed download name.
	FileName = "produits.xlsx"
	// ContentType is the declared type of the download.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Header is the fixed first row of the document.
var Header = []string{"ID", "Produit", "Marque", "Prix Achat", "Prix Gros", "Prix Vente"}

// ErrNoRows means the server returned no products; nothing is produced.
var ErrNoRows = errors.New("aucun produit à exporter")

// Fetcher retrieves table fragments.
type Fetcher interface {
	FetchTable(ctx context.Context, q api.TableQuery) (string, error)
}

// Download is a finished document ready to be saved.
type Download struct {
	FileName    string
	ContentType string
	Body        []byte
	Rows        int
}

// Serializer produces downloads.
type Serializer struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewSerializer returns a serializer reading through fetcher.
func NewSerializer(fetcher Fetcher, logger *zap.Logger) *Serializer {
	logger = logging.OrNop(logger)
	return &Serializer{fetcher: fetcher, logger: logger}
}

// Export fetches every product and renders the document.
func (s *Serializer) Export(ctx context.Context) (Download, error) {
	if s.fetcher == nil {
		return Download{}, errors.New("export: fetcher unavailable")
	}
	markup, err := s.fetcher.FetchTable(ctx, api.TableQuery{ExportAll: true})
	if err != nil {
		return Download{}, fmt.Errorf("export: fetch: %w", err)
	}
	rows, err := fragment.Parse(markup)
	if err != nil {
		return Download{}, fmt.Errorf("export: %w", err)
	}
	if len(rows) == 0 {
		s.logger.Warn("export produced no rows")
		return Download{}, ErrNoRows
	}
	body := Render(rows)
	s.logger.Info("export rendered", zap.Int("rows", len(rows)), zap.Int("bytes", len(body)))
	return Download{FileName: FileName, ContentType: ContentType, Body: body, Rows: len(rows)}, nil
}

// Render writes rows as an HTML table in a minimal document. Cell text is
// taken exactly as displayed.
func Render(rows []fragment.ProductRow) []byte {
	var b strings.Builder
	b.WriteString(`<html><head><meta charset="utf-8"></head><body><table>`)
	writeRow(&b, "th", Header)
	for _, r := range rows {
		writeRow(&b, "td", []string{r.ProductID, r.Name, r.Brand, r.CostPrice, r.WholesalePrice, r.SellingPrice})
	}
	b.WriteString("</table></body></html>")
	return []byte(b.String())
}

func writeRow(b *strings.Builder, cell string, values []string) {
	b.WriteString("<tr>")
	for _, v := range values {
		fmt.Fprintf(b, "<%s>%s</%s>", cell, Escape(v), cell)
	}
	b.WriteString("</tr>")
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape makes text safe inside a table cell. Quotes are left alone.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Save writes d into dir under its file name and returns the full path.
func Save(dir string, d Download) (string, error) {
	if len(d.Body) == 0 {
		return "", errors.New("export: empty download")
	}
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create %s: %w", dir, err)
	}
	name := d.FileName
	if name == "" {
		name = FileName
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, d.Body, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}
