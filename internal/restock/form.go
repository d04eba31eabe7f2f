// Package restock is the built-in restock form. It collects a provider, an
// optional invoice number and product lines, checks them, and proposes the
// restock to the server. The dashboard's restock modal drives it through
// its optional capabilities.
package restock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/fragment"
	"github.com/kingrea/comdesk/internal/logging"
	"github.com/kingrea/comdesk/internal/modal"
)

// Validation messages shown to the user.
var (
	ErrNoProvider = errors.New("Fournisseur requis")
	ErrNoLines    = errors.New("Ajoutez au moins un produit")
)

// Sender proposes restocks to the server.
type Sender interface {
	SubmitRestock(ctx context.Context, req api.RestockRequest) api.Result
}

const (
	focusProvider = iota
	focusInvoice
	focusLines
	focusCount
)

// Form is the restock form.
type Form struct {
	sender Sender
	logger *zap.Logger

	kind     api.RestockKind
	provider textinput.Model
	invoice  textinput.Model
	lines    textarea.Model
	focus    int
	active   bool
}

// NewForm builds an inactive form sending through sender.
func NewForm(sender Sender, logger *zap.Logger) *Form {
	logger = logging.OrNop(logger)
	provider := textinput.New()
	provider.Prompt = ""
	provider.Placeholder = "id fournisseur"
	provider.CharLimit = 10
	provider.Cursor.SetMode(cursor.CursorStatic)
	invoice := textinput.New()
	invoice.Prompt = ""
	invoice.Placeholder = "auto"
	invoice.CharLimit = 32
	invoice.Cursor.SetMode(cursor.CursorStatic)
	lines := textarea.New()
	lines.Placeholder = "id:quantité@coût[/gros/vente], une ligne par produit"
	lines.ShowLineNumbers = false
	lines.SetHeight(5)
	lines.Cursor.SetMode(cursor.CursorStatic)
	return &Form{sender: sender, logger: logger, provider: provider, invoice: invoice, lines: lines}
}

// Active reports whether the form was initialized and not closed since.
func (f *Form) Active() bool { return f.active }

// Kind returns the product family the form targets.
func (f *Form) Kind() api.RestockKind { return f.kind }

// InitRestock resets the form for kind.
func (f *Form) InitRestock(kind api.RestockKind) {
	f.kind = kind
	f.active = true
	f.provider.SetValue("")
	f.invoice.SetValue("")
	f.lines.SetValue("")
	f.setFocus(focusProvider)
}

// CloseRestock deactivates the form.
func (f *Form) CloseRestock() {
	f.active = false
	f.provider.Blur()
	f.invoice.Blur()
	f.lines.Blur()
}

// Fill sets the raw field values.
func (f *Form) Fill(provider, invoice, lines string) {
	f.provider.SetValue(provider)
	f.invoice.SetValue(invoice)
	f.lines.SetValue(lines)
}

// Request validates the fields and builds the proposal.
func (f *Form) Request() (api.RestockRequest, error) {
	providerID, err := strconv.Atoi(strings.TrimSpace(f.provider.Value()))
	if err != nil || providerID <= 0 {
		return api.RestockRequest{}, ErrNoProvider
	}
	lines, err := ParseLines(f.lines.Value())
	if err != nil {
		return api.RestockRequest{}, err
	}
	if len(lines) == 0 {
		return api.RestockRequest{}, ErrNoLines
	}
	return api.RestockRequest{
		Kind:          f.kind,
		ProviderID:    providerID,
		InvoiceNumber: strings.TrimSpace(f.invoice.Value()),
		Lines:         lines,
	}, nil
}

// PrepareRestock validates the form and captures the request. The returned
// func only sends that snapshot, so later edits or a reset of the form do not
// affect it. Invalid input yields a rejection without contacting the server.
func (f *Form) PrepareRestock() modal.SendFunc {
	req, err := f.Request()
	if err != nil {
		f.logger.Info("restock form invalid", zap.Error(err))
		rejected := api.RejectedWith(err.Error())
		return func(context.Context) api.Result { return rejected }
	}
	if f.sender == nil {
		f.logger.Warn("restock sender unavailable")
		failed := api.TransportFailed(errors.New("restock sender unavailable"))
		return func(context.Context) api.Result { return failed }
	}
	sender := f.sender
	return func(ctx context.Context) api.Result {
		return sender.SubmitRestock(ctx, req)
	}
}

// HandleKey moves focus on tab and feeds other keys to the focused field.
func (f *Form) HandleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		return f.setFocus((f.focus + 1) % focusCount)
	case "shift+tab":
		return f.setFocus((f.focus + focusCount - 1) % focusCount)
	}
	var cmd tea.Cmd
	switch f.focus {
	case focusProvider:
		f.provider, cmd = f.provider.Update(msg)
	case focusInvoice:
		f.invoice, cmd = f.invoice.Update(msg)
	case focusLines:
		f.lines, cmd = f.lines.Update(msg)
	}
	return cmd
}

func (f *Form) setFocus(target int) tea.Cmd {
	f.focus = target
	f.provider.Blur()
	f.invoice.Blur()
	f.lines.Blur()
	switch target {
	case focusInvoice:
		return f.invoice.Focus()
	case focusLines:
		return f.lines.Focus()
	default:
		return f.provider.Focus()
	}
}

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).Width(14)

// View renders the form fields.
func (f *Form) View(width int) string {
	f.lines.SetWidth(max(20, width))
	return strings.Join([]string{
		labelStyle.Render("Fournisseur") + f.provider.View(),
		labelStyle.Render("Facture") + f.invoice.View(),
		labelStyle.Render("Produits"),
		f.lines.View(),
	}, "\n")
}

// ParseLines reads product lines of the form "id:qty@cost", optionally
// followed by "/wholesale/selling". Blank lines and lines starting with "#"
// are skipped. Amounts use the same strict notation as the price modal.
func ParseLines(text string) ([]api.RestockLine, error) {
	var out []api.RestockLine
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("ligne %d: %w", i+1, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

func parseLine(line string) (api.RestockLine, error) {
	idPart, rest, ok := strings.Cut(line, ":")
	if !ok {
		return api.RestockLine{}, errors.New(`format attendu "id:quantité@coût"`)
	}
	id, err := strconv.Atoi(strings.TrimSpace(idPart))
	if err != nil || id <= 0 {
		return api.RestockLine{}, fmt.Errorf("produit %q invalide", strings.TrimSpace(idPart))
	}
	qtyPart, prices, _ := strings.Cut(rest, "@")
	qty, err := strconv.Atoi(strings.TrimSpace(qtyPart))
	if err != nil || qty <= 0 {
		return api.RestockLine{}, fmt.Errorf("quantité %q invalide", strings.TrimSpace(qtyPart))
	}
	amounts := strings.Split(prices, "/")
	amount := func(i int) float64 {
		if i < len(amounts) {
			return fragment.ParseInput(amounts[i])
		}
		return 0
	}
	return api.RestockLine{
		ProductID:      id,
		Quantity:       qty,
		CostPrice:      amount(0),
		WholesalePrice: amount(1),
		SellingPrice:   amount(2),
	}, nil
}
