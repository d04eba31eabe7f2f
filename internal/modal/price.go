package modal

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/fragment"
	"github.com/kingrea/comdesk/internal/logging"
	"github.com/kingrea/comdesk/internal/notice"
)

// PriceSeed is what the price modal is opened with.
type PriceSeed struct {
	ProductID int
	Name      string
	Brand     string
	Cost      float64
	Wholesale float64
	Selling   float64
}

// SeedFromRow reads a seed out of a rendered table row.
func SeedFromRow(row fragment.ProductRow) PriceSeed {
	return PriceSeed{
		ProductID: row.ID(),
		Name:      row.Name,
		Brand:     row.Brand,
		Cost:      row.Seed("cost"),
		Wholesale: row.Seed("wholesale"),
		Selling:   row.Seed("selling"),
	}
}

// PriceSubmitter sends price-change proposals.
type PriceSubmitter interface {
	SubmitPriceChange(ctx context.Context, req api.PriceChangeRequest) api.Result
}

const (
	fieldCost = iota
	fieldWholesale
	fieldSelling
	fieldCount
)

var priceLabels = [fieldCount]string{"Prix d'achat", "Prix de gros", "Prix de vente"}

// PriceModal collects three prices for one product and proposes them.
type PriceModal struct {
	session   *Session
	submitter PriceSubmitter
	queue     *notice.Queue
	logger    *zap.Logger

	seed   PriceSeed
	inputs [fieldCount]textinput.Model
	focus  int
}

// NewPriceModal builds a closed price modal.
func NewPriceModal(submitter PriceSubmitter, queue *notice.Queue, logger *zap.Logger) *PriceModal {
	logger = logging.OrNop(logger)
	m := &PriceModal{
		session:   NewSession(KindPrice, logger),
		submitter: submitter,
		queue:     queue,
		logger:    logger,
	}
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 16
		in.Width = 14
		in.Cursor.SetMode(cursor.CursorStatic)
		m.inputs[i] = in
	}
	return m
}

// Session exposes the lifecycle state.
func (m *PriceModal) Session() *Session { return m.session }

// Hidden reports whether the modal is closed.
func (m *PriceModal) Hidden() bool { return m.session.Hidden() }

// Seed returns the seed the modal was last opened with.
func (m *PriceModal) Seed() PriceSeed { return m.seed }

// Open shows the modal for seed. Absent or zero prices start at "0".
func (m *PriceModal) Open(seed PriceSeed) tea.Cmd {
	m.seed = seed
	m.session.Open()
	for i, v := range [fieldCount]float64{seed.Cost, seed.Wholesale, seed.Selling} {
		m.inputs[i].SetValue(formatAmount(v))
		m.inputs[i].Blur()
	}
	m.focus = fieldCost
	m.logger.Info("price modal opened", zap.Int("product_id", seed.ProductID))
	return m.inputs[m.focus].Focus()
}

// SetField replaces the text of one price field (0 cost, 1 wholesale,
// 2 selling).
func (m *PriceModal) SetField(field int, value string) {
	if field < 0 || field >= fieldCount {
		return
	}
	m.inputs[field].SetValue(value)
}

// Request builds the proposal from the current field values.
func (m *PriceModal) Request() api.PriceChangeRequest {
	return api.PriceChangeRequest{
		ProductID:      m.seed.ProductID,
		CostPrice:      Coerce(m.inputs[fieldCost].Value()),
		WholesalePrice: Coerce(m.inputs[fieldWholesale].Value()),
		SellingPrice:   Coerce(m.inputs[fieldSelling].Value()),
	}
}

// Submit sends the proposal. Nothing happens unless the modal is open and
// idle.
func (m *PriceModal) Submit() tea.Cmd {
	if m.submitter == nil {
		m.logger.Warn("price submitter unavailable")
		return nil
	}
	epoch, ok := m.session.BeginSubmit()
	if !ok {
		return nil
	}
	req := m.Request()
	submitter := m.submitter
	m.logger.Info("price change submitted", zap.Int("product_id", req.ProductID))
	return func() tea.Msg {
		return ResultMsg{Kind: KindPrice, Epoch: epoch, Result: submitter.SubmitPriceChange(context.Background(), req)}
	}
}

// Cancel closes the modal; an outstanding submission is abandoned.
func (m *PriceModal) Cancel() {
	m.session.Cancel()
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

// Update handles keys while visible and results for this modal kind.
func (m *PriceModal) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ResultMsg:
		if msg.Kind != KindPrice || !m.session.Resolve(msg.Epoch, msg.Result) {
			return nil
		}
		m.logger.Info("price change resolved", zap.Stringer("outcome", msg.Result.Outcome), zap.String("reason", msg.Result.Reason), zap.String("detail", msg.Result.Detail))
		return route(m.queue, msg.Result)
	case tea.KeyMsg:
		if m.session.Hidden() {
			return nil
		}
		switch msg.String() {
		case "esc":
			m.Cancel()
			return nil
		case "ctrl+s":
			return m.Submit()
		case "tab", "down":
			return m.moveFocus(1)
		case "shift+tab", "up":
			return m.moveFocus(-1)
		case "enter":
			if m.focus == fieldSelling {
				return m.Submit()
			}
			return m.moveFocus(1)
		}
		if m.session.State() != Open {
			return nil
		}
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return cmd
	}
	return nil
}

func (m *PriceModal) moveFocus(delta int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + fieldCount) % fieldCount
	return m.inputs[m.focus].Focus()
}

var (
	modalBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(1, 2)
	modalTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	modalLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).Width(16)
	modalHint  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	modalBusy  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
)

// View renders the modal, or nothing while hidden.
func (m *PriceModal) View(width int) string {
	if m.session.Hidden() {
		return ""
	}
	lines := []string{
		modalTitle.Render("Modifier les prix"),
		fmt.Sprintf("%s · %s (#%d)", orDash(m.seed.Name), orDash(m.seed.Brand), m.seed.ProductID),
		"",
	}
	for i := range m.inputs {
		lines = append(lines, modalLabel.Render(priceLabels[i])+m.inputs[i].View())
	}
	lines = append(lines, "")
	if m.session.State() == Submitting {
		lines = append(lines, modalBusy.Render("Envoi en cours…"))
	} else {
		lines = append(lines, modalHint.Render("tab champ suivant · ctrl+s envoyer · échap annuler"))
	}
	return modalBox.Width(max(40, min(width, 64))).Render(strings.Join(lines, "\n"))
}

// Coerce reads a numeric field. Empty, invalid and negative input count as 0.
func Coerce(raw string) float64 {
	return fragment.ParseInput(raw)
}

func formatAmount(v float64) string {
	if v <= 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
