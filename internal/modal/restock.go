package modal

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/logging"
	"github.com/kingrea/comdesk/internal/notice"
)

// The restock form itself belongs to a collaborator. Each capability below
// is optional; the modal checks for it at call time and skips what the
// collaborator does not provide.

// RestockInitializer prepares the collaborator's form for a kind.
type RestockInitializer interface {
	InitRestock(kind api.RestockKind)
}

// RestockCloser tears the collaborator's form down.
type RestockCloser interface {
	CloseRestock()
}

// SendFunc delivers a prepared restock proposal. It runs off the event loop
// and must not read the collaborator's form.
type SendFunc func(ctx context.Context) api.Result

// RestockSubmitter snapshots the collaborator's current form. PrepareRestock
// runs on the event loop; a nil SendFunc means there is nothing to send.
type RestockSubmitter interface {
	PrepareRestock() SendFunc
}

// RestockRenderer draws the collaborator's form.
type RestockRenderer interface {
	View(width int) string
}

// RestockKeyHandler receives keys the modal does not handle itself.
type RestockKeyHandler interface {
	HandleKey(msg tea.KeyMsg) tea.Cmd
}

// Capability names one optional collaborator hook.
type Capability string

const (
	CapInit   Capability = "init"
	CapClose  Capability = "close"
	CapSubmit Capability = "submit"
)

// CapabilityReporter is implemented by collaborators whose hook methods
// exist statically but may be unbound at run time, such as scripts.
type CapabilityReporter interface {
	Provides(c Capability) bool
}

// RestockModal owns the visibility and submit dispatch of the restock form.
type RestockModal struct {
	session      *Session
	collaborator any
	queue        *notice.Queue
	logger       *zap.Logger
	kind         api.RestockKind
}

// NewRestockModal builds a closed restock modal. collaborator may be nil or
// implement any subset of the Restock* capabilities.
func NewRestockModal(collaborator any, queue *notice.Queue, logger *zap.Logger) *RestockModal {
	logger = logging.OrNop(logger)
	return &RestockModal{
		session:      NewSession(KindRestock, logger),
		collaborator: collaborator,
		queue:        queue,
		logger:       logger,
	}
}

// Session exposes the lifecycle state.
func (m *RestockModal) Session() *Session { return m.session }

// Hidden reports whether the modal is closed.
func (m *RestockModal) Hidden() bool { return m.session.Hidden() }

// Kind returns the product family the modal was last opened for.
func (m *RestockModal) Kind() api.RestockKind { return m.kind }

// Open shows the modal for kind and initializes the collaborator.
func (m *RestockModal) Open(kind api.RestockKind) {
	m.kind = kind
	m.session.Open()
	if init, ok := m.collaborator.(RestockInitializer); ok && m.provides(CapInit) {
		init.InitRestock(kind)
	} else {
		m.logger.Warn("restock init capability not bound", zap.String("kind", string(kind)))
	}
}

// Cancel closes the modal and the collaborator's form.
func (m *RestockModal) Cancel() {
	m.session.Cancel()
	m.close()
}

func (m *RestockModal) close() {
	if closer, ok := m.collaborator.(RestockCloser); ok && m.provides(CapClose) {
		closer.CloseRestock()
	} else {
		m.logger.Debug("restock close capability not bound")
	}
}

// Submit asks the collaborator to send its form.
func (m *RestockModal) Submit() tea.Cmd {
	submitter, ok := m.collaborator.(RestockSubmitter)
	if !ok || !m.provides(CapSubmit) {
		m.logger.Warn("restock submit capability not bound")
		return nil
	}
	if m.session.State() != Open {
		return nil
	}
	send := submitter.PrepareRestock()
	if send == nil {
		m.logger.Warn("restock collaborator prepared nothing to send")
		return nil
	}
	epoch, ok := m.session.BeginSubmit()
	if !ok {
		return nil
	}
	m.logger.Info("restock submitted", zap.String("kind", string(m.kind)))
	return func() tea.Msg {
		return ResultMsg{Kind: KindRestock, Epoch: epoch, Result: send(context.Background())}
	}
}

func (m *RestockModal) provides(c Capability) bool {
	if r, ok := m.collaborator.(CapabilityReporter); ok {
		return r.Provides(c)
	}
	return true
}

// Update handles keys while visible and results for this modal kind.
func (m *RestockModal) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ResultMsg:
		if msg.Kind != KindRestock || !m.session.Resolve(msg.Epoch, msg.Result) {
			return nil
		}
		m.logger.Info("restock resolved",
			zap.Stringer("outcome", msg.Result.Outcome),
			zap.String("reason", msg.Result.Reason),
			zap.String("reference", msg.Result.Reference),
		)
		if msg.Result.Outcome == api.Success {
			m.close()
		}
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
		}
		if m.session.State() != Open {
			return nil
		}
		if keys, ok := m.collaborator.(RestockKeyHandler); ok {
			return keys.HandleKey(msg)
		}
	}
	return nil
}

// View renders the modal, or nothing while hidden.
func (m *RestockModal) View(width int) string {
	if m.session.Hidden() {
		return ""
	}
	inner := max(36, min(width, 72)) - 6
	title := "Réapprovisionnement · " + kindLabel(m.kind)
	body := modalHint.Render("Formulaire géré par un script externe.")
	if r, ok := m.collaborator.(RestockRenderer); ok {
		body = r.View(inner)
	}
	status := modalHint.Render("ctrl+s envoyer · échap annuler")
	if m.session.State() == Submitting {
		status = modalBusy.Render("Envoi en cours…")
	}
	content := strings.Join([]string{modalTitle.Render(title), "", body, "", status}, "\n")
	return modalBox.Width(inner + 6).Render(content)
}

func kindLabel(kind api.RestockKind) string {
	switch kind {
	case api.RestockMoto:
		return "Motos"
	case api.RestockPiece:
		return "Pièces"
	default:
		return lipgloss.NewStyle().Italic(true).Render(string(kind))
	}
}
