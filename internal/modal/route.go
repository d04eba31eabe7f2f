package modal

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/notice"
)

// User-facing texts for submission outcomes.
const (
	SuccessTitle   = "Succès"
	SuccessMessage = "Demande envoyée pour validation"
	ErrorTitle     = "Erreur"
	RejectFallback = "Échec de la demande"
	NetworkError   = "Erreur réseau"
)

// route turns a resolved submission into its user-visible signal. Transport
// failures raise a blocking alert instead of a notice.
func route(queue *notice.Queue, result api.Result) tea.Cmd {
	switch result.Outcome {
	case api.Success:
		queue.Clear()
		return queue.Show(SuccessTitle, SuccessMessage, notice.LevelSuccess)
	case api.Rejected:
		reason := strings.TrimSpace(result.Reason)
		if reason == "" {
			reason = RejectFallback
		}
		return queue.Show(ErrorTitle, reason, notice.LevelError)
	default:
		return notice.Alert(notice.LevelError, NetworkError)
	}
}
