// Package modal implements the dashboard's form overlays. Each overlay kind
// owns one Session that tracks whether it is visible and whether a
// submission is outstanding; the kinds differ only in how they collect and
// send their proposal.
package modal

import (
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/logging"
)

// Kind names a modal.
type Kind string

const (
	KindPrice   Kind = "price"
	KindRestock Kind = "restock"
)

// State is the lifecycle position of a session.
type State int

const (
	Closed State = iota
	Open
	Submitting
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Submitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// ResultMsg carries a finished submission back into the event loop. Epoch
// identifies the session opening that issued it.
type ResultMsg struct {
	Kind   Kind
	Epoch  int
	Result api.Result
}

// Session is the open/submit/close state machine shared by all modal kinds.
// Every Open and Cancel starts a new epoch; a result from an older epoch no
// longer drives the state.
type Session struct {
	kind   Kind
	state  State
	epoch  int
	logger *zap.Logger
}

// NewSession returns a closed session.
func NewSession(kind Kind, logger *zap.Logger) *Session {
	logger = logging.OrNop(logger)
	return &Session{kind: kind, logger: logger}
}

// Kind returns the modal kind.
func (s *Session) Kind() Kind { return s.kind }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Epoch returns the current epoch.
func (s *Session) Epoch() int { return s.epoch }

// Hidden reports whether the modal must be treated as absent: not rendered
// and not receiving keys.
func (s *Session) Hidden() bool { return s.state == Closed }

// Open makes the modal visible. Reopening an open modal starts over.
func (s *Session) Open() {
	s.epoch++
	s.transition(Open)
}

// BeginSubmit moves to Submitting and returns the epoch the submission
// belongs to. It refuses while closed or while a submission is outstanding.
func (s *Session) BeginSubmit() (int, bool) {
	if s.state != Open {
		s.logger.Debug("submit ignored", zap.String("kind", string(s.kind)), zap.Stringer("state", s.state))
		return 0, false
	}
	s.transition(Submitting)
	return s.epoch, true
}

// Resolve applies a submission outcome. It reports false when the result
// belongs to an earlier epoch or no submission is outstanding.
func (s *Session) Resolve(epoch int, result api.Result) bool {
	if epoch != s.epoch || s.state != Submitting {
		s.logger.Debug("late submission result dropped",
			zap.String("kind", string(s.kind)),
			zap.Int("epoch", epoch),
			zap.Int("current_epoch", s.epoch),
			zap.Stringer("outcome", result.Outcome),
		)
		return false
	}
	if result.Outcome == api.Success {
		s.transition(Closed)
	} else {
		s.transition(Open)
	}
	return true
}

// Cancel closes the modal without side effects. An outstanding request is
// not awaited.
func (s *Session) Cancel() {
	if s.state == Closed {
		return
	}
	s.epoch++
	s.transition(Closed)
}

func (s *Session) transition(next State) {
	if s.state == next {
		return
	}
	s.logger.Debug("modal state",
		zap.String("kind", string(s.kind)),
		zap.Stringer("from", s.state),
		zap.Stringer("to", next),
	)
	s.state = next
}
