// Package notice is the notification region: at most one transient message
// is displayed at a time, latest wins, and each message removes itself after
// a fixed time unless it was closed by hand first.
package notice

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// DefaultTTL is how long a notice stays up without manual close.
const DefaultTTL = 6000 * time.Millisecond

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one displayed message.
type Notice struct {
	ID      int
	Title   string
	Message string
	Level   Level
	ShownAt time.Time
}

// ExpiredMsg is delivered when a notice's display window has elapsed.
type ExpiredMsg struct {
	ID int
}

// TickFunc schedules fn after d; tea.Tick in production.
type TickFunc func(time.Duration, func(time.Time) tea.Msg) tea.Cmd

// Queue owns the notice region. A nil *Queue is a valid absent region.
type Queue struct {
	current *Notice
	lastID  int
	ttl     time.Duration
	tick    TickFunc
	now     func() time.Time
	logger  *zap.Logger
}

// Option customizes a Queue.
type Option func(*Queue)

// WithTTL overrides the auto-dismiss delay.
func WithTTL(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.ttl = d
		}
	}
}

// WithTick overrides the timer used for auto-dismiss.
func WithTick(tick TickFunc) Option {
	return func(q *Queue) {
		if tick != nil {
			q.tick = tick
		}
	}
}

// WithClock allows tests to control display timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New returns an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		ttl:    DefaultTTL,
		tick:   tea.Tick,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Show replaces whatever is displayed with a new notice and starts a fresh
// display window for it.
func (q *Queue) Show(title, message string, level Level) tea.Cmd {
	if q == nil {
		return nil
	}
	q.lastID++
	n := Notice{
		ID:      q.lastID,
		Title:   strings.TrimSpace(title),
		Message: strings.TrimSpace(message),
		Level:   level,
		ShownAt: q.now(),
	}
	if q.current != nil {
		q.logger.Debug("notice evicted", zap.Int("id", q.current.ID))
	}
	q.current = &n
	q.logger.Info("notice shown", zap.Int("id", n.ID), zap.String("level", string(level)), zap.String("title", n.Title))
	id := n.ID
	return q.tick(q.ttl, func(time.Time) tea.Msg { return ExpiredMsg{ID: id} })
}

// Dismiss removes the displayed notice. Removing nothing is a no-op.
func (q *Queue) Dismiss() {
	if q == nil || q.current == nil {
		return
	}
	q.logger.Debug("notice dismissed", zap.Int("id", q.current.ID))
	q.current = nil
}

// Clear empties the region.
func (q *Queue) Clear() {
	if q == nil {
		return
	}
	q.current = nil
}

// Current returns the displayed notice.
func (q *Queue) Current() (Notice, bool) {
	if q == nil || q.current == nil {
		return Notice{}, false
	}
	return *q.current, true
}

// Update handles expiry messages; an expiry for a notice that was already
// replaced or closed does nothing.
func (q *Queue) Update(msg tea.Msg) tea.Cmd {
	if q == nil {
		return nil
	}
	if m, ok := msg.(ExpiredMsg); ok {
		if q.current != nil && q.current.ID == m.ID {
			q.logger.Debug("notice expired", zap.Int("id", m.ID))
			q.current = nil
		}
	}
	return nil
}

var (
	noticeBase = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	levelColors = map[Level]lipgloss.Color{
		LevelInfo:    lipgloss.Color("#5B8DEF"),
		LevelSuccess: lipgloss.Color("#4CAF50"),
		LevelWarning: lipgloss.Color("#F5A623"),
		LevelError:   lipgloss.Color("#FF6B6B"),
	}
	closeHint = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// View renders the notice region; empty when nothing is displayed.
func (q *Queue) View(width int) string {
	n, ok := q.Current()
	if !ok {
		return ""
	}
	color, ok := levelColors[n.Level]
	if !ok {
		color = levelColors[LevelInfo]
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(color).Render(n.Title)
	body := n.Message
	if body != "" {
		body = "\n" + body
	}
	content := fmt.Sprintf("%s  %s%s", title, closeHint.Render("[x]"), body)
	return noticeBase.BorderForeground(color).Width(max(20, width)).Render(content)
}
