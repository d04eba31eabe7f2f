// Package clock is the header ticker: a display-only line showing the site,
// the dashboard label, and the localized date and time. It shares no state
// with the other components.
package clock

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/language"
)

// DefaultInterval is the refresh period of the time of day.
const DefaultInterval = time.Second

// TickMsg carries one clock tick.
type TickMsg struct {
	gen  int
	Time time.Time
}

// TickFunc schedules fn after d; tea.Tick in production.
type TickFunc func(time.Duration, func(time.Time) tea.Msg) tea.Cmd

type locale struct {
	days   [7]string
	months [12]string
	date   func(l locale, t time.Time) string
	clock  func(t time.Time) string
}

var (
	supported = []language.Tag{language.French, language.English}
	matcher   = language.NewMatcher(supported)

	locales = []locale{
		{
			days:   [7]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
			months: [12]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
			date: func(l locale, t time.Time) string {
				return fmt.Sprintf("%s %d %s %d", l.days[t.Weekday()], t.Day(), l.months[t.Month()-1], t.Year())
			},
			clock: func(t time.Time) string { return t.Format("15:04:05") },
		},
		{
			days:   [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
			months: [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
			date: func(l locale, t time.Time) string {
				return fmt.Sprintf("%s, %s %d, %d", l.days[t.Weekday()], l.months[t.Month()-1], t.Day(), t.Year())
			},
			clock: func(t time.Time) string { return t.Format("3:04:05 PM") },
		},
	}
)

// matchLocale picks the closest supported locale; French when unsure.
func matchLocale(tag string) locale {
	parsed, err := language.Parse(tag)
	if err != nil {
		return locales[0]
	}
	_, idx, conf := matcher.Match(parsed)
	if conf == language.No || idx < 0 || idx >= len(locales) {
		return locales[0]
	}
	return locales[idx]
}

// Ticker renders "<site> • <label> • <date> — <time>". A nil *Ticker is an
// absent region: it renders nothing and schedules nothing.
type Ticker struct {
	site     string
	label    string
	locale   locale
	interval time.Duration
	tick     TickFunc
	now      func() time.Time

	gen       int
	date      string
	timeOfDay string
	ticks     int
}

// Option customizes a Ticker.
type Option func(*Ticker)

// WithTick overrides the timer.
func WithTick(tick TickFunc) Option {
	return func(t *Ticker) {
		if tick != nil {
			t.tick = tick
		}
	}
}

// WithInterval overrides how often the time of day is refreshed.
func WithInterval(d time.Duration) Option {
	return func(t *Ticker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithClock allows tests to control the current time.
func WithClock(now func() time.Time) Option {
	return func(t *Ticker) {
		if now != nil {
			t.now = now
		}
	}
}

// New builds a ticker for the given locale tag (BCP 47, e.g. "fr-FR").
func New(site, label, localeTag string, opts ...Option) *Ticker {
	t := &Ticker{
		site:     site,
		label:    label,
		locale:   matchLocale(localeTag),
		interval: DefaultInterval,
		tick:     tea.Tick,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Init computes the date once and arms the first tick. Calling Init again
// restarts the chain; ticks from the previous chain are ignored.
func (t *Ticker) Init() tea.Cmd {
	if t == nil {
		return nil
	}
	now := t.now()
	t.gen++
	t.date = t.locale.date(t.locale, now)
	t.timeOfDay = t.locale.clock(now)
	return t.schedule()
}

func (t *Ticker) schedule() tea.Cmd {
	gen := t.gen
	return t.tick(t.interval, func(at time.Time) tea.Msg { return TickMsg{gen: gen, Time: at} })
}

// Update refreshes the time of day and arms exactly one next tick.
func (t *Ticker) Update(msg tea.Msg) tea.Cmd {
	if t == nil {
		return nil
	}
	m, ok := msg.(TickMsg)
	if !ok || m.gen != t.gen {
		return nil
	}
	t.ticks++
	t.timeOfDay = t.locale.clock(t.now())
	return t.schedule()
}

// Ticks returns how many ticks were applied.
func (t *Ticker) Ticks() int {
	if t == nil {
		return 0
	}
	return t.ticks
}

// View renders the clock line.
func (t *Ticker) View() string {
	if t == nil || t.date == "" {
		return ""
	}
	return fmt.Sprintf("%s • %s • %s — %s", t.site, t.label, t.date, t.timeOfDay)
}
