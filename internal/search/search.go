// Package search keeps the product table in step with the search box. Edits
// are debounced; when the quiet period ends one fetch is issued for the
// query current at that moment, and a successful answer replaces the table
// region wholesale. Failed fetches leave the previous table on screen.
// The server pages results PageSize at a time; a new query starts again at
// the first page.
package search

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/fragment"
)

// DefaultDebounce is the quiet period after the last edit.
const DefaultDebounce = 250 * time.Millisecond

// PageSize is how many rows the server renders per page. A shorter page is
// the last one.
const PageSize = 50

// TypeFilters lists the product families the location can select, in the
// order the dashboard cycles through them. Empty means all products.
var TypeFilters = []string{"", "moto", "piece"}

// Query is what one fetch asks for. It is fixed when the fetch is issued.
type Query struct {
	Text       string
	TypeFilter string
	Page       int
}

// TableQuery converts q for the transport; empty parts are omitted there.
func (q Query) TableQuery() api.TableQuery {
	return api.TableQuery{Text: q.Text, Type: q.TypeFilter, Page: q.Page}
}

// TypeFromLocation reads the out-of-band type filter from a navigation location.
func TypeFromLocation(loc *url.URL) string {
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(loc.Query().Get("type"))
}

// WithType returns a copy of loc selecting typ; empty typ removes the filter.
func WithType(loc *url.URL, typ string) *url.URL {
	next := &url.URL{}
	if loc != nil {
		copied := *loc
		next = &copied
	}
	values := next.Query()
	if typ = strings.TrimSpace(typ); typ == "" {
		values.Del("type")
	} else {
		values.Set("type", typ)
	}
	next.RawQuery = values.Encode()
	return next
}

// Fetcher retrieves table fragments.
type Fetcher interface {
	FetchTable(ctx context.Context, q api.TableQuery) (string, error)
}

// TickFunc schedules fn after d; tea.Tick in production.
type TickFunc func(time.Duration, func(time.Time) tea.Msg) tea.Cmd

type debounceMsg struct {
	gen int
}

// ResultMsg carries a finished fetch back into the event loop.
type ResultMsg struct {
	Gen    int
	Query  Query
	Markup string
	Err    error
}

// Controller owns the search box and is the only writer of the table region.
type Controller struct {
	input    textinput.Model
	location *url.URL
	region   *fragment.Region
	fetcher  Fetcher
	debounce time.Duration
	tick     TickFunc
	logger   *zap.Logger

	page       int
	gen        int
	appliedGen int
	issued     int
}

// Option customizes a Controller.
type Option func(*Controller)

// WithDebounce overrides the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithTick overrides the debounce timer.
func WithTick(tick TickFunc) Option {
	return func(c *Controller) {
		if tick != nil {
			c.tick = tick
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New wires a controller to its fetcher and the table region it writes.
func New(fetcher Fetcher, region *fragment.Region, location *url.URL, opts ...Option) *Controller {
	input := textinput.New()
	input.Prompt = "Rechercher › "
	input.Placeholder = "nom, marque, moto, pièce…"
	input.CharLimit = 120
	input.Cursor.SetMode(cursor.CursorStatic)
	c := &Controller{
		input:    input,
		location: location,
		region:   region,
		fetcher:  fetcher,
		debounce: DefaultDebounce,
		tick:     tea.Tick,
		logger:   zap.NewNop(),
		page:     1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Init loads the first table for the location's filter without waiting.
func (c *Controller) Init() tea.Cmd {
	return c.refetch()
}

// Query returns the query derived from the search box and the location.
func (c *Controller) Query() Query {
	return Query{Text: strings.TrimSpace(c.input.Value()), TypeFilter: TypeFromLocation(c.location), Page: c.page}
}

// Page returns the 1-based page the table shows or is loading.
func (c *Controller) Page() int { return c.page }

// NextPage loads the following page at once. It does nothing while the
// table holds a short page, which the server only sends last.
func (c *Controller) NextPage() tea.Cmd {
	if c.region != nil && len(c.region.Rows()) < PageSize {
		c.logger.Debug("already on the last page", zap.Int("page", c.page))
		return nil
	}
	c.page++
	return c.refetch()
}

// PrevPage loads the preceding page at once; it does nothing on page 1.
func (c *Controller) PrevPage() tea.Cmd {
	if c.page <= 1 {
		return nil
	}
	c.page--
	return c.refetch()
}

// refetch supersedes any pending debounce and fetches the current query.
func (c *Controller) refetch() tea.Cmd {
	c.gen++
	return c.fetch(c.gen, c.Query())
}

// Location returns the current navigation location.
func (c *Controller) Location() *url.URL { return c.location }

// Issued returns how many fetches were issued.
func (c *Controller) Issued() int { return c.issued }

// Focus gives the search box keyboard focus.
func (c *Controller) Focus() tea.Cmd { return c.input.Focus() }

// Blur removes keyboard focus from the search box.
func (c *Controller) Blur() { c.input.Blur() }

// Focused reports whether the search box has focus.
func (c *Controller) Focused() bool { return c.input.Focused() }

// HandleKey feeds a key to the search box and re-arms the debounce when the
// text changed.
func (c *Controller) HandleKey(msg tea.KeyMsg) tea.Cmd {
	before := c.input.Value()
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	if c.input.Value() == before {
		return cmd
	}
	c.page = 1
	return tea.Batch(cmd, c.arm())
}

// SetText replaces the search text as if typed.
func (c *Controller) SetText(text string) tea.Cmd {
	if text == c.input.Value() {
		return nil
	}
	c.input.SetValue(text)
	c.page = 1
	return c.arm()
}

// SetLocation navigates to loc; a changed type filter re-arms the debounce.
func (c *Controller) SetLocation(loc *url.URL) tea.Cmd {
	changed := TypeFromLocation(loc) != TypeFromLocation(c.location)
	c.location = loc
	if !changed {
		return nil
	}
	c.page = 1
	return c.arm()
}

// CycleType moves the location to the next product family.
func (c *Controller) CycleType() tea.Cmd {
	current := TypeFromLocation(c.location)
	next := TypeFilters[0]
	for i, t := range TypeFilters {
		if t == current {
			next = TypeFilters[(i+1)%len(TypeFilters)]
			break
		}
	}
	return c.SetLocation(WithType(c.location, next))
}

// arm replaces any pending debounce with a new one; only the newest
// generation's timer may fire a fetch.
func (c *Controller) arm() tea.Cmd {
	c.gen++
	gen := c.gen
	return c.tick(c.debounce, func(time.Time) tea.Msg { return debounceMsg{gen: gen} })
}

func (c *Controller) fetch(gen int, q Query) tea.Cmd {
	if c.fetcher == nil {
		c.logger.Warn("search fetcher unavailable")
		return nil
	}
	c.issued++
	fetcher := c.fetcher
	c.logger.Debug("search fetch issued", zap.Int("gen", gen), zap.String("q", q.Text), zap.String("type", q.TypeFilter), zap.Int("page", q.Page))
	return func() tea.Msg {
		markup, err := fetcher.FetchTable(context.Background(), q.TableQuery())
		return ResultMsg{Gen: gen, Query: q, Markup: markup, Err: err}
	}
}

// Update handles debounce expiry and fetch results.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case debounceMsg:
		if m.gen != c.gen {
			return nil
		}
		return c.fetch(m.gen, c.Query())
	case ResultMsg:
		if m.Err != nil {
			c.logger.Warn("search fetch failed; keeping current table", zap.Int("gen", m.Gen), zap.Error(m.Err))
			return nil
		}
		if m.Gen < c.appliedGen {
			// accepted: a slower, older answer still replaces the table
			c.logger.Info("stale search response applied", zap.Int("gen", m.Gen), zap.Int("applied_gen", c.appliedGen))
		}
		c.appliedGen = m.Gen
		if c.region != nil {
			c.region.Replace(m.Markup)
		}
	}
	return nil
}

// View renders the search box.
func (c *Controller) View() string {
	return c.input.View()
}
