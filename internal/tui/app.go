// internal/tui/app.go
//
// This is the terminal dashboard for comdesk.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the dashboard state, split into regions
// 2. Update: every key, timer and network answer arrives as a message
// 3. View: the regions rendered top to bottom
//
// Each region has exactly one writer: the table belongs to the search
// controller, the notice line to the notice queue, the header to the clock,
// each overlay to its modal, and the alert box to the App itself.

package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/api"
	"github.com/kingrea/comdesk/internal/clock"
	"github.com/kingrea/comdesk/internal/config"
	"github.com/kingrea/comdesk/internal/export"
	"github.com/kingrea/comdesk/internal/fragment"
	"github.com/kingrea/comdesk/internal/modal"
	"github.com/kingrea/comdesk/internal/notice"
	"github.com/kingrea/comdesk/internal/restock"
	"github.com/kingrea/comdesk/internal/search"
	"github.com/kingrea/comdesk/plugins"
)

// tickFunc is the timer every region schedules through; tea.Tick unless a
// test replaces it.
type tickFunc = func(time.Duration, func(time.Time) tea.Msg) tea.Cmd

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogger routes every component's logs to l.
func WithLogger(l *zap.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHTTPClient overrides the HTTP client used to reach the server.
func WithHTTPClient(hc *http.Client) AppOption {
	return func(a *App) {
		a.httpClient = hc
	}
}

// WithTick replaces the timer used by the search debounce, notice expiry
// and the clock.
func WithTick(tick func(time.Duration, func(time.Time) tea.Msg) tea.Cmd) AppOption {
	return func(a *App) {
		if tick != nil {
			a.tick = tick
		}
	}
}

// WithRestockCollaborator replaces the restock form. The collaborator may
// implement any subset of the modal.Restock* capabilities.
func WithRestockCollaborator(c any) AppOption {
	return func(a *App) {
		a.collaborator = c
	}
}

type focusArea int

const (
	focusSearch focusArea = iota
	focusTable
	focusFilter
)

type exportDoneMsg struct {
	path string
	rows int
	err  error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	config *config.Config
	logger *zap.Logger
	client *api.Client

	httpClient   *http.Client
	tick         tickFunc
	collaborator any

	region   *fragment.Region
	search   *search.Controller
	notices  *notice.Queue
	clock    *clock.Ticker
	price    *modal.PriceModal
	restock  *modal.RestockModal
	exporter *export.Serializer

	table         table.Model
	filter        textinput.Model
	visible       []fragment.ProductRow
	syncedVersion int
	syncedFilter  string
	focus         focusArea
	alert         *notice.AlertMsg
	exporting     bool
	statusMsg     string

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp loads the project configuration and wires every region.
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	app := &App{
		config: cfg,
		logger: zap.NewNop(),
		tick:   tea.Tick,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}

	clientOpts := []api.Option{api.WithLogger(app.logger.Named("api"))}
	if app.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(app.httpClient))
	}
	client, err := api.NewClient(api.SettingsFromConfig(cfg), clientOpts...)
	if err != nil {
		return nil, err
	}
	app.client = client

	ui := cfg.Project.UI
	app.region = fragment.NewRegion(app.logger.Named("table"))
	app.notices = notice.New(
		notice.WithTTL(ui.NoticeTTL),
		notice.WithTick(app.tick),
		notice.WithLogger(app.logger.Named("notice")),
	)
	app.search = search.New(client, app.region, cfg.DashboardLocation(),
		search.WithDebounce(ui.SearchDebounce),
		search.WithTick(app.tick),
		search.WithLogger(app.logger.Named("search")),
	)
	if cfg.ShowClock() {
		app.clock = clock.New(ui.Site, ui.DashboardLabel, ui.Locale, clock.WithTick(app.tick), clock.WithInterval(ui.ClockInterval))
	}
	app.price = modal.NewPriceModal(client, app.notices, app.logger.Named("price"))
	app.restock = modal.NewRestockModal(app.restockCollaborator(), app.notices, app.logger.Named("restock"))
	app.exporter = export.NewSerializer(client, app.logger.Named("export"))

	app.table = table.New(
		table.WithColumns(tableColumns(80)),
		table.WithFocused(false),
		table.WithHeight(12),
	)
	app.filter = textinput.New()
	app.filter.Prompt = "Filtrer › "
	app.filter.Placeholder = "nom ou marque"
	app.filter.CharLimit = 60
	app.filter.Cursor.SetMode(cursor.CursorStatic)

	app.logger.Info("dashboard opened",
		zap.String("base_url", cfg.Project.Server.BaseURL),
		zap.String("type", ui.Type),
		zap.Bool("csrf", client.CSRFToken() != ""),
	)
	return app, nil
}

// restockCollaborator picks the restock form: an explicit collaborator, the
// configured or discovered script, or the built-in form.
func (a *App) restockCollaborator() any {
	if a.collaborator != nil {
		return a.collaborator
	}
	if script := plugins.RestockScriptPath(a.config); script != "" {
		hooks, err := plugins.LoadRestockHooks(script, a.logger.Named("plugins"))
		if err == nil && hooks != nil {
			return hooks
		}
		a.logger.Error("restock script unusable; using built-in form", zap.String("script", script), zap.Error(err))
		a.statusMsg = "Script de réapprovisionnement invalide, formulaire intégré utilisé"
	}
	return restock.NewForm(a.client, a.logger.Named("restock-form"))
}

// Client exposes the server client, mainly for its request metrics.
func (a *App) Client() *api.Client { return a.client }

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.search.Init(), a.search.Focus(), a.clock.Init())
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.table.SetColumns(tableColumns(msg.Width))
		a.table.SetHeight(max(3, msg.Height-14))
		return a, nil

	case notice.AlertMsg:
		a.alert = &msg
		a.logger.Info("alert raised", zap.String("level", string(msg.Level)), zap.String("message", msg.Message))
		return a, nil

	case exportDoneMsg:
		return a, a.handleExportDone(msg)

	case tea.KeyMsg:
		cmd := a.handleKey(msg)
		a.syncTable()
		return a, cmd
	}

	// Timer and network messages: every region ignores what is not its own.
	cmds := []tea.Cmd{
		a.search.Update(msg),
		a.notices.Update(msg),
		a.clock.Update(msg),
		a.price.Update(msg),
		a.restock.Update(msg),
	}
	a.syncTable()
	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}
	if a.alert != nil {
		switch key {
		case "enter", "esc":
			a.alert = nil
		}
		return nil
	}
	if !a.price.Hidden() {
		return a.price.Update(msg)
	}
	if !a.restock.Hidden() {
		return a.restock.Update(msg)
	}
	if a.focus == focusFilter {
		return a.handleFilterKey(msg)
	}

	switch key {
	case "ctrl+f":
		return a.setFocus(focusFilter)
	case "ctrl+t":
		return a.search.CycleType()
	case "pgdown":
		return a.search.NextPage()
	case "pgup":
		return a.search.PrevPage()
	case "ctrl+r":
		a.restock.Open(api.RestockMoto)
		return nil
	case "ctrl+n":
		a.restock.Open(api.RestockPiece)
		return nil
	case "ctrl+e":
		return a.startExport()
	case "ctrl+x":
		a.notices.Dismiss()
		return nil
	case "tab":
		if a.focus == focusSearch {
			return a.setFocus(focusTable)
		}
		return a.setFocus(focusSearch)
	case "up":
		a.table.MoveUp(1)
		return nil
	case "down":
		a.table.MoveDown(1)
		return nil
	case "enter":
		return a.openPrice()
	}

	if a.focus == focusTable {
		switch key {
		case "x":
			a.notices.Dismiss()
			return nil
		case "p":
			return a.openPrice()
		case "k":
			a.table.MoveUp(1)
			return nil
		case "j":
			a.table.MoveDown(1)
			return nil
		}
		return nil
	}
	return a.search.HandleKey(msg)
}

func (a *App) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.filter.SetValue("")
		a.region.SetFilter("")
		return a.setFocus(focusSearch)
	case "enter", "tab", "ctrl+f":
		return a.setFocus(focusSearch)
	}
	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	a.region.SetFilter(a.filter.Value())
	return cmd
}

func (a *App) setFocus(target focusArea) tea.Cmd {
	a.focus = target
	a.search.Blur()
	a.filter.Blur()
	a.table.Blur()
	switch target {
	case focusFilter:
		return a.filter.Focus()
	case focusTable:
		a.table.Focus()
		return nil
	default:
		return a.search.Focus()
	}
}

func (a *App) openPrice() tea.Cmd {
	row, ok := a.selectedRow()
	if !ok {
		a.statusMsg = "Aucun produit sélectionné"
		return nil
	}
	return a.price.Open(modal.SeedFromRow(row))
}

func (a *App) selectedRow() (fragment.ProductRow, bool) {
	idx := a.table.Cursor()
	if idx < 0 || idx >= len(a.visible) {
		return fragment.ProductRow{}, false
	}
	return a.visible[idx], true
}

// syncTable rebuilds the table rows when the region or the filter changed.
func (a *App) syncTable() {
	version, filter := a.region.Version(), a.region.FilterText()
	if version == a.syncedVersion && filter == a.syncedFilter {
		return
	}
	a.syncedVersion, a.syncedFilter = version, filter
	a.visible = a.region.Visible()
	rows := make([]table.Row, 0, len(a.visible))
	for _, r := range a.visible {
		rows = append(rows, table.Row{r.ProductID, r.Name, r.Brand, r.CostPrice, r.WholesalePrice, r.SellingPrice})
	}
	a.table.SetRows(rows)
	if a.table.Cursor() >= len(rows) {
		a.table.SetCursor(max(0, len(rows)-1))
	}
}

func (a *App) startExport() tea.Cmd {
	if a.exporting {
		return nil
	}
	a.exporting = true
	a.statusMsg = "Export en cours…"
	exporter := a.exporter
	dir := a.config.Project.Export.Dir
	return func() tea.Msg {
		d, err := exporter.Export(context.Background())
		if err != nil {
			return exportDoneMsg{err: err}
		}
		path, err := export.Save(dir, d)
		return exportDoneMsg{path: path, rows: d.Rows, err: err}
	}
}

func (a *App) handleExportDone(msg exportDoneMsg) tea.Cmd {
	a.exporting = false
	a.statusMsg = ""
	switch {
	case errors.Is(msg.err, export.ErrNoRows):
		return notice.Alert(notice.LevelWarning, "Aucun produit à exporter.")
	case msg.err != nil:
		a.logger.Error("export failed", zap.Error(msg.err))
		return notice.Alert(notice.LevelError, "Erreur lors de l'export : "+msg.err.Error())
	}
	a.logger.Info("export saved", zap.String("path", msg.path), zap.Int("rows", msg.rows))
	return a.notices.Show("Export", fmt.Sprintf("%d produits enregistrés dans %s", msg.rows, msg.path), notice.LevelSuccess)
}
