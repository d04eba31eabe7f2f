package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/comdesk/internal/config"
	"github.com/kingrea/comdesk/internal/modal"
	"github.com/kingrea/comdesk/internal/notice"
	"github.com/kingrea/comdesk/internal/search"
)

const tableFragment = `<tr data-product-id="7" data-cost-price="90"><td>Casque X</td><td>Acme</td><td>90,00</td><td>120,00</td><td>180,00</td></tr>
<tr data-product-id="8"><td>Casque X</td><td>Zenith</td><td>95,00</td><td>125,00</td><td>185,00</td></tr>
<tr data-product-id="9"><td>Gant Y</td><td>Acme</td><td>10,00</td><td>12,00</td><td>15,00</td></tr>`

type fakeServer struct {
	mu           sync.Mutex
	tableQueries []string
	priceBodies  []map[string]any
	priceReply   string
	tableBody    string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/table/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tableQueries = append(f.tableQueries, r.URL.RawQuery)
		body := f.tableBody
		f.mu.Unlock()
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/price/", func(w http.ResponseWriter, r *http.Request) {
		var decoded map[string]any
		_ = json.NewDecoder(r.Body).Decode(&decoded)
		f.mu.Lock()
		f.priceBodies = append(f.priceBodies, decoded)
		reply := f.priceReply
		f.mu.Unlock()
		_, _ = w.Write([]byte(reply))
	})
	return mux
}

func (f *fakeServer) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tableQueries...)
}

// shortTimersOnly fires sub-second timers (search debounce) immediately and
// never fires the long ones, so notices stay visible during a test.
func shortTimersOnly(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
	if d >= time.Second {
		return nil
	}
	return func() tea.Msg { return fn(time.Now()) }
}

func newTestApp(t *testing.T, srv *fakeServer, opts ...AppOption) *App {
	t.Helper()
	return newTestAppWithSetup(t, srv, nil, opts...)
}

// newTestAppWithSetup lets setup populate the project directory before the
// app is built.
func newTestAppWithSetup(t *testing.T, srv *fakeServer, setup func(projectDir string), opts ...AppOption) *App {
	t.Helper()
	for _, key := range []string{"COMDESK_BASE_URL", "COMDESK_SESSION_ID", "COMDESK_CSRF_TOKEN", "COMDESK_TYPE", "COMDESK_EXPORT_DIR", "COMDESK_RESTOCK_SCRIPT", "COMDESK_LOG_LEVEL", "COMDESK_LOCALE", "COMDESK_REQUEST_TIMEOUT"} {
		t.Setenv(key, "")
	}
	httpSrv := httptest.NewServer(srv.handler())
	t.Cleanup(httpSrv.Close)

	projectDir := t.TempDir()
	if err := config.InitDir(projectDir); err != nil {
		t.Fatalf("init dir: %v", err)
	}
	yaml := fmt.Sprintf(`version: 1
server:
  base_url: %s
  table_path: /table/
  price_path: /price/
  restock_path: /restock/
  csrf_token: tok-1
ui:
  show_clock: false
export:
  dir: exports
`, httpSrv.URL)
	if err := os.WriteFile(filepath.Join(projectDir, config.ProjectDirName, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if setup != nil {
		setup(projectDir)
	}
	app, err := NewApp(projectDir, append([]AppOption{WithTick(shortTimersOnly)}, opts...)...)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

// runCommands executes cmd and every follow-up command until the chain is
// exhausted, feeding each message back into the app.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			t.Fatalf("command chain did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		switch m := msg.(type) {
		case nil, tea.QuitMsg:
			continue
		case tea.BatchMsg:
			queue = append(queue, m...)
			continue
		}
		nextModel, nextCmd := app.Update(msg)
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		queue = append(queue, nextCmd)
	}
	return app
}

func press(t *testing.T, app *App, keys ...tea.KeyMsg) *App {
	t.Helper()
	for _, k := range keys {
		model, cmd := app.Update(k)
		app = runCommands(t, model, cmd)
	}
	return app
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestInitLoadsTable(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	if len(app.visible) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(app.visible))
	}
	if q := srv.queries(); len(q) != 1 || q[0] != "" {
		t.Fatalf("expected one unfiltered fetch, got %q", q)
	}
	if !strings.Contains(app.View(), "Gant Y") {
		t.Fatalf("table should be rendered")
	}
}

func TestTypingFetchesOncePerSettledInput(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	// each key arms a new debounce; run the commands only after typing
	var cmds []tea.Cmd
	for _, r := range "cas" {
		model, cmd := app.Update(runes(string(r)))
		app = model.(*App)
		cmds = append(cmds, cmd)
	}
	app = runCommands(t, app, tea.Batch(cmds...))
	q := srv.queries()
	if len(q) != 2 || q[1] != "q=cas" {
		t.Fatalf("expected initial fetch plus one for the final text, got %q", q)
	}
}

func TestLocalFilterNarrowsRows(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlF}, runes("zen"))
	if len(app.visible) != 1 || app.visible[0].ProductID != "8" {
		t.Fatalf("expected only the Zenith row, got %+v", app.visible)
	}
	if n := len(srv.queries()); n != 1 {
		t.Fatalf("local filter must not fetch, got %d fetches", n)
	}
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	if len(app.visible) != 3 {
		t.Fatalf("clearing the filter should restore rows")
	}
}

func TestCycleTypeRefetches(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlT})
	q := srv.queries()
	if len(q) != 2 || q[1] != "type=moto" {
		t.Fatalf("expected moto fetch, got %q", q)
	}
}

func TestPageKeysFetchNeighbourPages(t *testing.T) {
	var page strings.Builder
	for id := 1; id <= search.PageSize; id++ {
		fmt.Fprintf(&page, `<tr data-product-id="%d"><td>Produit %d</td><td>Acme</td><td>1</td><td>2</td><td>3</td></tr>`, id, id)
	}
	srv := &fakeServer{tableBody: page.String()}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	model, _ := app.Update(tea.WindowSizeMsg{Width: 160, Height: 60})
	app = model.(*App)
	app = press(t, app, tea.KeyMsg{Type: tea.KeyPgDown})
	q := srv.queries()
	if q[len(q)-1] != "page=2" {
		t.Fatalf("expected page 2, got %v", q)
	}
	if !strings.Contains(app.View(), "page 2") {
		t.Fatalf("search bar should show the page")
	}
	app = press(t, app, tea.KeyMsg{Type: tea.KeyPgUp})
	q = srv.queries()
	if q[len(q)-1] != "" {
		t.Fatalf("page 1 must be requested without a page parameter, got %v", q)
	}
}

func TestPriceModalFlow(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment, priceReply: `{"ok": true}`}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if app.price.Hidden() {
		t.Fatalf("enter should open the price modal")
	}
	if seed := app.price.Seed(); seed.ProductID != 7 || seed.Cost != 90 || seed.Selling != 180 {
		t.Fatalf("unexpected seed %+v", seed)
	}
	app.price.SetField(0, "100")
	app.price.SetField(1, "150")
	app.price.SetField(2, "200")
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})

	if !app.price.Hidden() {
		t.Fatalf("modal should close after acceptance")
	}
	if len(srv.priceBodies) != 1 {
		t.Fatalf("expected one submission, got %d", len(srv.priceBodies))
	}
	body := srv.priceBodies[0]
	if body["product_id"] != float64(7) || body["cost_price"] != float64(100) || body["selling_price"] != float64(200) {
		t.Fatalf("unexpected body %v", body)
	}
	if n, ok := app.notices.Current(); !ok || n.Message != modal.SuccessMessage {
		t.Fatalf("expected success notice, got %+v", n)
	}
}

func TestPriceRejectionNoticeShownOverModal(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment, priceReply: `{"ok": false, "error": "Prix invalide"}`}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyCtrlS})
	if app.price.Hidden() {
		t.Fatalf("rejection must keep the modal open")
	}
	view := app.View()
	if !strings.Contains(view, "Modifier les prix") {
		t.Fatalf("modal should still be drawn:\n%s", view)
	}
	if !strings.Contains(view, "Prix invalide") {
		t.Fatalf("rejection notice should be drawn with the modal:\n%s", view)
	}
}

func TestPriceModalCancelSendsNothing(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment, priceReply: `{"ok": true}`}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyEsc})
	if !app.price.Hidden() || len(srv.priceBodies) != 0 {
		t.Fatalf("cancel should hide without submitting")
	}
}

func TestExportWritesFileAndZeroRowsAlerts(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment}
	app := newTestApp(t, srv)
	app = runCommands(t, app, app.Init())
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlE})
	path := filepath.Join(app.config.Project.Export.Dir, "produits.xlsx")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	if !strings.Contains(string(data), "<td>Gant Y</td>") {
		t.Fatalf("unexpected export body %s", data)
	}
	q := srv.queries()
	if q[len(q)-1] != "export=all" {
		t.Fatalf("export must fetch everything, got %q", q[len(q)-1])
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	srv.mu.Lock()
	srv.tableBody = ""
	srv.mu.Unlock()
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlE})
	if app.alert == nil || app.alert.Level != notice.LevelWarning {
		t.Fatalf("expected warning alert, got %+v", app.alert)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("no file should be written for an empty export")
	}
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if app.alert != nil {
		t.Fatalf("enter should acknowledge the alert")
	}
}

func TestRestockWithoutCollaboratorHooks(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment}
	// a collaborator with no recognised capability
	app := newTestApp(t, srv, WithRestockCollaborator(struct{}{}))
	app = runCommands(t, app, app.Init())
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlN})
	if app.restock.Hidden() {
		t.Fatalf("restock modal should open even without hooks")
	}
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	if app.restock.Session().State() != modal.Open {
		t.Fatalf("unbound submit must leave the modal open")
	}
	app = press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	if !app.restock.Hidden() {
		t.Fatalf("esc should close the restock modal")
	}
}

func TestBuiltInRestockFormIsDefault(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment}
	app := newTestApp(t, srv)
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlR})
	view := app.View()
	if !strings.Contains(view, "Fournisseur") || !strings.Contains(view, "Motos") {
		t.Fatalf("expected built-in form in view:\n%s", view)
	}
	// invalid form: rejected locally with an error notice, modal stays open
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	if app.restock.Hidden() {
		t.Fatalf("invalid form must keep the modal open")
	}
	if n, ok := app.notices.Current(); !ok || n.Level != notice.LevelError {
		t.Fatalf("expected validation notice, got %+v", n)
	}
	if view := app.View(); !strings.Contains(view, "Fournisseur requis") {
		t.Fatalf("validation notice should be drawn with the form:\n%s", view)
	}
}

func TestDiscoveredRestockScriptHandlesSubmit(t *testing.T) {
	srv := &fakeServer{tableBody: tableFragment}
	script := `package main

func SubmitRestock() (bool, string) { return true, "" }
`
	app := newTestAppWithSetup(t, srv, func(projectDir string) {
		dir := filepath.Join(projectDir, config.ProjectDirName, "plugins")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir plugins: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "restock.go"), []byte(script), 0o644); err != nil {
			t.Fatalf("write script: %v", err)
		}
	})
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlR})
	if strings.Contains(app.View(), "Fournisseur") {
		t.Fatalf("script should replace the built-in form")
	}
	app = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	if !app.restock.Hidden() {
		t.Fatalf("successful script submit should close the modal")
	}
	if n, ok := app.notices.Current(); !ok || n.Level != notice.LevelSuccess {
		t.Fatalf("expected success notice, got %+v", n)
	}
}
