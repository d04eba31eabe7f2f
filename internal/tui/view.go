package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/comdesk/internal/notice"
	"github.com/kingrea/comdesk/internal/search"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E1E")).
			Background(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1)
	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
)

const helpLine = "ctrl+f filtrer · ctrl+t type · pgup/pgdown page · ↑/↓ choisir · entrée prix · ctrl+r/ctrl+n réappro moto/pièce · ctrl+e export · ctrl+x fermer la notice · ctrl+c quitter"

// tableColumns sizes the product columns for width; the name column takes
// whatever the fixed columns leave over.
func tableColumns(width int) []table.Column {
	const idW, brandW, priceW = 6, 14, 12
	nameW := max(16, width-idW-brandW-3*priceW-16)
	return []table.Column{
		{Title: "ID", Width: idW},
		{Title: "Produit", Width: nameW},
		{Title: "Marque", Width: brandW},
		{Title: "Prix Achat", Width: priceW},
		{Title: "Prix Gros", Width: priceW},
		{Title: "Prix Vente", Width: priceW},
	}
}

// View renders the dashboard. An alert or an open modal replaces the body
// until it is dismissed.
func (a *App) View() string {
	width := max(40, a.width)
	header := a.clock.View()
	if header == "" {
		header = a.config.Project.UI.Site + " • " + a.config.Project.UI.DashboardLabel
	}
	header = headerStyle.Render(header)

	if a.alert != nil {
		return a.overlay(header, notice.RenderAlert(*a.alert, width-4))
	}
	if !a.price.Hidden() {
		return a.overlay(header, a.withNotice(a.price.View(width-4), width))
	}
	if !a.restock.Hidden() {
		return a.overlay(header, a.withNotice(a.restock.View(width-4), width))
	}

	sections := []string{header, a.renderSearchBar(width)}
	if a.focus == focusFilter || a.region.FilterText() != "" {
		sections = append(sections, a.filter.View())
	}
	sections = append(sections, a.renderTable(width))
	if n := a.notices.View(width - 2); n != "" {
		sections = append(sections, n)
	}
	footer := helpLine
	if a.statusMsg != "" {
		footer = a.statusMsg + "\n" + helpLine
	}
	sections = append(sections, footerStyle.Width(width).Render(footer))
	return strings.Join(sections, "\n")
}

func (a *App) renderSearchBar(width int) string {
	typ := search.TypeFromLocation(a.search.Location())
	label := "tous"
	switch typ {
	case "moto":
		label = "motos"
	case "piece":
		label = "pièces"
	case "":
	default:
		label = typ
	}
	if page := a.search.Page(); page > 1 {
		label += fmt.Sprintf(" · page %d", page)
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Center, a.search.View(), "  ", badgeStyle.Render(label))
	return panelStyle.Width(max(20, width-2)).Render(bar)
}

func (a *App) renderTable(width int) string {
	if len(a.visible) == 0 {
		msg := "Aucun produit."
		if a.region.Version() == 0 {
			msg = "Chargement…"
		}
		return panelStyle.Width(max(20, width-2)).Render(emptyStyle.Render(msg))
	}
	return panelStyle.Render(a.table.View())
}

// withNotice stacks the current notice under an open modal so outcomes that
// keep the modal open stay visible.
func (a *App) withNotice(box string, width int) string {
	n := a.notices.View(min(width-4, lipgloss.Width(box)))
	if n == "" {
		return box
	}
	return lipgloss.JoinVertical(lipgloss.Center, box, n)
}

func (a *App) overlay(header, box string) string {
	if a.width == 0 || a.height == 0 {
		return header + "\n" + box
	}
	body := lipgloss.Place(a.width, max(1, a.height-2), lipgloss.Center, lipgloss.Center, box)
	return header + "\n" + body
}
