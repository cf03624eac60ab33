package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/rshade/ecojourney/internal/greenops"
)

// View renders the current screen (Bubble Tea interface).
func (m RouteExplorerModel) View() string {
	switch m.state {
	case ViewStateQuitting:
		return ""
	case ViewStateDetail:
		return m.renderDetail()
	case ViewStateList:
		return m.renderList()
	default:
		return ""
	}
}

func (m RouteExplorerModel) renderList() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("FLIGHT EMISSIONS EXPLORER"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Booking: %d x %s\n", m.settings.Passengers, m.settings.Cabin)
	if m.showFilter || m.textInput.Value() != "" {
		b.WriteString(m.textInput.View())
		b.WriteString("\n")
	}
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if len(m.rows) == 0 {
		b.WriteString(SubtleStyle.Render("No routes match the filter."))
		b.WriteString("\n")
	}
	b.WriteString(SubtleStyle.Render("↑/↓ move • enter details • / filter • c cabin • +/- passengers • q quit"))
	return b.String()
}

func (m RouteExplorerModel) renderDetail() string {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return ""
	}
	row := m.rows[m.selected]

	var content strings.Builder
	content.WriteString(TitleStyle.Render(row.route.ID))
	content.WriteString("\n\n")
	if row.err != nil {
		content.WriteString(ErrorStyle.Render(row.err.Error()))
	} else {
		r := row.result
		fmt.Fprintf(&content, "Route:      %s → %s (%s km, rating %s)\n",
			r.Origin, r.Destination, greenops.FormatFloat(r.DistanceKm, 0), row.route.Rating)
		fmt.Fprintf(&content, "Booking:    %d x %s\n", r.Passengers, r.CabinClass)
		fmt.Fprintf(&content, "Fuel:       %s L\n", greenops.FormatFloat(r.FuelLiters, 1))
		fmt.Fprintf(&content, "CO2:        %s\n", greenops.FormatKg(r.EmissionsCO2Kg))
		fmt.Fprintf(&content, "CO2e:       %s\n", greenops.FormatKg(r.EmissionsCO2eKg))
		fmt.Fprintf(&content, "Range:      %s - %s\n",
			greenops.FormatKg(r.Uncertainty.MinKg), greenops.FormatKg(r.Uncertainty.MaxKg))
		fmt.Fprintf(&content, "Per person: %s\n", greenops.FormatKg(r.PerPassenger.CO2eKg))

		content.WriteString("\nMethodology:\n")
		for _, f := range r.Methodology {
			fmt.Fprintf(&content, "  %-30s %12s %s\n", f.Name, greenops.FormatFloat(f.Value, 4), f.Unit)
		}

		if eq, err := greenops.CalculateKg(r.EmissionsCO2eKg); err == nil && !eq.IsEmpty {
			content.WriteString("\n")
			content.WriteString(SubtleStyle.Render(eq.DisplayText))
		}
	}

	width := min(max(m.width-2, 40), 90) //nolint:mnd // Box bounds.
	return BoxStyle.Width(width).Render(content.String()) + "\n" +
		SubtleStyle.Render("esc back • q quit")
}

// buildTable creates the route table for the current rows and height.
func (m RouteExplorerModel) buildTable(focused bool) table.Model {
	columns := []table.Column{
		{Title: "Route", Width: 10},      //nolint:mnd // Column width.
		{Title: "Distance", Width: 10},   //nolint:mnd // Column width.
		{Title: "Rating", Width: 6},      //nolint:mnd // Column width.
		{Title: "CO2e", Width: 12},       //nolint:mnd // Column width.
		{Title: "Per person", Width: 12}, //nolint:mnd // Column width.
		{Title: "Range", Width: 22},      //nolint:mnd // Column width.
	}

	rows := make([]table.Row, len(m.rows))
	for i, r := range m.rows {
		if r.err != nil {
			rows[i] = table.Row{r.route.ID, "", string(r.route.Rating), "error", "", ""}
			continue
		}
		res := r.result
		rows[i] = table.Row{
			r.route.ID,
			greenops.FormatFloat(res.DistanceKm, 0) + " km",
			string(r.route.Rating),
			greenops.FormatKg(res.EmissionsCO2eKg),
			greenops.FormatKg(res.PerPassenger.CO2eKg),
			greenops.FormatKg(res.Uncertainty.MinKg) + " - " + greenops.FormatKg(res.Uncertainty.MaxKg),
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(focused),
		table.WithHeight(max(m.height-tableChrome, minTableRows)),
	)

	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = TableSelectedStyle
	t.SetStyles(s)

	return t
}
