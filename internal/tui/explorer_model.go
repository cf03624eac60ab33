package tui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/ecojourney/internal/emissions"
	"github.com/rshade/ecojourney/internal/refdata"
)

// ViewState represents the screen the explorer is showing.
type ViewState int

const (
	// ViewStateList shows the route table.
	ViewStateList ViewState = iota
	// ViewStateDetail shows the calculation trace of one route.
	ViewStateDetail
	// ViewStateQuitting indicates the program is exiting.
	ViewStateQuitting
)

// maxPassengers caps the passenger count the explorer cycles through.
const maxPassengers = 9

// EstimateFunc prices one booking without recording it.
type EstimateFunc func(emissions.Request) (emissions.FlightEmissionResult, error)

// Settings are the booking parameters applied to every route.
type Settings struct {
	Passengers int
	Cabin      emissions.CabinClass
}

type routeRow struct {
	route  refdata.Route
	result emissions.FlightEmissionResult
	err    error
}

// RouteExplorerModel is the Bubble Tea model for browsing route emissions.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type RouteExplorerModel struct {
	state    ViewState
	routes   []refdata.Route // sorted by id
	rows     []routeRow      // filtered and estimated
	estimate EstimateFunc
	settings Settings

	table      table.Model
	textInput  textinput.Model
	showFilter bool
	selected   int

	width  int
	height int
}

// NewRouteExplorerModel creates the explorer over routes. Invalid settings
// fall back to one economy passenger.
func NewRouteExplorerModel(routes []refdata.Route, estimate EstimateFunc, settings Settings) RouteExplorerModel {
	sorted := slices.Clone(routes)
	slices.SortFunc(sorted, func(a, b refdata.Route) int { return strings.Compare(a.ID, b.ID) })

	if settings.Passengers < 1 || settings.Passengers > maxPassengers {
		settings.Passengers = 1
	}
	if _, err := emissions.ParseCabinClass(string(settings.Cabin)); err != nil || settings.Cabin == "" {
		settings.Cabin = emissions.CabinEconomy
	}

	m := RouteExplorerModel{
		state:     ViewStateList,
		routes:    sorted,
		estimate:  estimate,
		settings:  settings,
		textInput: newTextInput(),
		width:     defaultWidth,
		height:    defaultHeight,
	}
	m.refresh()
	return m
}

func newTextInput() textinput.Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter routes, e.g. LHR"
	ti.CharLimit = 16
	return ti
}

// Init initializes the model (Bubble Tea interface).
func (m RouteExplorerModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model state (Bubble Tea interface).
func (m RouteExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if winMsg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = winMsg.Width
		m.height = winMsg.Height
		m.refresh()
		return m, nil
	}

	if m.showFilter {
		return m.handleFilterInput(msg)
	}

	switch m.state {
	case ViewStateList:
		return m.handleListUpdate(msg)
	case ViewStateDetail:
		return m.handleDetailUpdate(msg)
	case ViewStateQuitting:
		return m, nil
	default:
		return m, nil
	}
}

func (m RouteExplorerModel) handleFilterInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyEnter, keyEsc:
			m.showFilter = false
			m.textInput.Blur()
			m.refresh()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.refresh()
	return m, cmd
}

func (m RouteExplorerModel) handleListUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	switch keyMsg.String() {
	case keyQuit, keyCtrlC:
		m.state = ViewStateQuitting
		return m, tea.Quit
	case keyEnter:
		m.selected = m.table.Cursor()
		if m.selected >= 0 && m.selected < len(m.rows) {
			m.state = ViewStateDetail
			m.table.Blur()
		}
		return m, nil
	case keySlash:
		m.showFilter = true
		return m, m.textInput.Focus()
	case keyCabin:
		m.settings.Cabin = nextCabin(m.settings.Cabin)
		m.refresh()
		return m, nil
	case keyPlus:
		if m.settings.Passengers < maxPassengers {
			m.settings.Passengers++
			m.refresh()
		}
		return m, nil
	case keyMinus:
		if m.settings.Passengers > 1 {
			m.settings.Passengers--
			m.refresh()
		}
		return m, nil
	case keyEsc:
		if m.textInput.Value() != "" {
			m.textInput.SetValue("")
			m.refresh()
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(keyMsg)
		return m, cmd
	}
}

func (m RouteExplorerModel) handleDetailUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyQuit, keyCtrlC:
			m.state = ViewStateQuitting
			return m, tea.Quit
		case keyEsc:
			m.state = ViewStateList
			m.table.Focus()
			return m, nil
		}
	}
	return m, nil
}

func nextCabin(c emissions.CabinClass) emissions.CabinClass {
	switch c {
	case emissions.CabinEconomy:
		return emissions.CabinBusiness
	case emissions.CabinBusiness:
		return emissions.CabinFirst
	default:
		return emissions.CabinEconomy
	}
}

// refresh re-filters and re-estimates every route, then rebuilds the
// table keeping the cursor in range.
func (m *RouteExplorerModel) refresh() {
	query := strings.ToUpper(strings.TrimSpace(m.textInput.Value()))
	rows := make([]routeRow, 0, len(m.routes))
	for _, r := range m.routes {
		if query != "" && !strings.Contains(r.ID, query) {
			continue
		}
		res, err := m.estimate(emissions.Request{
			RouteID:    r.ID,
			Passengers: m.settings.Passengers,
			CabinClass: m.settings.Cabin,
		})
		rows = append(rows, routeRow{route: r, result: res, err: err})
	}
	m.rows = rows

	cursor := m.table.Cursor()
	focused := m.state == ViewStateList
	m.table = m.buildTable(focused)
	m.table.SetCursor(min(cursor, max(len(rows)-1, 0)))
}
