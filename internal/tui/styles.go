// Package tui contains the interactive Bubble Tea views of the CLI.
package tui

import "github.com/charmbracelet/lipgloss"

// Shared styles.
var (
	TitleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	SubtleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Italic(true)
	ErrorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	TableSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("28"))
	BoxStyle           = newBoxStyle()
	TableHeaderStyle   = newTableHeaderStyle()
)

func newBoxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
}

func newTableHeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true)
}

// Key bindings.
const (
	keyQuit  = "q"
	keyCtrlC = "ctrl+c"
	keyEnter = "enter"
	keyEsc   = "esc"
	keySlash = "/"
	keyCabin = "c"
	keyPlus  = "+"
	keyMinus = "-"
)

// Default dimensions before the first WindowSizeMsg.
const (
	defaultWidth  = 100
	defaultHeight = 24
)

// tableChrome is the number of lines around the table.
const tableChrome = 8

const minTableRows = 3
