package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/refdata"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
)

const (
	defaultBoxWidth    = 60
	minBoxWidth        = 30
	boxPaddingWidth    = 4
	progressBarWidth   = 30
	progressFilledChar = "█"
	progressEmptyChar  = "░"
	tabPadding         = 2
)

func boxBorderColor() lipgloss.Color { return lipgloss.Color("240") }
func boxTitleColor() lipgloss.Color { return lipgloss.Color("42") }
func progressBarColor() lipgloss.Color { return lipgloss.Color("42") }
func mutedColor() lipgloss.Color { return lipgloss.Color("246") }

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// isWriterTerminal reports whether w is a terminal file.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultBoxWidth + boxPaddingWidth
}

func boxWidth(w io.Writer) int {
	width := min(terminalWidth(w)-boxPaddingWidth, defaultBoxWidth)
	return max(width, minBoxWidth)
}

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("%w: unsupported output format %q (table or json)", greenops.ErrInvalidInput, format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderBox writes body inside a titled box on a TTY, or under a plain
// underlined heading otherwise.
func renderBox(w io.Writer, title, body string) error {
	if !isWriterTerminal(w) {
		_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", title, strings.Repeat("=", len(title)), body)
		return err
	}
	width := boxWidth(w)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(boxTitleColor())
	borderStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(boxBorderColor()).
		Padding(0, 1).
		Width(width)

	content := titleStyle.Render(title) + "\n" + strings.Repeat("─", width-boxPaddingWidth) + "\n" + body
	_, err := fmt.Fprintln(w, borderStyle.Render(content))
	return err
}

// progressBar renders percent (0..100) as a bar of the given width. The
// bar is coloured only on a TTY.
func progressBar(percent float64, width int, styled bool) string {
	filled := int(percent / 100 * float64(width))
	filled = min(max(filled, 0), width)
	bar := strings.Repeat(progressFilledChar, filled)
	rest := strings.Repeat(progressEmptyChar, width-filled)
	if styled {
		bar = lipgloss.NewStyle().Foreground(progressBarColor()).Render(bar)
		rest = lipgloss.NewStyle().Foreground(boxBorderColor()).Render(rest)
	}
	return bar + rest + fmt.Sprintf(" %.0f%%", percent)
}

func renderProgress(w io.Writer, p ecopoints.Progress) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Points:       %s\n", greenops.FormatNumber(p.Points))
	fmt.Fprintf(&b, "Tier:         %s (level %d, x%s points)\n",
		p.CurrentTier.Name, p.CurrentTier.Level, greenops.FormatFloat(p.CurrentTier.PointsMultiplier, 2))
	if p.AtTopTier() {
		b.WriteString("Next tier:    none, top tier reached\n")
	} else {
		fmt.Fprintf(&b, "Next tier:    %s in %s points\n", p.NextTier.Name, greenops.FormatNumber(*p.PointsToNext))
		b.WriteString("\n")
		b.WriteString(progressBar(p.ProgressPercent, progressBarWidth, isWriterTerminal(w)))
	}
	if len(p.CurrentTier.Perks) > 0 {
		b.WriteString("\nPerks:\n")
		for _, perk := range p.CurrentTier.Perks {
			fmt.Fprintf(&b, "  - %s\n", perk)
		}
	}
	return renderBox(w, "ECO-POINTS", strings.TrimRight(b.String(), "\n"))
}

func renderTiers(w io.Writer, tiers []refdata.Tier) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tID\tNAME\tPOINTS\tMULTIPLIER")
	fmt.Fprintln(tw, "-----\t--\t----\t------\t----------")
	for _, t := range tiers {
		span := greenops.FormatNumber(t.MinPoints) + "+"
		if t.MaxPoints != nil {
			span = greenops.FormatNumber(t.MinPoints) + " - " + greenops.FormatNumber(*t.MaxPoints-1)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\tx%s\n",
			t.Level, t.ID, t.Name, span, greenops.FormatFloat(t.PointsMultiplier, 2))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table writer: %w", err)
	}
	return nil
}

func mutedLine(w io.Writer, s string) string {
	if isWriterTerminal(w) {
		return lipgloss.NewStyle().Italic(true).Foreground(mutedColor()).Render(s)
	}
	return s
}
