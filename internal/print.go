package internal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgHiYellow, color.Bold)
	finderStyle  = color.New(color.FgYellow, color.Bold)
	passStyle    = color.New(color.FgCyan, color.Bold)
	countStyle   = color.New(color.FgHiBlue, color.Bold)
	acceptStyle  = color.New(color.FgGreen, color.Bold)
	noStyle      = color.New(color.FgWhite)
)

var (
	summaryTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	summaryLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			Width(14)
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// FormatOpportunities renders candidates grouped by finder, the way a dry
// run lists them.
func FormatOpportunities(cands []tt.Candidate) string {
	var b strings.Builder
	last := ""
	count := 0
	for _, c := range cands {
		if c.Finder != last {
			if last != "" {
				b.WriteString(countStyle.Sprintf("  (%d)\n", count))
			}
			b.WriteString(finderStyle.Sprint(c.Finder) + "\n")
			last = c.Finder
			count = 0
		}
		b.WriteString(noStyle.Sprintf("  - %s\n", c.Opportunity))
		count++
	}
	if last != "" {
		b.WriteString(countStyle.Sprintf("  (%d)\n", count))
	}
	return b.String()
}

func verdictStyle(v tt.Verdict) *color.Color {
	switch v {
	case tt.Accepted:
		return acceptStyle
	case tt.OracleFailure:
		return errorStyle
	case tt.Invalid:
		return warningStyle
	default:
		return noStyle
	}
}

// FormatTrial renders one trial as a single console line.
func FormatTrial(ev tt.TrialEvent) string {
	return passStyle.Sprintf("pass %d ", ev.Pass) +
		finderStyle.Sprint(ev.Finder) +
		fmt.Sprintf(" chunk %d/%d ", ev.Applied, ev.ChunkSize) +
		verdictStyle(ev.Verdict).Sprint(ev.Verdict) +
		countStyle.Sprintf(" [%d left] ", ev.Remaining) +
		formatMeasure(ev.Measure)
}

// FormatPass renders the end-of-pass line.
func FormatPass(ev tt.PassEvent) string {
	return passStyle.Sprintf("pass %d: ", ev.Pass) +
		fmt.Sprintf("%d opportunities, %d trials, ", ev.Opportunities, ev.Trials) +
		acceptStyle.Sprintf("%d accepted", ev.Accepted) +
		", " + formatMeasure(ev.Measure)
}

func formatMeasure(m ir.Measure) string {
	return fmt.Sprintf("%d instructions, %d edges", m.Instructions, m.Edges)
}

func percent(before, after int) float64 {
	if before == 0 {
		return 0
	}
	return 100 * float64(before-after) / float64(before)
}

// FormatSummary renders the end-of-run report box.
func FormatSummary(res *Result) string {
	row := func(label, value string) string {
		return summaryLabel.Render(label) + value
	}
	outcome := "fixpoint"
	switch {
	case res.Stopped:
		outcome = "stopped: " + res.StopReason
	case !res.Fixpoint:
		outcome = "no further progress"
	}

	lines := []string{
		summaryTitle.Render("reduction summary"),
		row("instructions", fmt.Sprintf("%d -> %d (-%.1f%%)",
			res.Initial.Instructions, res.Final.Instructions,
			percent(res.Initial.Instructions, res.Final.Instructions))),
		row("edges", fmt.Sprintf("%d -> %d", res.Initial.Edges, res.Final.Edges)),
		row("passes", fmt.Sprint(len(res.Passes))),
		row("trials", fmt.Sprintf("%d (%d accepted, %d oracle calls)", res.Trials, res.Accepted, res.OracleCalls)),
		row("outcome", outcome),
	}
	return summaryBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// ConsoleObserver prints pass lines, and trial lines when Verbose is set.
type ConsoleObserver struct {
	Out     io.Writer
	Verbose bool
}

var _ tt.Observer = (*ConsoleObserver)(nil)

func (o *ConsoleObserver) PassStarted(tt.PassEvent) {}

func (o *ConsoleObserver) Trial(ev tt.TrialEvent) {
	if o.Verbose {
		fmt.Fprintln(o.Out, FormatTrial(ev))
	}
}

func (o *ConsoleObserver) PassFinished(ev tt.PassEvent) {
	fmt.Fprintln(o.Out, FormatPass(ev))
}
