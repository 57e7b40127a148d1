package reduce

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/gnolang/irreduce/internal"
	tt "github.com/gnolang/irreduce/internal/types"
)

// ProgressObserver draws one bar per pass over the opportunities it
// collected and prints the pass summary line when the pass ends.
type ProgressObserver struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

var _ tt.Observer = (*ProgressObserver)(nil)

func NewProgressObserver(out io.Writer) *ProgressObserver {
	return &ProgressObserver{out: out}
}

func (p *ProgressObserver) PassStarted(ev tt.PassEvent) {
	if ev.Opportunities == 0 {
		p.bar = nil
		return
	}
	p.bar = progressbar.NewOptions(ev.Opportunities,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(fmt.Sprintf("pass %d", ev.Pass)),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func (p *ProgressObserver) Trial(ev tt.TrialEvent) {
	if p.bar != nil {
		_ = p.bar.Set(ev.Eliminated)
	}
}

func (p *ProgressObserver) PassFinished(ev tt.PassEvent) {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
		fmt.Fprintln(p.out)
	}
	fmt.Fprintln(p.out, internal.FormatPass(ev))
}

// Observers fans events out to several observers.
type Observers []tt.Observer

func (o Observers) PassStarted(ev tt.PassEvent) {
	for _, obs := range o {
		obs.PassStarted(ev)
	}
}

func (o Observers) Trial(ev tt.TrialEvent) {
	for _, obs := range o {
		obs.Trial(ev)
	}
}

func (o Observers) PassFinished(ev tt.PassEvent) {
	for _, obs := range o {
		obs.PassFinished(ev)
	}
}
