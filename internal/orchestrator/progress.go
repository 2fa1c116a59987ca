package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/applet-tools/cardmeter/internal/model"
)

// timeRound is the display precision of the summary duration.
const timeRound = 100 * time.Millisecond

// Printer writes one human-readable line per attempted tuple and a
// summary at the end of the run. A nil Printer discards all output.
type Printer struct {
	out io.Writer

	measuredMark string
	cachedMark   string
	failedMark   string
}

// NewPrinter creates a Printer writing to out, typically os.Stdout.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:          out,
		measuredMark: color.GreenString("✓"),
		cachedMark:   color.YellowString("="),
		failedMark:   color.RedString("✗"),
	}
}

func (p *Printer) measured(ref model.PackageRef, m model.StorageMeasurement) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "%s %-40s persistent %7d B, transient %5d B\n",
		p.measuredMark, ref.String(), m.PersistentBytes, m.TransientBytes)
}

func (p *Printer) cached(ref model.PackageRef) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "%s %-40s already measured\n", p.cachedMark, ref.String())
}

func (p *Printer) failed(ref model.PackageRef, err error) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "%s %-40s %v\n", p.failedMark, ref.String(), err)
}

func (p *Printer) summary(s Stats) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "\n%d measured, %d cached, %d failed in %s\n",
		s.Measured, s.Cached, s.Failed, s.Elapsed.Round(timeRound))
}
