// Package render turns usage frames into output: a terminal view for people
// and an in-memory store for the status API.
package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
)

// DefaultColumns is the number of per-core columns in the terminal view.
const DefaultColumns = 3

// Sink consumes usage frames produced by the Printer.
type Sink interface {
	// Render outputs one frame. The frame is only valid during the call.
	Render(frame []procstat.Usage) error

	// Close releases the sink.
	Close() error
}

// Format writes frame as text: the aggregate entry on an "Avg." line, then
// one cell per core laid out in the given number of columns.
func Format(w io.Writer, frame []procstat.Usage, columns int) error {
	if len(frame) < 2 {
		return nil
	}
	if columns <= 0 {
		columns = DefaultColumns
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "Avg.\t%05.2f%%\n", frame[0].Percent)

	cores := frame[1:]
	for i, u := range cores {
		fmt.Fprintf(tw, "%s\t%05.2f%%", u.Name, u.Percent)
		if (i+1)%columns == 0 || i == len(cores)-1 {
			fmt.Fprint(tw, "\n")
		} else {
			fmt.Fprint(tw, "\t")
		}
	}
	return tw.Flush()
}
