package terminal

import (
	"fmt"
	"io"

	"github.com/rodaine/table"

	"mtreta/internal/clock"
	"mtreta/internal/domain"
)

const (
	noDataLine1 = "No train data available for this station."
	noDataLine2 = "This may be the last station on the line."
)

// Printer renders a session to a terminal. It is used from the session
// goroutine only.
type Printer struct {
	w     io.Writer
	clock string
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, clock: clock.Placeholder}
}

func (p *Printer) Board(b domain.Board) {
	if b.Loading || b.State == domain.BoardIdle || b.State == domain.BoardLoading {
		return
	}

	fmt.Fprintf(p.w, "\n%s (%s)  %s", b.StationName, b.LineCode, p.clock)
	if b.Delayed {
		fmt.Fprint(p.w, "  [delays reported]")
	}
	fmt.Fprintln(p.w)

	switch b.State {
	case domain.BoardEmpty, domain.BoardError:
		fmt.Fprintln(p.w, noDataLine1)
		fmt.Fprintln(p.w, noDataLine2)
		return
	}

	tbl := table.New("To", "Plat.", "Dir.", "Arrival").WithWriter(p.w)
	for _, a := range b.Arrivals {
		tbl.AddRow(a.Destination, a.Platform, a.Direction, a.Label)
	}
	tbl.Print()
}

func (p *Printer) Clock(display string) {
	p.clock = display
}

func (p *Printer) Notify(n domain.Notification) {
	fmt.Fprintf(p.w, "! %s: %s\n", n.Title, n.Message)
}

// PrintLines lists the directory.
func PrintLines(w io.Writer, lines []domain.Line, withStations bool) {
	tbl := table.New("Code", "Line", "Colour", "Stations").WithWriter(w)
	for _, l := range lines {
		tbl.AddRow(l.Code, l.Name, l.Color, len(l.Stations))
	}
	tbl.Print()

	if !withStations {
		return
	}
	for _, l := range lines {
		fmt.Fprintf(w, "\n%s %s\n", l.Code, l.Name)
		st := table.New("Code", "Station").WithWriter(w)
		for _, s := range l.Stations {
			st.AddRow(s.Code, s.Name)
		}
		st.Print()
	}
}
