package reconciler

import (
	"log/slog"
	"time"

	"mtreta/internal/domain"
	"mtreta/pkg/mtrapi"
)

const (
	errorTitle   = "Error"
	errorMessage = "Could not fetch arrival times. Please try again later."
)

// Ticket identifies one fetch. Only the most recently issued ticket may change
// the board.
type Ticket struct {
	Seq         uint64
	Mode        Mode
	LineCode    string
	StationCode string
}

// Outcome reports what Complete did with a fetch result.
type Outcome struct {
	Applied bool
	// AnchorUpdated is set when the payload carried a readable current time.
	AnchorUpdated bool
	Notification  *domain.Notification
}

// Reconciler turns upstream payloads into the arrivals board. It is owned by a
// single goroutine and is not safe for concurrent use.
type Reconciler struct {
	names  Resolver
	opts   Options
	logger *slog.Logger

	seq     uint64
	key     string
	state   domain.BoardState
	loading bool
	rows    []domain.MergedArrival
	anchor  *time.Time
	delayed bool
}

func New(names Resolver, opts Options, logger *slog.Logger) *Reconciler {
	if opts.Policy == "" {
		opts.Policy = PolicyKeepStale
	}
	if opts.ValidFilter == "" {
		opts.ValidFilter = IncludeInvalid
	}
	return &Reconciler{
		names:  names,
		opts:   opts,
		logger: logger.With("component", "reconciler"),
		state:  domain.BoardIdle,
	}
}

// Begin starts a fetch for the given station. Any ticket issued earlier is
// superseded. Foreground fetches clear the board first; background fetches
// leave it in place.
func (r *Reconciler) Begin(mode Mode, lineCode, stationCode string) Ticket {
	r.seq++
	key := domain.ScheduleKey(lineCode, stationCode)

	if r.clears(mode) || key != r.key {
		r.rows = nil
		r.state = domain.BoardLoading
		r.delayed = false
	}
	r.key = key
	r.loading = true

	return Ticket{Seq: r.seq, Mode: mode, LineCode: lineCode, StationCode: stationCode}
}

// Complete applies the result of the fetch identified by t.
func (r *Reconciler) Complete(t Ticket, resp *mtrapi.Response, err error) Outcome {
	if t.Seq != r.seq {
		r.logger.Debug("discarding superseded fetch",
			"seq", t.Seq,
			"latest", r.seq,
			"line", t.LineCode,
			"station", t.StationCode,
		)
		return Outcome{}
	}
	r.loading = false

	if err != nil {
		return r.fail(t, err)
	}

	r.delayed = resp.Delayed()
	anchorUpdated := false
	if anchor, perr := ParseTimestamp(resp.CurrTime, r.opts.location()); perr == nil {
		r.anchor = &anchor
		anchorUpdated = true
	} else {
		r.logger.Warn("unreadable current time in payload", "curr_time", resp.CurrTime)
	}

	var rows []domain.MergedArrival
	if data, ok := resp.Schedule(t.LineCode, t.StationCode); ok {
		rows = Merge(data, r.names, r.opts)
	}

	if len(rows) == 0 {
		out := r.empty(t)
		out.AnchorUpdated = anchorUpdated
		return out
	}

	r.rows = rows
	r.state = domain.BoardReady
	return Outcome{Applied: true, AnchorUpdated: anchorUpdated}
}

// Reset drops the board and invalidates any fetch still in flight.
func (r *Reconciler) Reset() {
	r.seq++
	r.key = ""
	r.state = domain.BoardIdle
	r.loading = false
	r.rows = nil
	r.anchor = nil
	r.delayed = false
}

// Board returns the reconciler's part of the display model.
func (r *Reconciler) Board() domain.Board {
	b := domain.Board{
		State:    r.state,
		Loading:  r.loading,
		Arrivals: make([]domain.MergedArrival, len(r.rows)),
		Delayed:  r.delayed,
	}
	copy(b.Arrivals, r.rows)
	if r.anchor != nil {
		a := *r.anchor
		b.Anchor = &a
	}
	return b
}

func (r *Reconciler) Anchor() (time.Time, bool) {
	if r.anchor == nil {
		return time.Time{}, false
	}
	return *r.anchor, true
}

func (r *Reconciler) clears(mode Mode) bool {
	return mode == Foreground || r.opts.Policy == PolicyReplace
}

func (r *Reconciler) fail(t Ticket, err error) Outcome {
	if !r.clears(t.Mode) && len(r.rows) > 0 {
		r.logger.Warn("background refresh failed, keeping stale arrivals",
			"line", t.LineCode,
			"station", t.StationCode,
			"arrivals", len(r.rows),
			"error_class", errorClass(err),
			"error", err,
		)
		return Outcome{Applied: true}
	}

	r.logger.Error("failed to fetch arrivals",
		"mode", t.Mode.String(),
		"line", t.LineCode,
		"station", t.StationCode,
		"error_class", errorClass(err),
		"error", err,
	)
	r.rows = nil
	r.state = domain.BoardError
	return Outcome{
		Applied: true,
		Notification: &domain.Notification{
			Severity: domain.SeverityDestructive,
			Title:    errorTitle,
			Message:  errorMessage,
		},
	}
}

func (r *Reconciler) empty(t Ticket) Outcome {
	if !r.clears(t.Mode) && len(r.rows) > 0 {
		r.logger.Warn("background refresh returned no arrivals, keeping stale arrivals",
			"line", t.LineCode,
			"station", t.StationCode,
			"arrivals", len(r.rows),
		)
		return Outcome{Applied: true}
	}

	r.rows = nil
	r.state = domain.BoardEmpty
	return Outcome{Applied: true}
}

func errorClass(err error) string {
	switch {
	case mtrapi.IsNetworkError(err):
		return "network"
	case mtrapi.IsApplicationError(err):
		return "application"
	default:
		return "other"
	}
}
