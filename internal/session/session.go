package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"mtreta/internal/clock"
	"mtreta/internal/directory"
	"mtreta/internal/domain"
	"mtreta/internal/reconciler"
	"mtreta/internal/selection"
	"mtreta/pkg/mtrapi"
)

var (
	ErrClosed     = errors.New("session closed")
	ErrIncomplete = errors.New("selection incomplete")
)

// Fetcher requests a schedule using the selection's upstream parameters.
type Fetcher interface {
	Fetch(ctx context.Context, params url.Values) (*mtrapi.Response, error)
}

// Sink receives everything a session wants shown. Calls come from the session
// goroutine and must not block.
type Sink interface {
	Board(b domain.Board)
	Clock(display string)
	Notify(n domain.Notification)
}

type Config struct {
	PollInterval  time.Duration
	ClockInterval time.Duration
	Location      *time.Location
	Reconciler    reconciler.Options
	// Now is the wall clock the displayed time advances with. Defaults to
	// time.Now.
	Now func() time.Time
}

type commandKind int

const (
	cmdSelectLine commandKind = iota
	cmdSelectStation
	cmdClear
	cmdRefresh
)

type command struct {
	kind  commandKind
	code  string
	reply chan error
}

type result struct {
	ticket reconciler.Ticket
	resp   *mtrapi.Response
	err    error
}

// Session is one viewer's selection, board and timers. All state is owned by
// the Run goroutine; the exported methods hand commands to it.
type Session struct {
	ID string

	fetcher Fetcher
	sink    Sink
	cfg     Config
	logger  *slog.Logger

	commands chan command
	results  chan result
	done     chan struct{}

	holder *selection.Holder
	rec    *reconciler.Reconciler
	clock  *clock.Local

	poll        *time.Ticker
	tick        *time.Ticker
	inflight    bool
	inflightSeq uint64
	cancelFetch context.CancelFunc
}

func New(id string, dir *directory.Directory, fetcher Fetcher, sink Sink, cfg Config, logger *slog.Logger) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = time.Second
	}
	if cfg.Reconciler.Location == nil {
		cfg.Reconciler.Location = cfg.Location
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Session{
		ID:       id,
		fetcher:  fetcher,
		sink:     sink,
		cfg:      cfg,
		logger:   logger.With("component", "session", "session_id", id),
		commands: make(chan command),
		results:  make(chan result, 4),
		done:     make(chan struct{}),
		holder:   selection.New(dir),
		rec:      reconciler.New(dir, cfg.Reconciler, logger),
		clock:    clock.NewWithNow(cfg.Location, cfg.Now),
	}
}

func (s *Session) SelectLine(ctx context.Context, code string) error {
	return s.do(ctx, command{kind: cmdSelectLine, code: code})
}

func (s *Session) SelectStation(ctx context.Context, code string) error {
	return s.do(ctx, command{kind: cmdSelectStation, code: code})
}

func (s *Session) Clear(ctx context.Context) error {
	return s.do(ctx, command{kind: cmdClear})
}

// Refresh runs a foreground fetch for the current selection.
func (s *Session) Refresh(ctx context.Context) error {
	return s.do(ctx, command{kind: cmdRefresh})
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) do(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)

	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	defer s.stopTimers()
	defer s.stopFetch()

	s.publishBoard()
	s.sink.Clock(s.clock.Display())

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-s.commands:
			cmd.reply <- s.handle(ctx, cmd)

		case <-tickerC(s.poll):
			if s.inflight {
				s.logger.Debug("skipping poll, fetch still in flight", "seq", s.inflightSeq)
				continue
			}
			s.startFetch(ctx, reconciler.Background)

		case <-tickerC(s.tick):
			s.sink.Clock(s.clock.Display())

		case res := <-s.results:
			s.apply(res)
		}
	}
}

func (s *Session) handle(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdSelectLine:
		if err := s.holder.SelectLine(cmd.code); err != nil {
			return err
		}
	case cmdSelectStation:
		if err := s.holder.SelectStation(cmd.code); err != nil {
			return err
		}
	case cmdClear:
		s.holder.Clear()
	case cmdRefresh:
		if !s.holder.Complete() {
			return ErrIncomplete
		}
		s.startFetch(ctx, reconciler.Foreground)
		return nil
	}

	s.selectionChanged(ctx)
	return nil
}

// selectionChanged cancels everything tied to the previous selection and
// schedules fresh work for the new one.
func (s *Session) selectionChanged(ctx context.Context) {
	s.stopTimers()
	s.stopFetch()
	s.rec.Reset()
	s.clock.Clear()
	s.sink.Clock(s.clock.Display())

	if !s.holder.Complete() {
		s.logger.Debug("selection incomplete, board cleared")
		s.publishBoard()
		return
	}

	s.logger.Info("selection changed", "key", s.holder.Key())
	s.startFetch(ctx, reconciler.Foreground)
	s.poll = time.NewTicker(s.cfg.PollInterval)
}

func (s *Session) startFetch(ctx context.Context, mode reconciler.Mode) {
	line, _ := s.holder.Line()
	station, _ := s.holder.Station()
	params, _ := s.holder.Params()

	s.stopFetch()
	ticket := s.rec.Begin(mode, line.Code, station.Code)

	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	s.inflight = true
	s.inflightSeq = ticket.Seq

	s.publishBoard()

	go func() {
		resp, err := s.fetcher.Fetch(fetchCtx, params)
		select {
		case s.results <- result{ticket: ticket, resp: resp, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) apply(res result) {
	if s.inflight && res.ticket.Seq == s.inflightSeq {
		s.inflight = false
		s.cancelFetch()
		s.cancelFetch = nil
	}

	out := s.rec.Complete(res.ticket, res.resp, res.err)
	if !out.Applied {
		return
	}

	if out.AnchorUpdated {
		anchor, _ := s.rec.Anchor()
		s.clock.Reset(anchor)
		s.sink.Clock(s.clock.Display())
	}
	if s.clock.Anchored() && s.tick == nil {
		s.tick = time.NewTicker(s.cfg.ClockInterval)
	}

	s.publishBoard()
	if out.Notification != nil {
		s.sink.Notify(*out.Notification)
	}
}

func (s *Session) publishBoard() {
	b := s.rec.Board()
	b.Background = s.holder.Background()
	if line, ok := s.holder.Line(); ok {
		b.LineCode = line.Code
		b.LineColor = line.Color
	}
	if station, ok := s.holder.Station(); ok {
		b.StationCode = station.Code
		b.StationName = station.Name
	}
	s.sink.Board(b)
}

func (s *Session) stopFetch() {
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.inflight = false
}

func (s *Session) stopTimers() {
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
