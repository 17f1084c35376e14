package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtreta/internal/clock"
	"mtreta/internal/directory"
	"mtreta/internal/domain"
	"mtreta/internal/selection"
	"mtreta/pkg/mtrapi"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSink struct {
	mu            sync.Mutex
	boards        []domain.Board
	clocks        []string
	notifications []domain.Notification
}

func (r *recordingSink) Board(b domain.Board) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards = append(r.boards, b)
}

func (r *recordingSink) Clock(display string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clocks = append(r.clocks, display)
}

func (r *recordingSink) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingSink) last() domain.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.boards) == 0 {
		return domain.Board{}
	}
	return r.boards[len(r.boards)-1]
}

func (r *recordingSink) notified() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

func (r *recordingSink) lastClock() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clocks) == 0 {
		return ""
	}
	return r.clocks[len(r.clocks)-1]
}

type fetchFunc func(ctx context.Context, line, station string) (*mtrapi.Response, error)

type fakeFetcher struct {
	calls  atomic.Int32
	fn     atomic.Value
	params atomic.Value
}

func newFakeFetcher(fn fetchFunc) *fakeFetcher {
	f := &fakeFetcher{}
	f.fn.Store(fn)
	return f
}

func (f *fakeFetcher) set(fn fetchFunc) {
	f.fn.Store(fn)
}

func (f *fakeFetcher) Fetch(ctx context.Context, params url.Values) (*mtrapi.Response, error) {
	f.calls.Add(1)
	f.params.Store(params)
	return f.fn.Load().(fetchFunc)(ctx, params.Get("line"), params.Get("sta"))
}

func (f *fakeFetcher) lastParams() url.Values {
	p, _ := f.params.Load().(url.Values)
	return p
}

func okResponse(line, station string) *mtrapi.Response {
	return &mtrapi.Response{
		Status:   1,
		CurrTime: "2024-01-01T10:00:00Z",
		IsDelay:  "N",
		Data: map[string]domain.ArrivalData{
			domain.ScheduleKey(line, station): {
				Up: []domain.TrainArrival{{TTNT: "1", Plat: "2", Time: "2024-01-01T10:01:00Z", Dest: "WKS"}},
				Down: []domain.TrainArrival{
					{TTNT: "6", Plat: "1", Time: "2024-01-01T10:06:00Z", Dest: "TUM"},
				},
			},
		},
	}
}

func alwaysOK(_ context.Context, line, station string) (*mtrapi.Response, error) {
	return okResponse(line, station), nil
}

func alwaysFail(context.Context, string, string) (*mtrapi.Response, error) {
	return nil, &mtrapi.ApplicationError{Message: "status 0"}
}

func startSession(t *testing.T, fetcher Fetcher, poll time.Duration) (*Session, *recordingSink) {
	t.Helper()
	return startSessionWith(t, fetcher, Config{
		PollInterval:  poll,
		ClockInterval: 10 * time.Millisecond,
		Location:      time.UTC,
	})
}

func startSessionWith(t *testing.T, fetcher Fetcher, cfg Config) (*Session, *recordingSink) {
	t.Helper()
	dir, err := directory.Default()
	require.NoError(t, err)

	sink := &recordingSink{}
	s := New("test", dir, fetcher, sink, cfg, discard)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s, sink
}

func selectStation(t *testing.T, s *Session, line, station string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SelectLine(ctx, line))
	require.NoError(t, s.SelectStation(ctx, station))
}

func TestSessionForegroundFetch(t *testing.T) {
	fetcher := newFakeFetcher(alwaysOK)
	s, sink := startSession(t, fetcher, time.Hour)

	selectStation(t, s, "TML", "AUS")

	require.Eventually(t, func() bool {
		return sink.last().State == domain.BoardReady
	}, time.Second, 5*time.Millisecond)

	b := sink.last()
	assert.Equal(t, "TML", b.LineCode)
	assert.Equal(t, "AUS", b.StationCode)
	assert.Equal(t, "Austin", b.StationName)
	assert.Equal(t, "#923011", b.LineColor)
	assert.Equal(t, "rgba(146, 48, 17, 0.5)", b.Background)
	require.Len(t, b.Arrivals, 2)
	assert.Equal(t, "Arriving", b.Arrivals[0].Label)
	assert.Equal(t, "Wu Kai Sha", b.Arrivals[0].Destination)
	assert.Equal(t, "10:06:00 [6 min]", b.Arrivals[1].Label)
	assert.Equal(t, 0, sink.notified())
	assert.Equal(t, url.Values{"line": {"TML"}, "sta": {"AUS"}}, fetcher.lastParams())

	require.Eventually(t, func() bool {
		c := sink.lastClock()
		return c != clock.Placeholder && c >= "10:00:00"
	}, time.Second, 5*time.Millisecond)
}

func TestSessionSelectStationWithoutLine(t *testing.T) {
	s, _ := startSession(t, newFakeFetcher(alwaysOK), time.Hour)
	err := s.SelectStation(context.Background(), "AUS")
	assert.ErrorIs(t, err, selection.ErrPreconditionViolation)
}

func TestSessionRefreshNeedsCompleteSelection(t *testing.T) {
	s, _ := startSession(t, newFakeFetcher(alwaysOK), time.Hour)
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrIncomplete)
}

func TestSessionRefreshFetchesAgain(t *testing.T) {
	fetcher := newFakeFetcher(alwaysOK)
	s, sink := startSession(t, fetcher, time.Hour)
	selectStation(t, s, "TML", "AUS")

	require.Eventually(t, func() bool {
		return sink.last().State == domain.BoardReady
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Refresh(context.Background()))
	require.Eventually(t, func() bool {
		return fetcher.calls.Load() == 2 && sink.last().State == domain.BoardReady
	}, time.Second, 5*time.Millisecond)
}

func TestSessionForegroundFailureNotifies(t *testing.T) {
	s, sink := startSession(t, newFakeFetcher(alwaysFail), time.Hour)
	selectStation(t, s, "TML", "AUS")

	require.Eventually(t, func() bool {
		return sink.notified() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.BoardError, sink.last().State)
	assert.Empty(t, sink.last().Arrivals)
}

func TestSessionBackgroundFailureKeepsStaleData(t *testing.T) {
	fetcher := newFakeFetcher(alwaysOK)
	s, sink := startSession(t, fetcher, 20*time.Millisecond)
	selectStation(t, s, "TML", "AUS")

	require.Eventually(t, func() bool {
		return sink.last().State == domain.BoardReady
	}, time.Second, 5*time.Millisecond)
	shown := sink.last().Arrivals

	fetcher.set(alwaysFail)
	before := fetcher.calls.Load()
	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= before+3
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return !sink.last().Loading
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, shown, sink.last().Arrivals)
	assert.Equal(t, domain.BoardReady, sink.last().State)
	assert.Equal(t, 0, sink.notified())
}

func TestSessionClearStopsPolling(t *testing.T) {
	fetcher := newFakeFetcher(alwaysOK)
	s, sink := startSession(t, fetcher, 20*time.Millisecond)
	selectStation(t, s, "TML", "AUS")

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Clear(context.Background()))
	assert.Equal(t, domain.BoardIdle, sink.last().State)
	assert.Empty(t, sink.last().LineCode)
	assert.Equal(t, selection.DefaultBackground, sink.last().Background)

	time.Sleep(30 * time.Millisecond)
	calls := fetcher.calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, fetcher.calls.Load())
	assert.Equal(t, clock.Placeholder, sink.lastClock())
}

func TestSessionNewLineClearsBoard(t *testing.T) {
	s, sink := startSession(t, newFakeFetcher(alwaysOK), time.Hour)
	selectStation(t, s, "TML", "AUS")

	require.Eventually(t, func() bool {
		return sink.last().State == domain.BoardReady
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SelectLine(context.Background(), "ISL"))
	b := sink.last()
	assert.Equal(t, domain.BoardIdle, b.State)
	assert.Equal(t, "ISL", b.LineCode)
	assert.Empty(t, b.StationCode)
	assert.Empty(t, b.Arrivals)
}

func TestSessionLatestSelectionWins(t *testing.T) {
	release := make(chan struct{})
	fetcher := newFakeFetcher(func(ctx context.Context, line, station string) (*mtrapi.Response, error) {
		if station == "AUS" {
			<-release
		}
		return okResponse(line, station), nil
	})
	s, sink := startSession(t, fetcher, time.Hour)

	selectStation(t, s, "TML", "AUS")
	require.NoError(t, s.SelectStation(context.Background(), "HUH"))

	require.Eventually(t, func() bool {
		b := sink.last()
		return b.State == domain.BoardReady && b.StationCode == "HUH"
	}, time.Second, 5*time.Millisecond)

	close(release)
	time.Sleep(50 * time.Millisecond)
	b := sink.last()
	assert.Equal(t, "HUH", b.StationCode)
	assert.Equal(t, domain.BoardReady, b.State)
	require.NotEmpty(t, b.Arrivals)
}

func TestSessionNoScheduleIsEmptyState(t *testing.T) {
	fetcher := newFakeFetcher(func(context.Context, string, string) (*mtrapi.Response, error) {
		return okResponse("TML", "SOMEWHERE"), nil
	})
	s, sink := startSession(t, fetcher, time.Hour)
	selectStation(t, s, "TML", "TUM")

	require.Eventually(t, func() bool {
		return sink.last().State == domain.BoardEmpty
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sink.notified())
}

func TestSessionClosed(t *testing.T) {
	dir, err := directory.Default()
	require.NoError(t, err)
	s := New("closed", dir, newFakeFetcher(alwaysOK), &recordingSink{}, Config{}, discard)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	cancel()
	<-s.Done()

	assert.True(t, errors.Is(s.SelectLine(context.Background(), "TML"), ErrClosed))
}

func TestSessionClockKeepsAnchorOnUnreadableTime(t *testing.T) {
	var wall atomic.Int64
	wall.Store(time.Date(2030, 5, 5, 0, 0, 0, 0, time.UTC).UnixNano())
	now := func() time.Time { return time.Unix(0, wall.Load()) }

	fetcher := newFakeFetcher(alwaysOK)
	s, sink := startSessionWith(t, fetcher, Config{
		PollInterval:  time.Hour,
		ClockInterval: 10 * time.Millisecond,
		Location:      time.UTC,
		Now:           now,
	})
	selectStation(t, s, "TML", "AUS")

	require.Eventually(t, func() bool {
		return sink.lastClock() == "10:00:00"
	}, time.Second, 5*time.Millisecond)

	wall.Add(int64(30 * time.Second))
	require.Eventually(t, func() bool {
		return sink.lastClock() == "10:00:30"
	}, time.Second, 5*time.Millisecond)

	fetcher.set(func(_ context.Context, line, station string) (*mtrapi.Response, error) {
		resp := okResponse(line, station)
		resp.CurrTime = "-"
		return resp, nil
	})
	require.NoError(t, s.Refresh(context.Background()))
	require.Eventually(t, func() bool {
		b := sink.last()
		return fetcher.calls.Load() == 2 && b.State == domain.BoardReady && !b.Loading
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, "10:00:30", sink.lastClock())
}
