package reconciler

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"mtreta/internal/domain"
)

const (
	ArrivingLabel = "Arriving"
	TimeLayout    = "15:04:05"

	upstreamLayout = "2006-01-02 15:04:05"
)

// Resolver maps station codes to display names.
type Resolver interface {
	ResolveName(code string) string
}

type row struct {
	arrival   domain.TrainArrival
	direction domain.Direction
	eta       time.Time
	parsed    bool
}

// Merge tags both directional lists, orders them by ETA and turns them into
// display rows. Rows with equal ETAs keep their upstream order, UP before DOWN.
// Rows whose ETA cannot be parsed go last.
func Merge(data domain.ArrivalData, names Resolver, opts Options) []domain.MergedArrival {
	loc := opts.location()
	rows := make([]row, 0, len(data.Up)+len(data.Down))

	add := func(list []domain.TrainArrival, dir domain.Direction) {
		for _, a := range list {
			if opts.ValidFilter == ExcludeInvalid && a.Valid == "N" {
				continue
			}
			eta, err := ParseTimestamp(a.Time, loc)
			rows = append(rows, row{arrival: a, direction: dir, eta: eta, parsed: err == nil})
		}
	}
	add(data.Up, domain.DirectionUp)
	add(data.Down, domain.DirectionDown)

	slices.SortStableFunc(rows, func(a, b row) int {
		switch {
		case a.parsed && !b.parsed:
			return -1
		case !a.parsed && b.parsed:
			return 1
		case !a.parsed:
			return 0
		}
		return a.eta.Compare(b.eta)
	})

	result := make([]domain.MergedArrival, 0, len(rows))
	for _, r := range rows {
		arrivalTime := r.arrival.Time
		if r.parsed {
			arrivalTime = r.eta.In(loc).Format(TimeLayout)
		}

		m := domain.MergedArrival{
			Destination: resolve(names, r.arrival.Dest),
			Platform:    r.arrival.Plat,
			ArrivalTime: arrivalTime,
			Countdown:   r.arrival.TTNT,
			Direction:   r.direction,
		}
		m.Label = CountdownLabel(m)
		result = append(result, m)
	}
	return result
}

// CountdownLabel is "Arriving" for trains at most a minute out and
// "<time> [<n> min]" otherwise, including when the minutes are not numeric.
func CountdownLabel(m domain.MergedArrival) string {
	if n, ok := leadingInt(m.Countdown); ok && n <= 1 {
		return ArrivingLabel
	}
	return fmt.Sprintf("%s [%s min]", m.ArrivalTime, m.Countdown)
}

// ParseTimestamp accepts RFC 3339 and the upstream "2006-01-02 15:04:05" form,
// the latter read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(upstreamLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
	}
	return t, nil
}

func resolve(names Resolver, code string) string {
	if names == nil {
		return code
	}
	return names.ResolveName(code)
}

// leadingInt reads an optionally signed run of digits at the start of s, so
// "1.5" is 1 and "3 min" is 3.
func leadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			if s[0] == '-' {
				return math.MinInt64, true
			}
			return math.MaxInt64, true
		}
		return 0, false
	}
	return n, true
}
