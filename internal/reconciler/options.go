package reconciler

import (
	"fmt"
	"time"
)

// Mode distinguishes a fetch for a fresh selection from a periodic refresh.
type Mode int

const (
	Foreground Mode = iota
	Background
)

func (m Mode) String() string {
	switch m {
	case Foreground:
		return "foreground"
	case Background:
		return "background"
	default:
		return "unknown"
	}
}

// RefreshPolicy decides what a background poll does with arrivals already shown.
type RefreshPolicy string

const (
	// PolicyKeepStale keeps showing the previous arrivals when a background
	// poll fails or comes back empty.
	PolicyKeepStale RefreshPolicy = "keep-stale"
	// PolicyReplace treats every poll like a foreground fetch.
	PolicyReplace RefreshPolicy = "replace"
)

func ParseRefreshPolicy(s string) (RefreshPolicy, error) {
	switch p := RefreshPolicy(s); p {
	case PolicyKeepStale, PolicyReplace:
		return p, nil
	default:
		return "", fmt.Errorf("unknown refresh policy %q", s)
	}
}

// ValidFilter decides whether records flagged valid=N are shown.
type ValidFilter string

const (
	IncludeInvalid ValidFilter = "include"
	ExcludeInvalid ValidFilter = "exclude"
)

func ParseValidFilter(s string) (ValidFilter, error) {
	switch f := ValidFilter(s); f {
	case IncludeInvalid, ExcludeInvalid:
		return f, nil
	default:
		return "", fmt.Errorf("unknown valid filter %q", s)
	}
}

type Options struct {
	Policy      RefreshPolicy
	ValidFilter ValidFilter
	// Location is used to read zone-less upstream timestamps and to format
	// arrival times. Defaults to UTC.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}
