package selection

import (
	"errors"
	"fmt"
	"net/url"

	"mtreta/internal/colorutil"
	"mtreta/internal/directory"
	"mtreta/internal/domain"
)

const (
	DefaultBackground = "transparent"
	BackgroundAlpha   = 0.5
)

var (
	ErrPreconditionViolation = errors.New("no line selected")
	ErrUnknownLine           = errors.New("unknown line")
	ErrUnknownStation        = errors.New("station not on selected line")
)

// Holder tracks the chosen line and station. A non-nil station always belongs
// to the current line.
type Holder struct {
	dir        *directory.Directory
	line       *domain.Line
	station    *domain.Station
	background string
}

func New(dir *directory.Directory) *Holder {
	return &Holder{dir: dir, background: DefaultBackground}
}

// SelectLine switches line and drops any station choice.
func (h *Holder) SelectLine(code string) error {
	line, ok := h.dir.Line(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLine, code)
	}
	h.line = &line
	h.station = nil
	h.background = colorutil.RGBA(line.Color, BackgroundAlpha)
	return nil
}

func (h *Holder) SelectStation(code string) error {
	if h.line == nil {
		return ErrPreconditionViolation
	}
	st, ok := h.line.Station(code)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnknownStation, code, h.line.Code)
	}
	h.station = &st
	return nil
}

func (h *Holder) Clear() {
	h.line = nil
	h.station = nil
	h.background = DefaultBackground
}

// Complete reports whether both a line and a station are chosen.
func (h *Holder) Complete() bool {
	return h.line != nil && h.station != nil
}

func (h *Holder) Line() (domain.Line, bool) {
	if h.line == nil {
		return domain.Line{}, false
	}
	return *h.line, true
}

func (h *Holder) Station() (domain.Station, bool) {
	if h.station == nil {
		return domain.Station{}, false
	}
	return *h.station, true
}

func (h *Holder) Background() string {
	return h.background
}

// Key is the upstream schedule key, empty while the selection is incomplete.
func (h *Holder) Key() string {
	if !h.Complete() {
		return ""
	}
	return domain.ScheduleKey(h.line.Code, h.station.Code)
}

// Params are the upstream query parameters for the current selection.
func (h *Holder) Params() (url.Values, bool) {
	if !h.Complete() {
		return nil, false
	}
	params := url.Values{}
	params.Set("line", h.line.Code)
	params.Set("sta", h.station.Code)
	return params, true
}
