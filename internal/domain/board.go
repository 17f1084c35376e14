package domain

import "time"

// BoardState describes what the arrival panel is showing
type BoardState string

const (
	BoardIdle    BoardState = "idle"
	BoardLoading BoardState = "loading"
	BoardReady   BoardState = "ready"
	BoardEmpty   BoardState = "empty"
	BoardError   BoardState = "error"
)

// Board is the display model for one selection
type Board struct {
	LineCode    string          `json:"lineCode,omitempty"`
	StationCode string          `json:"stationCode,omitempty"`
	StationName string          `json:"stationName,omitempty"`
	LineColor   string          `json:"lineColor,omitempty"`
	Background  string          `json:"background"`
	State       BoardState      `json:"state"`
	Loading     bool            `json:"loading"`
	Arrivals    []MergedArrival `json:"arrivals"`
	Anchor      *time.Time      `json:"anchor,omitempty"`
	Delayed     bool            `json:"delayed"`
}

// Severity of a user-facing notification
type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityDestructive Severity = "destructive"
)

// Notification is an ephemeral user-visible message
type Notification struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}
