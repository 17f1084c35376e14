package domain

import "fmt"

// Station is a single stop on a line
type Station struct {
	Code string `json:"stationCode" yaml:"code"`
	Name string `json:"stationName" yaml:"name"`
}

// Line is a metro line with its ordered stations
type Line struct {
	Code     string    `json:"lineCode" yaml:"code"`
	Name     string    `json:"lineName" yaml:"name"`
	Color    string    `json:"color" yaml:"color"`
	Stations []Station `json:"stations" yaml:"stations"`
}

// Station looks up a station on this line by code
func (l *Line) Station(code string) (Station, bool) {
	for _, s := range l.Stations {
		if s.Code == code {
			return s, true
		}
	}
	return Station{}, false
}

// ScheduleKey is the key the upstream uses for a line and station pair
func ScheduleKey(lineCode, stationCode string) string {
	return fmt.Sprintf("%s-%s", lineCode, stationCode)
}
