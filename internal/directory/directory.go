package directory

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mtreta/internal/colorutil"
	"mtreta/internal/domain"
)

//go:embed lines.yaml
var embeddedLines []byte

var ErrInvalidDirectory = errors.New("invalid directory")

type document struct {
	Lines []domain.Line `yaml:"lines"`
}

// Directory is the static line and station directory. It is built once and
// never mutated, so it is safe to share between goroutines without locking.
type Directory struct {
	lines        []domain.Line
	linesByCode  map[string]int
	stationNames map[string]string
}

// Default loads the directory compiled into the binary.
func Default() (*Directory, error) {
	return Parse(embeddedLines)
}

// Load reads a directory from path, or the embedded one when path is empty.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding directory: %w", err)
	}
	return New(doc.Lines)
}

func New(lines []domain.Line) (*Directory, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no lines", ErrInvalidDirectory)
	}

	d := &Directory{
		lines:        make([]domain.Line, 0, len(lines)),
		linesByCode:  make(map[string]int, len(lines)),
		stationNames: make(map[string]string),
	}

	for _, l := range lines {
		if l.Code == "" || l.Name == "" {
			return nil, fmt.Errorf("%w: line without code or name", ErrInvalidDirectory)
		}
		if _, dup := d.linesByCode[l.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate line %s", ErrInvalidDirectory, l.Code)
		}
		if _, err := colorutil.ParseHex(l.Color); err != nil {
			return nil, fmt.Errorf("%w: line %s: %w", ErrInvalidDirectory, l.Code, err)
		}
		if len(l.Stations) == 0 {
			return nil, fmt.Errorf("%w: line %s has no stations", ErrInvalidDirectory, l.Code)
		}

		stations := make([]domain.Station, len(l.Stations))
		copy(stations, l.Stations)
		for _, s := range stations {
			if s.Code == "" {
				return nil, fmt.Errorf("%w: line %s has a station without code", ErrInvalidDirectory, l.Code)
			}
			if _, ok := d.stationNames[s.Code]; !ok {
				d.stationNames[s.Code] = s.Name
			}
		}
		l.Stations = stations

		d.linesByCode[l.Code] = len(d.lines)
		d.lines = append(d.lines, l)
	}

	return d, nil
}

// Lines returns a copy of all lines in directory order.
func (d *Directory) Lines() []domain.Line {
	result := make([]domain.Line, len(d.lines))
	for i, l := range d.lines {
		result[i] = cloneLine(l)
	}
	return result
}

func (d *Directory) Line(code string) (domain.Line, bool) {
	i, ok := d.linesByCode[code]
	if !ok {
		return domain.Line{}, false
	}
	return cloneLine(d.lines[i]), true
}

// Station returns the station only if it belongs to the given line.
func (d *Directory) Station(lineCode, stationCode string) (domain.Station, bool) {
	i, ok := d.linesByCode[lineCode]
	if !ok {
		return domain.Station{}, false
	}
	return d.lines[i].Station(stationCode)
}

func (d *Directory) StationName(code string) (string, bool) {
	name, ok := d.stationNames[code]
	return name, ok
}

// ResolveName maps a station code to its display name, falling back to the
// code itself when it is unknown.
func (d *Directory) ResolveName(code string) string {
	if name, ok := d.StationName(code); ok {
		return name
	}
	return code
}

func (d *Directory) Count() (lines, stations int) {
	return len(d.lines), len(d.stationNames)
}

func cloneLine(l domain.Line) domain.Line {
	stations := make([]domain.Station, len(l.Stations))
	copy(stations, l.Stations)
	l.Stations = stations
	return l
}
