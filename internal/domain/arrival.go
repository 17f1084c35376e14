package domain

// Direction is the travel direction used by the upstream schedule format
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// TrainArrival is one upstream arrival record
type TrainArrival struct {
	TTNT   string `json:"ttnt"`
	Valid  string `json:"valid"`
	Plat   string `json:"plat"`
	Time   string `json:"time"`
	Source string `json:"source"`
	Dest   string `json:"dest"`
	Seq    string `json:"seq"`
}

// ArrivalData holds both directional lists for one station
type ArrivalData struct {
	Up   []TrainArrival `json:"UP,omitempty"`
	Down []TrainArrival `json:"DOWN,omitempty"`
}

// MergedArrival is a display-ready arrival
type MergedArrival struct {
	Destination string    `json:"destination"`
	Platform    string    `json:"platform"`
	ArrivalTime string    `json:"arrivalTime"`
	Countdown   string    `json:"countdown"`
	Label       string    `json:"label"`
	Direction   Direction `json:"direction"`
}
