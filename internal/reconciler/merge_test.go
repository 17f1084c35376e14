package reconciler

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtreta/internal/domain"
)

type names map[string]string

func (n names) ResolveName(code string) string {
	if v, ok := n[code]; ok {
		return v
	}
	return code
}

var testNames = names{"WKS": "Wu Kai Sha", "TUM": "Tuen Mun", "HUH": "Hung Hom"}

func arrival(ttnt, ts, dest string) domain.TrainArrival {
	return domain.TrainArrival{TTNT: ttnt, Valid: "Y", Plat: "1", Time: ts, Source: "-", Dest: dest, Seq: "1"}
}

func TestMergeSingleArrivingTrain(t *testing.T) {
	data := domain.ArrivalData{
		Up: []domain.TrainArrival{{TTNT: "1", Plat: "2", Time: "2024-01-01T10:01:00Z", Dest: "WKS", Source: "1", Seq: "1"}},
	}

	got := Merge(data, testNames, Options{})
	require.Len(t, got, 1)
	assert.Equal(t, domain.DirectionUp, got[0].Direction)
	assert.Equal(t, "Wu Kai Sha", got[0].Destination)
	assert.Equal(t, "2", got[0].Platform)
	assert.Equal(t, "10:01:00", got[0].ArrivalTime)
	assert.Equal(t, "1", got[0].Countdown)
	assert.Equal(t, ArrivingLabel, got[0].Label)
}

func TestMergeInterleavesDirectionsByETA(t *testing.T) {
	data := domain.ArrivalData{
		Up: []domain.TrainArrival{
			arrival("3", "2024-01-01 10:03:00", "WKS"),
			arrival("8", "2024-01-01 10:08:00", "WKS"),
		},
		Down: []domain.TrainArrival{
			arrival("1", "2024-01-01 10:01:00", "TUM"),
			arrival("5", "2024-01-01 10:05:00", "TUM"),
		},
	}

	got := Merge(data, testNames, Options{})
	require.Len(t, got, 4)

	var order []string
	for _, m := range got {
		order = append(order, fmt.Sprintf("%s %s", m.Direction, m.Countdown))
	}
	assert.Equal(t, []string{"DOWN 1", "UP 3", "DOWN 5", "UP 8"}, order)
	assert.Equal(t, "10:05:00 [5 min]", got[2].Label)
}

func TestMergeSortedForRandomPayloads(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	gen := func(n int) []domain.TrainArrival {
		list := make([]domain.TrainArrival, n)
		for i := range list {
			eta := base.Add(time.Duration(rng.Intn(3600)) * time.Second)
			list[i] = arrival(fmt.Sprint(rng.Intn(60)), eta.Format(time.RFC3339), "HUH")
		}
		return list
	}

	for i := 0; i < 200; i++ {
		data := domain.ArrivalData{Up: gen(rng.Intn(6)), Down: gen(rng.Intn(6))}
		got := Merge(data, testNames, Options{})
		require.Len(t, got, len(data.Up)+len(data.Down))

		for j := 1; j < len(got); j++ {
			assert.LessOrEqual(t, got[j-1].ArrivalTime, got[j].ArrivalTime)
		}
	}
}

func TestMergeTiesKeepUpstreamOrder(t *testing.T) {
	data := domain.ArrivalData{
		Up:   []domain.TrainArrival{{TTNT: "4", Time: "2024-01-01T10:04:00Z", Dest: "WKS", Plat: "a"}},
		Down: []domain.TrainArrival{{TTNT: "4", Time: "2024-01-01T10:04:00Z", Dest: "TUM", Plat: "b"}},
	}

	got := Merge(data, testNames, Options{})
	require.Len(t, got, 2)
	assert.Equal(t, domain.DirectionUp, got[0].Direction)
	assert.Equal(t, domain.DirectionDown, got[1].Direction)
}

func TestMergeUnknownDestinationFallsBackToCode(t *testing.T) {
	data := domain.ArrivalData{Down: []domain.TrainArrival{arrival("6", "2024-01-01 10:06:00", "QQQ")}}

	got := Merge(data, testNames, Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "QQQ", got[0].Destination)

	got = Merge(data, nil, Options{})
	assert.Equal(t, "QQQ", got[0].Destination)
}

func TestMergeUnparsableTimesGoLast(t *testing.T) {
	data := domain.ArrivalData{
		Up: []domain.TrainArrival{
			arrival("7", "soon", "WKS"),
			arrival("2", "2024-01-01 10:02:00", "WKS"),
		},
	}

	got := Merge(data, testNames, Options{})
	require.Len(t, got, 2)
	assert.Equal(t, "10:02:00", got[0].ArrivalTime)
	assert.Equal(t, "soon", got[1].ArrivalTime)
	assert.Equal(t, "soon [7 min]", got[1].Label)
}

func TestMergeFormatsInLocation(t *testing.T) {
	hk := time.FixedZone("HKT", 8*3600)
	data := domain.ArrivalData{
		Up: []domain.TrainArrival{
			arrival("3", "2024-01-01T02:03:00Z", "WKS"),
			arrival("4", "2024-01-01 10:04:00", "WKS"),
		},
	}

	got := Merge(data, testNames, Options{Location: hk})
	require.Len(t, got, 2)
	assert.Equal(t, "10:03:00", got[0].ArrivalTime)
	assert.Equal(t, "10:04:00", got[1].ArrivalTime)
}

func TestMergeValidFilter(t *testing.T) {
	invalid := arrival("2", "2024-01-01 10:02:00", "WKS")
	invalid.Valid = "N"
	data := domain.ArrivalData{
		Up:   []domain.TrainArrival{invalid},
		Down: []domain.TrainArrival{arrival("5", "2024-01-01 10:05:00", "TUM")},
	}

	assert.Len(t, Merge(data, testNames, Options{ValidFilter: IncludeInvalid}), 2)
	assert.Len(t, Merge(data, testNames, Options{}), 2)

	got := Merge(data, testNames, Options{ValidFilter: ExcludeInvalid})
	require.Len(t, got, 1)
	assert.Equal(t, "Tuen Mun", got[0].Destination)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(domain.ArrivalData{}, testNames, Options{}))
}

func TestCountdownLabel(t *testing.T) {
	tests := []struct {
		countdown string
		want      string
	}{
		{"0", ArrivingLabel},
		{"1", ArrivingLabel},
		{"-2", ArrivingLabel},
		{"1.9", ArrivingLabel},
		{" 1", ArrivingLabel},
		{"2", "10:05:00 [2 min]"},
		{"12", "10:05:00 [12 min]"},
		{"", "10:05:00 [ min]"},
		{"-", "10:05:00 [- min]"},
		{"abc", "10:05:00 [abc min]"},
		{"99999999999999999999", "10:05:00 [99999999999999999999 min]"},
	}

	for _, tt := range tests {
		t.Run(tt.countdown, func(t *testing.T) {
			m := domain.MergedArrival{ArrivalTime: "10:05:00", Countdown: tt.countdown}
			assert.Equal(t, tt.want, CountdownLabel(m))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	hk := time.FixedZone("HKT", 8*3600)

	got, err := ParseTimestamp("2024-01-01 10:00:00", hk)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)))

	got, err = ParseTimestamp("2024-01-01T10:00:00Z", hk)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))

	got, err = ParseTimestamp("2024-01-01T10:00:00", hk)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)))

	_, err = ParseTimestamp("-", hk)
	assert.Error(t, err)
}

func TestParseOptions(t *testing.T) {
	p, err := ParseRefreshPolicy("replace")
	require.NoError(t, err)
	assert.Equal(t, PolicyReplace, p)
	_, err = ParseRefreshPolicy("sometimes")
	assert.Error(t, err)

	f, err := ParseValidFilter("exclude")
	require.NoError(t, err)
	assert.Equal(t, ExcludeInvalid, f)
	_, err = ParseValidFilter("")
	assert.Error(t, err)
}
