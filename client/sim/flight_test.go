package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlightPathStaysOnCircuit(t *testing.T) {
	started := time.Unix(0, 0)
	path := NewFlightPath(NewFlightPathOptions{
		Radius:   1000,
		Altitude: 500,
		Period:   time.Minute,
		Started:  started,
	})

	for i := 0; i < 60; i++ {
		state := path.StateAt(started.Add(time.Duration(i) * time.Second))
		horizontal := math.Hypot(state.Position.X, state.Position.Z)
		assert.InDelta(t, 1000.0, horizontal, 1e-6)
		assert.Equal(t, 500.0, state.Position.Y)
	}
}

func TestFlightPathWrapsAfterOnePeriod(t *testing.T) {
	started := time.Unix(0, 0)
	path := NewFlightPath(NewFlightPathOptions{Period: time.Minute, Started: started})

	first := path.StateAt(started.Add(10 * time.Second))
	lapLater := path.StateAt(started.Add(70 * time.Second))

	assert.InDelta(t, first.Position.X, lapLater.Position.X, 1e-6)
	assert.InDelta(t, first.Position.Z, lapLater.Position.Z, 1e-6)
}

func TestFlightPathTimestampsAdvance(t *testing.T) {
	started := time.Unix(1000, 0)
	path := NewFlightPath(NewFlightPathOptions{Started: started})

	a := path.StateAt(started.Add(time.Second))
	b := path.StateAt(started.Add(2 * time.Second))
	require.Greater(t, b.Timestamp, a.Timestamp)
}
