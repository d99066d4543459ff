package sim

import (
	"math"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/kinematic"
	"github.com/eliperez-dev/flightsync/pkg/messages"
)

const (
	// DefaultRadius is the radius of the circuit in world units
	DefaultRadius = 2000.0
	// DefaultAltitude is the cruise altitude in world units
	DefaultAltitude = 1200.0
	// DefaultPeriod is how long one lap takes
	DefaultPeriod = 2 * time.Minute
)

// FlightPath produces the local player's state along a scripted
// circular circuit, standing in for real flight controls.
type FlightPath struct {
	center   kinematic.Vector3
	radius   float64
	altitude float64
	period   time.Duration
	started  time.Time
}

type NewFlightPathOptions struct {
	Center   kinematic.Vector3
	Radius   float64
	Altitude float64
	Period   time.Duration
	Started  time.Time
}

// NewFlightPath creates a new FlightPath.
func NewFlightPath(opts NewFlightPathOptions) *FlightPath {
	if opts.Radius == 0 {
		opts.Radius = DefaultRadius
	}
	if opts.Altitude == 0 {
		opts.Altitude = DefaultAltitude
	}
	if opts.Period == 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Started.IsZero() {
		opts.Started = time.Now()
	}
	return &FlightPath{
		center:   opts.Center,
		radius:   opts.Radius,
		altitude: opts.Altitude,
		period:   opts.Period,
		started:  opts.Started,
	}
}

// StateAt returns the position and heading on the circuit at time t.
// The plane flies counterclockwise and always faces along its velocity.
func (f *FlightPath) StateAt(t time.Time) *messages.ClientPlayerUpdate {
	angle := 2 * math.Pi * math.Mod(t.Sub(f.started).Seconds()/f.period.Seconds(), 1.0)

	position := kinematic.Vector3{
		X: f.center.X + f.radius*math.Cos(angle),
		Y: f.center.Y + f.altitude,
		Z: f.center.Z + f.radius*math.Sin(angle),
	}

	// velocity of (cos, sin) parameterization is (-sin, cos): heading
	// about +Y with yaw measured from -Z toward +X
	yaw := math.Atan2(-math.Sin(angle), -math.Cos(angle))

	return &messages.ClientPlayerUpdate{
		Position:  position,
		Rotation:  kinematic.FromYaw(yaw),
		Timestamp: t.UnixMilli(),
	}
}
