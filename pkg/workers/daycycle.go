package workers

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	// DefaultCycleSpeed is the fraction of a full day advanced per second
	DefaultCycleSpeed = 0.003
	// DefaultDayCycleInterval is how often the clock advances
	DefaultDayCycleInterval = 16 * time.Millisecond
)

// DayCycleClock holds the shared time of day in [0, 1). It is written
// by the day cycle worker and read when building welcome messages.
type DayCycleClock struct {
	mu        sync.RWMutex
	timeOfDay float64
	speed     float64
}

type NewDayCycleClockOptions struct {
	TimeOfDay float64
	Speed     float64
}

// NewDayCycleClock creates a clock starting at the given time of day.
func NewDayCycleClock(opts NewDayCycleClockOptions) *DayCycleClock {
	if opts.Speed == 0 {
		opts.Speed = DefaultCycleSpeed
	}
	return &DayCycleClock{
		timeOfDay: opts.TimeOfDay,
		speed:     opts.Speed,
	}
}

// TimeOfDay returns the current time of day in [0, 1).
func (c *DayCycleClock) TimeOfDay() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeOfDay
}

// Speed returns the cycle speed in day fraction per second.
func (c *DayCycleClock) Speed() float64 {
	return c.speed
}

// Advance moves the clock forward by delta seconds, wrapping at 1.0.
func (c *DayCycleClock) Advance(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeOfDay = math.Mod(c.timeOfDay+c.speed*delta, 1.0)
}

// DayCycleWorker advances the day cycle clock in real time.
type DayCycleWorker struct {
	clock    *DayCycleClock
	interval time.Duration
}

type NewDayCycleWorkerOptions struct {
	Clock    *DayCycleClock
	Interval time.Duration
}

// NewDayCycleWorker creates a new DayCycleWorker.
func NewDayCycleWorker(opts NewDayCycleWorkerOptions) *DayCycleWorker {
	if opts.Interval == 0 {
		opts.Interval = DefaultDayCycleInterval
	}
	return &DayCycleWorker{
		clock:    opts.Clock,
		interval: opts.Interval,
	}
}

func (w *DayCycleWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.clock.Advance(now.Sub(last).Seconds())
			last = now
		}
	}
}
