package workers

import (
	"context"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/repositories"
	"github.com/eliperez-dev/flightsync/pkg/sessions"
)

const (
	// DefaultSampleInterval is how often live player positions are sampled
	DefaultSampleInterval = 10 * time.Second
)

// FlightLogWorker records session lifecycle events and periodic
// position samples to the repository.
type FlightLogWorker struct {
	runID          string
	registry       *sessions.Registry
	repository     repositories.Repository
	sampleInterval time.Duration
}

type NewFlightLogWorkerOptions struct {
	RunID          string
	Registry       *sessions.Registry
	Repository     repositories.Repository
	SampleInterval time.Duration
}

// NewFlightLogWorker creates a new FlightLogWorker.
func NewFlightLogWorker(opts NewFlightLogWorkerOptions) *FlightLogWorker {
	if opts.SampleInterval == 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	return &FlightLogWorker{
		runID:          opts.RunID,
		registry:       opts.Registry,
		repository:     opts.Repository,
		sampleInterval: opts.SampleInterval,
	}
}

func (w *FlightLogWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.registry.Events():
			w.handleSessionEvent(ctx, event)
		case <-ticker.C:
			w.samplePositions(ctx)
		}
	}
}

func (w *FlightLogWorker) handleSessionEvent(ctx context.Context, event sessions.SessionEvent) {
	switch event.Type {
	case sessions.SessionEventTypeConnect:
		if err := w.repository.RecordJoin(ctx, w.runID, event.PlayerID, event.Name, event.Time); err != nil {
			log.Error("Failed to record join for player %d: %v", event.PlayerID, err)
		}
	case sessions.SessionEventTypeDisconnect:
		if err := w.repository.RecordLeave(ctx, w.runID, event.PlayerID, event.Time); err != nil {
			log.Error("Failed to record leave for player %d: %v", event.PlayerID, err)
		}
	default:
		log.Error("Unknown session event type: %v", event.Type)
	}
}

func (w *FlightLogWorker) samplePositions(ctx context.Context) {
	now := time.Now()
	for _, state := range w.registry.Snapshot() {
		if err := w.repository.RecordSample(ctx, w.runID, state, now); err != nil {
			log.Error("Failed to record sample for player %d: %v", state.ID, err)
		}
	}
}
