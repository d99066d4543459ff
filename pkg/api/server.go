package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/api/handlers"
	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/gorilla/mux"
)

const (
	// DefaultWatchInterval is how often the watch endpoint polls the roster
	DefaultWatchInterval = time.Second
)

// APIServer serves the read-only status surface: server info, the
// current roster, and a websocket roster stream.
type APIServer struct {
	server *http.Server
}

type NewAPIServerOptions struct {
	Port          int
	RunID         string
	Seed          int64
	StartedAt     time.Time
	Roster        handlers.Roster
	Clock         handlers.WorldClock
	WatchInterval time.Duration
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	if opts.WatchInterval == 0 {
		opts.WatchInterval = DefaultWatchInterval
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", handlers.HandleStatus(handlers.StatusOptions{
		RunID:     opts.RunID,
		Seed:      opts.Seed,
		StartedAt: opts.StartedAt,
		Roster:    opts.Roster,
		Clock:     opts.Clock,
	})).Methods(http.MethodGet)
	router.HandleFunc("/players", handlers.HandleListPlayers(opts.Roster)).Methods(http.MethodGet)
	router.HandleFunc("/players/watch", handlers.HandleWatchPlayers(opts.Roster, opts.WatchInterval)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	log.Info("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
