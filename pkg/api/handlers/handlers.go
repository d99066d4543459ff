package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"sort"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/messages"
	"github.com/eliperez-dev/flightsync/pkg/version"
	"github.com/gorilla/websocket"
)

// Roster exposes the live player set to the API.
type Roster interface {
	Snapshot() []messages.PlayerState
	Len() int
}

// WorldClock exposes the shared time of day.
type WorldClock interface {
	TimeOfDay() float64
}

// Status is the payload of the status endpoint.
type Status struct {
	Version     string  `json:"version"`
	RunID       string  `json:"runID"`
	Seed        int64   `json:"seed"`
	UptimeSecs  float64 `json:"uptimeSecs"`
	PlayerCount int     `json:"playerCount"`
	TimeOfDay   float64 `json:"timeOfDay"`
}

type StatusOptions struct {
	RunID     string
	Seed      int64
	StartedAt time.Time
	Roster    Roster
	Clock     WorldClock
}

func HandleStatus(opts StatusOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := Status{
			Version:     version.Get(),
			RunID:       opts.RunID,
			Seed:        opts.Seed,
			UptimeSecs:  time.Since(opts.StartedAt).Seconds(),
			PlayerCount: opts.Roster.Len(),
			TimeOfDay:   opts.Clock.TimeOfDay(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error("failed to encode status: %v", err)
			http.Error(w, "Failed to encode status", http.StatusInternalServerError)
		}
	}
}

func HandleListPlayers(roster Roster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		players := roster.Snapshot()
		sort.Slice(players, func(i, j int) bool {
			return players[i].ID < players[j].ID
		})

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(players); err != nil {
			log.Error("failed to encode players: %v", err)
			http.Error(w, "Failed to encode players", http.StatusInternalServerError)
		}
	}
}

var watchUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWatchPlayers streams roster snapshots over a websocket. A new
// snapshot is pushed whenever the roster changes, polled at the given
// interval.
func HandleWatchPlayers(roster Roster, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := watchUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("failed to upgrade watch connection: %v", err)
			return
		}
		defer conn.Close()

		// consume client frames so close handshakes are processed
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last []messages.PlayerState
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				snapshot := roster.Snapshot()
				sort.Slice(snapshot, func(i, j int) bool {
					return snapshot[i].ID < snapshot[j].ID
				})
				if reflect.DeepEqual(snapshot, last) {
					continue
				}
				last = snapshot
				if err := conn.WriteJSON(snapshot); err != nil {
					log.Debug("watch connection ended: %v", err)
					return
				}
			}
		}
	}
}
