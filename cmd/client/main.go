package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eliperez-dev/flightsync/client/network"
	"github.com/eliperez-dev/flightsync/client/remote"
	"github.com/eliperez-dev/flightsync/client/sim"
	"github.com/eliperez-dev/flightsync/pkg/kinematic"
	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/messages"
	"github.com/eliperez-dev/flightsync/pkg/queue"
	"github.com/eliperez-dev/flightsync/pkg/version"
	"github.com/eliperez-dev/flightsync/pkg/world"
)

// logRenderer writes remote player activity to the log in place of a
// real 3D scene.
type logRenderer struct {
	generator *world.Generator
}

func (r *logRenderer) SpawnPlayer(state messages.PlayerState) {
	biome := r.generator.BiomeAt(state.Position.X, state.Position.Z)
	log.Info("Player %d (%s) appeared over %s terrain", state.ID, state.Name, biome)
}

func (r *logRenderer) UpdatePlayer(id uint32, position kinematic.Vector3, rotation kinematic.Quaternion) {
	ground := r.generator.HeightAt(position.X, position.Z)
	log.Trace("Player %d at (%.0f, %.0f, %.0f), %.0f above ground", id, position.X, position.Y, position.Z, position.Y-ground)
}

func (r *logRenderer) DespawnPlayer(id uint32) {
	log.Info("Player %d left", id)
}

func main() {
	serverAddr := flag.String("server", network.DefaultServerAddr, "Server address")
	name := flag.String("name", "pilot", "Pilot name")
	plane := flag.String("plane", string(messages.PlaneTypeLight), "Plane type: light or jet")
	logLevel := flag.String("log-level", "info", "Log level")
	frameInterval := flag.Duration("frame-interval", 33*time.Millisecond, "Local frame interval")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)

	log.Info("Starting client version %s", version.Get())

	eventQueue := queue.NewInMemoryQueue(1000)
	manager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		ServerAddr: *serverAddr,
		EventQueue: eventQueue,
	})

	welcome, err := manager.Connect(&messages.ClientJoin{
		Name:      *name,
		PlaneType: messages.PlaneType(*plane),
	})
	if err != nil {
		log.Error("Failed to connect: %v", err)
		os.Exit(1)
	}
	defer manager.Disconnect()

	// the whole world is rebuilt locally from the seed in the welcome
	generator := world.NewGenerator(welcome.Seed)
	log.Info("World seed %d, time of day %.2f, %d players already flying",
		welcome.Seed, welcome.TimeOfDay, len(welcome.ExistingPlayers))

	reconciler := remote.NewReconciler(remote.NewReconcilerOptions{
		LocalID:    welcome.ClientID,
		EventQueue: eventQueue,
		Renderer:   &logRenderer{generator: generator},
	})
	reconciler.Bootstrap(welcome.ExistingPlayers)

	path := sim.NewFlightPath(sim.NewFlightPathOptions{})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-interrupt:
			log.Info("Interrupted, disconnecting")
			return
		case now := <-ticker.C:
			manager.SendUpdate(path.StateAt(now))
			if err := reconciler.ProcessEvents(); err != nil {
				log.Error("Connection ended: %v", err)
				return
			}
			reconciler.Update()
		}
	}
}
