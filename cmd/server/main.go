package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/api"
	"github.com/eliperez-dev/flightsync/pkg/broadcast"
	"github.com/eliperez-dev/flightsync/pkg/log"
	"github.com/eliperez-dev/flightsync/pkg/network"
	"github.com/eliperez-dev/flightsync/pkg/repositories"
	"github.com/eliperez-dev/flightsync/pkg/sessions"
	"github.com/eliperez-dev/flightsync/pkg/version"
	"github.com/eliperez-dev/flightsync/pkg/workers"
	"github.com/google/uuid"
)

func main() {
	tcpPort := flag.Int("tcp-port", 7878, "TCP port to listen on")
	apiPort := flag.Int("api-port", 7879, "HTTP port for the status API")
	logLevel := flag.String("log-level", "info", "Log level")
	seed := flag.Int64("seed", 0, "World seed, 0 picks a random one")
	maxPlayers := flag.Int("max-players", sessions.DefaultMaxSessions, "Maximum concurrent players")
	flightLogPath := flag.String("flight-log", "flightsync.db", "Path to the flight log database")
	sampleInterval := flag.Duration("sample-interval", workers.DefaultSampleInterval, "Flight log position sample interval")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	runID := uuid.New().String()
	log.Info("Starting server version %s, run %s", version.Get(), runID)

	if *seed == 0 {
		*seed = rand.Int63()
	}
	log.Info("World seed is %d", *seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := sessions.NewRegistry(sessions.NewRegistryOptions{
		MaxSessions: *maxPlayers,
	})
	engine := broadcast.NewEngine(registry)

	clock := workers.NewDayCycleClock(workers.NewDayCycleClockOptions{
		TimeOfDay: 0.5,
	})
	dayCycleWorker := workers.NewDayCycleWorker(workers.NewDayCycleWorkerOptions{
		Clock: clock,
	})
	go dayCycleWorker.Start(ctx)

	repository, err := repositories.NewSQLiteRepository(ctx, *flightLogPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to open flight log: %v", err))
	}
	defer repository.Close(ctx)

	flightLogWorker := workers.NewFlightLogWorker(workers.NewFlightLogWorkerOptions{
		RunID:          runID,
		Registry:       registry,
		Repository:     repository,
		SampleInterval: *sampleInterval,
	})
	go flightLogWorker.Start(ctx)

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:      *apiPort,
		RunID:     runID,
		Seed:      *seed,
		StartedAt: time.Now(),
		Roster:    registry,
		Clock:     clock,
	})
	go apiServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop API server: %v", err)
		}
	}()

	tcpServer := network.NewTCPServer(network.NewTCPServerOptions{
		Addr:     fmt.Sprintf(":%d", *tcpPort),
		Registry: registry,
		Engine:   engine,
		Clock:    clock,
		Seed:     *seed,
	})
	defer tcpServer.Stop()

	if err := tcpServer.Start(ctx); err != nil {
		log.Error("TCP server error: %v", err)
	}
	log.Info("Server shut down")
}
