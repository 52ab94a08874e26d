package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/joho/godotenv"

	"github.com/hoopcast/hoopcast/internal/game"
	"github.com/hoopcast/hoopcast/internal/rooms"
	"github.com/hoopcast/hoopcast/internal/server"
	"github.com/hoopcast/hoopcast/internal/sim"
	"github.com/hoopcast/hoopcast/internal/stats"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"hoopcast.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	NoSim    bool   `long:"no-sim" help:"Disable the automatic simulation loop (overrides config)"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// .env is optional; it carries local secrets like the stats API key.
	_ = godotenv.Load()

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	// Apply command line and environment overrides
	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.NoSim {
		cfg.Simulation.Auto = false
	}
	if key := os.Getenv("BALLDONTLIE_API_KEY"); key != "" {
		cfg.Stats.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	logger.Info("Starting Hoopcast Server",
		"addr", cfg.Addr(),
		"games", len(cfg.Games),
		"autoSim", cfg.Simulation.Auto)

	clock := quartz.NewReal()
	store := game.NewMemoryStore()
	broadcaster := rooms.NewBroadcaster(store, logger, clock)
	store.SetInUseCheck(broadcaster.HasSubscribers)

	var provider stats.Provider = stats.NewUpstreamClient(stats.UpstreamConfig{
		BaseURL: cfg.Stats.BaseURL,
		APIKey:  cfg.Stats.APIKey,
	})
	if cfg.Stats.RetryAttempts > 1 {
		provider = stats.NewRetryingProvider(provider, logger, clock, cfg.Stats.RetryAttempts, time.Second)
	}
	cache := stats.NewCache(provider, logger, clock, stats.CacheConfig{
		TTL:              cfg.StatsTTL(),
		FetchConcurrency: cfg.Stats.FetchConcurrency,
		DayTimeout:       cfg.StatsDayTimeout(),
	})

	engine := sim.NewEngine(store, broadcaster, cache, logger, clock, cfg.Simulation.Seed)

	// Seed the configured games
	for _, gc := range cfg.Games {
		date := time.Now().UTC()
		if gc.Date != "" {
			date, _ = time.Parse("2006-01-02", gc.Date) // Validated above
		}
		g := &game.Game{
			ID:       gc.ID,
			Date:     date,
			HomeTeam: gc.HomeTeam,
			AwayTeam: gc.AwayTeam,
			Status:   game.StatusScheduled,
			Quarter:  1,
			Clock:    "12:00",
		}
		if err := store.Create(g); err != nil {
			logger.Error("Failed to seed game", "error", err, "game", gc.ID)
			ctx.Exit(1)
		}
		logger.Info("Seeded game", "id", gc.ID, "matchup", fmt.Sprintf("%s vs %s", gc.HomeTeam, gc.AwayTeam))
	}

	srv := server.NewServer(cfg.Addr(), logger, &server.Deps{
		Store:  store,
		Rooms:  broadcaster,
		Engine: engine,
		Stats:  cache,
		Clock:  clock,
	})

	simCtx, stopSim := context.WithCancel(context.Background())
	defer stopSim()
	if cfg.Simulation.Auto {
		go engine.Run(simCtx, cfg.SimInterval())
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Shutting down server...")
		stopSim()
		if err := srv.Stop(); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
		os.Exit(0)
	}()

	if err := srv.Start(); err != nil {
		logger.Error("Server failed", "error", err)
		ctx.Exit(1)
	}
}
