package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"swing-engine/internal/api"
	"swing-engine/internal/broker"
	"swing-engine/internal/coordinator"
	"swing-engine/internal/events"
	"swing-engine/internal/ledger"
	"swing-engine/internal/monitor"
	"swing-engine/internal/risk"
	"swing-engine/internal/strategy"
	"swing-engine/pkg/config"
	"swing-engine/pkg/db"
	"swing-engine/pkg/identity"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	log.Printf("swing engine starting, port=%s db=%s", cfg.Port, cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	// In-memory ledger seeded from DB
	book := ledger.NewManager(database)
	if err := book.Load(ctx); err != nil {
		log.Fatalf("ledger load failed: %v", err)
	}
	log.Printf("ledger loaded, open positions=%d", book.Count())

	// Layered strategy configuration; a missing file falls back to defaults.
	resolver, err := strategy.NewResolver(cfg.StrategyConfigPath)
	if err != nil {
		log.Fatalf("strategy config load failed: %v", err)
	}

	riskMgr := risk.NewManager(book, cfg.MaxPositions, cfg.InitialCapital)

	// Broker client identity is stable per host unless overridden.
	clientID := cfg.ClientID
	if clientID == "" {
		if clientID, err = identity.ClientID(); err != nil {
			log.Printf("client id derivation failed, using fallback: %v", err)
			clientID = "swing-local"
		}
	}

	venue := "paper"
	var venueBroker broker.Broker = broker.NewPaper(clientID)
	if !cfg.UsePaperBroker {
		// Only the paper venue ships today. A live gateway slots in here.
		log.Println("live venue not configured, falling back to paper")
	}
	venueBroker = broker.Throttle(venueBroker, cfg.BrokerRPS, cfg.HistoryCacheTTL)

	coord := coordinator.New(coordinator.Config{
		Watchlist:       cfg.Watchlist,
		ScanInterval:    cfg.ScanInterval,
		MonitorInterval: cfg.MonitorInterval,
		HistoryLookback: cfg.HistoryLookback,
		BarSize:         cfg.BarSize,
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectBackoff:  cfg.ConnectBackoff,
		SettleDelay:     cfg.SettleDelay,
	}, venueBroker, resolver, book, riskMgr, bus)

	mon := &monitor.Monitor{Bus: bus}
	mon.Start(ctx)

	passHash := cfg.OperatorPassHash
	if passHash == "" {
		if passHash, err = api.HashPassword(cfg.OperatorPassword); err != nil {
			log.Fatalf("password hash failed: %v", err)
		}
	}

	server := api.NewServer(&api.Server{
		Bus:          bus,
		Ledger:       book,
		Resolver:     resolver,
		Risk:         riskMgr,
		Monitor:      mon,
		Coord:        coord,
		JWTSecret:    cfg.JWTSecret,
		PasswordHash: passHash,
		Meta: api.SystemMeta{
			Venue:     venue,
			Watchlist: cfg.Watchlist,
			Version:   buildVersion,
		},
	})
	go func() {
		if err := server.Router.Run(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	go func() {
		if err := coord.Run(ctx); err != nil {
			log.Printf("coordinator stopped: %v", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		log.Println("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()
	bus.Close()
}
