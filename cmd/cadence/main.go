package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/seantiz/cadence/internal/api"
	"github.com/seantiz/cadence/internal/config"
	"github.com/seantiz/cadence/internal/driver"
	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/manifest"
	"github.com/seantiz/cadence/internal/recorder"
	"github.com/seantiz/cadence/internal/sandbox"
	"github.com/seantiz/cadence/internal/sink"
	"github.com/seantiz/cadence/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("cadence: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"manifest", cfg.ManifestPath,
		"tick_interval", cfg.TickInterval,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rec := recorder.New(db, recorder.DefaultQueueSize, logger)
	defer rec.Close()

	runner := sandbox.NewJSRunner(sandbox.Budget{
		Timeout:       cfg.ScriptTimeout,
		MaxAllocBytes: cfg.ScriptMemBytes,
	}, logger)

	eng, err := newEngine(cfg, runner, rec, logger)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if cfg.MQTTURL != "" {
		pub, err := sink.NewMQTTPublisher(cfg.MQTTURL, cfg.MQTTClientID)
		if err != nil {
			log.Fatalf("failed to connect to mqtt broker: %v", err)
		}
		defer pub.Close()

		snaps, unsub := eng.Snapshots().Subscribe()
		defer unsub()
		s := sink.New(pub, cfg.MQTTTopic, logger)
		wg.Go(func() { s.Run(ctx, snaps) })
		logger.Info("mqtt sink enabled", "url", cfg.MQTTURL, "topic", cfg.MQTTTopic)
	}

	drv := driver.New(eng, cfg.TickInterval, logger)
	wg.Go(func() {
		if err := drv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("driver stopped", "error", err)
		}
	})

	srv := api.NewServer(cfg.ListenAddr, db, eng, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
	}
	stop()
	wg.Wait()
}

// newEngine builds the engine, seeding it from the manifest when one is
// configured.
func newEngine(cfg config.Config, runner *sandbox.JSRunner, rec *recorder.Recorder, logger *slog.Logger) (*engine.Engine, error) {
	if cfg.ManifestPath == "" {
		return engine.NewEngine(engine.Config{}, runner, rec, logger)
	}

	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	ecfg, err := m.Config()
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewEngine(ecfg, runner, rec, logger)
	if err != nil {
		return nil, err
	}
	if err := m.Apply(eng); err != nil {
		eng.Close()
		return nil, err
	}
	logger.Info("manifest loaded",
		"path", cfg.ManifestPath,
		"clips", len(m.Clips),
		"scripts", len(m.Scripts),
	)
	return eng, nil
}
