package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stationgo/server/internal/config"
	"github.com/stationgo/server/internal/core/ecs"
	"github.com/stationgo/server/internal/core/event"
	coresys "github.com/stationgo/server/internal/core/system"
	"github.com/stationgo/server/internal/data"
	"github.com/stationgo/server/internal/handler"
	gonet "github.com/stationgo/server/internal/net"
	"github.com/stationgo/server/internal/netsync"
	"github.com/stationgo/server/internal/scripting"
	"github.com/stationgo/server/internal/system"
	"github.com/stationgo/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("STATIOND_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		// Defaults are enough to boot without a config file.
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = config.Defaults()
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting", zap.String("server", cfg.Server.Name), zap.Int("id", cfg.Server.ID))

	// Static data and scripts.
	protos := data.EmptyPrototypeTable()
	if cfg.Data.PrototypePath != "" {
		if t, err := data.LoadPrototypeTable(cfg.Data.PrototypePath); err == nil {
			protos = t
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("prototypes: %w", err)
		}
	}
	log.Info("prototypes loaded", zap.Int("count", protos.Len()))

	engine, err := scripting.NewEngine(cfg.Scripting.ScriptDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()

	// Core wiring: clock, bus, world, loader, maps.
	clock := &coresys.Clock{}
	bus := event.NewBus(log)
	w := ecs.NewWorld(clock, bus, cfg.Sim.StrictLifecycle, log)
	bus.SetDescriber(w.Describe)
	w.Store().SetChangeHook(bus.OnComponentChanged)
	w.SetLoader(world.NewLoader(protos, engine, bus, w.Store(), log))
	maps := world.NewMapRegistry()
	w.SetMapService(maps)

	if err := bus.CalcOrdering(); err != nil {
		return fmt.Errorf("event ordering: %w", err)
	}

	// Transport.
	srv, err := gonet.NewServer(cfg.Network.BindAddress,
		cfg.Network.InQueueSize, cfg.Network.OutQueueSize,
		cfg.Network.ReadTimeout, cfg.Network.WriteTimeout, log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer srv.Shutdown()
	hub := gonet.NewHub(srv, log)
	go srv.AcceptLoop()
	log.Info("listening", zap.String("addr", srv.Addr().String()))

	// Reconciliation and message handlers.
	queue := netsync.NewQueue(hub, cfg.Sim.LogLateMessages, log)
	reg := gonet.NewRegistry(log)
	handler.RegisterAll(reg, queue, w, log)

	gauge := &world.EntityGauge{}
	gauge.Publish("stationd.entities.live")

	runner := coresys.NewRunner()
	runner.Register(system.NewReconcileSystem(hub, reg, queue, clock, cfg.Network.MaxFramesPerTick, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewOutputSystem(hub))
	runner.Register(system.NewCleanupSystem(w, gauge))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Sim.TickRate)
	defer ticker.Stop()

	log.Info("simulation running", zap.Duration("tick_rate", cfg.Sim.TickRate))
	last := time.Now()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			clock.Advance()
			runner.Tick(now.Sub(last))
			last = now
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			hub.CloseAll()
			log.Info("stopped", zap.Int64("live_entities", gauge.Value()))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
