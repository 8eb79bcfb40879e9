// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lasersell/lasersell/internal/alert"
	"github.com/lasersell/lasersell/internal/blockchain/solbc"
	"github.com/lasersell/lasersell/internal/config"
	"github.com/lasersell/lasersell/internal/engine"
	"github.com/lasersell/lasersell/internal/events"
	"github.com/lasersell/lasersell/internal/exitapi"
	"github.com/lasersell/lasersell/internal/logger"
	"github.com/lasersell/lasersell/internal/metrics"
	"github.com/lasersell/lasersell/internal/session"
	"github.com/lasersell/lasersell/internal/status"
	"github.com/lasersell/lasersell/internal/storage"
	"github.com/lasersell/lasersell/internal/storage/gormstore"
	"github.com/lasersell/lasersell/internal/stream"
	"github.com/lasersell/lasersell/internal/ui"
	"github.com/lasersell/lasersell/internal/wallet"
)

const (
	busBufferSize     = 4096
	uiBufferSize      = 1024
	commandBufferSize = 64

	executorDrainTimeout = 5 * time.Second
)

// Options are the command line switches.
type Options struct {
	ConfigPath string
	Headless   bool
	Debug      bool
	Version    string
}

// Runner assembles and runs the whole agent.
type Runner struct {
	opts Options
}

func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Run blocks until ctx is cancelled, the user quits, or a component fails.
func (r *Runner) Run(ctx context.Context) error {
	cfg, err := config.Load(r.opts.ConfigPath)
	if err != nil {
		return err
	}
	if r.opts.Debug {
		cfg.Logging.Debug = true
	}

	forward := &lateSink{}
	logOpts := logger.Options{
		Console: r.opts.Headless,
		Secrets: []string{cfg.Account.APIKey, cfg.Telegram.Token, cfg.Status.Token},
	}
	if !r.opts.Headless {
		logOpts.Sink = forward
	}
	log, err := logger.New(cfg.Logging, logOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync(log) }()

	bus := events.NewBus(log, busBufferSize)
	forward.set(bus)
	shutdown := NewShutdownHandler(log, cfg.Status.ShutdownTimeout)

	err = r.run(ctx, cfg, log, bus, shutdown)

	shutdownCtx := context.Background()
	if serr := shutdown.Shutdown(shutdownCtx); serr != nil {
		log.Warn("shutdown_errors", zap.Error(serr))
	}
	forward.set(nil)
	busCtx, cancel := context.WithTimeout(shutdownCtx, 2*time.Second)
	defer cancel()
	if berr := bus.Shutdown(busCtx); berr != nil {
		log.Warn("event_bus_shutdown", zap.Error(berr))
	}
	log.Info("👋 LaserSell stopped")
	return err
}

func (r *Runner) run(ctx context.Context, cfg *config.Config, log *zap.Logger, bus *events.Bus, shutdown *ShutdownHandler) error {
	w, err := wallet.Load(cfg.Account.KeypairPath)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	log.Info("🔑 Wallet loaded", zap.String("wallet", logger.ShortenAddress(w.PublicKey.String())))

	collector := metrics.NewCollector()
	bus.Subscribe(collector)

	rpcClient := solbc.NewClient(cfg.Account.RPCURL, log,
		solbc.WithRequestTimeout(config.RPCRequestTimeout),
		solbc.WithObserver(rpcObserver(collector, bus)),
	)

	streamClient := stream.NewClient(cfg.StreamEndpoint(), cfg.Account.APIKey, log)
	conn, err := streamClient.Connect(ctx, stream.ConfigureMessage{
		WalletPubkeys:      []string{w.PublicKey.String()},
		Strategy:           cfg.Strategy.Message(),
		DeadlineTimeoutSec: cfg.Strategy.DeadlineTimeoutSec,
	})
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	shutdown.AddFunc("stream", func() error {
		conn.Close()
		return nil
	})
	log.Info("📡 Stream connected", zap.String("endpoint", logger.RedactURL(cfg.StreamEndpoint())))

	exitOpts := exitapi.DefaultOptions(cfg.Account.Local)
	exitOpts.ConnectTimeout = config.ExitAPIConnectTimeout
	exitOpts.AttemptTimeout = config.ExitAPIAttemptTimeout
	exitClient := exitapi.NewClient(cfg.Account.APIKey, exitOpts, log)

	store := session.NewStore()
	eng, err := engine.New(engine.Deps{
		Logger:   log,
		Store:    store,
		Stream:   stream.NewHandle(conn),
		ExitAPI:  exitClient,
		Signer:   w,
		RPC:      rpcClient,
		Sink:     bus,
		Wallet:   w.PublicKey,
		Strategy: cfg.Strategy,
		Sell:     cfg.Sell,
		Devnet:   cfg.Account.Devnet,
	})
	if err != nil {
		return err
	}

	commands := make(chan events.Command, commandBufferSize)

	var journal storage.Journal
	if cfg.Journal.Enabled {
		js, err := gormstore.Open(cfg.Journal.Path, log, cfg.Logging.Debug)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		shutdown.Add("journal", js)
		journal = js
		recorder := storage.NewRecorder(js, log)
		bus.Subscribe(recorder, recorder.Types()...)
	}

	// Drains before the journal and stream close.
	shutdown.AddFunc("sell_executors", func() error {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), executorDrainTimeout)
		defer drainCancel()
		if err := eng.Wait(drainCtx); err != nil {
			log.Warn("⚠️ Sell executors still running at shutdown",
				zap.Int("running", eng.Running()),
				zap.Error(err))
		}
		return nil
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Telegram.Enabled {
		tg, err := alert.NewTelegram(cfg.Telegram, commands, log)
		if err != nil {
			return err
		}
		bus.Subscribe(tg, tg.Types()...)
		g.Go(func() error { return tg.Run(gctx) })
	}

	if cfg.Status.Enabled {
		srv, err := status.NewServer(cfg.Status, status.Options{
			Sessions: store,
			Engine:   eng,
			Journal:  journal,
			Metrics:  collector.HTTPHandler(),
			Commands: commands,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Start(gctx) })
	}

	if err := config.Watch(r.opts.ConfigPath, log, settingsForwarder(commands, log)); err != nil {
		log.Warn("config_watch_unavailable", zap.Error(err))
	}

	streamEvents := stream.NewAdapter(log).Run(gctx, conn)
	poller := engine.NewBalancePoller(rpcClient, bus, w.PublicKey, cfg.Account.Devnet, log)

	bus.Emit(events.Startup{
		Version:      r.opts.Version,
		Devnet:       cfg.Account.Devnet,
		WalletPubkey: w.PublicKey,
	})
	log.Info("🚀 LaserSell started",
		zap.String("version", r.opts.Version),
		zap.Bool("devnet", cfg.Account.Devnet),
		zap.Bool("headless", r.opts.Headless))

	g.Go(func() error {
		// The engine returning ends the session for everyone else.
		defer cancel()
		return eng.Run(gctx, streamEvents, commands)
	})
	g.Go(func() error { return poller.Run(gctx) })

	if !r.opts.Headless {
		sink := events.NewChannelSink(uiBufferSize, log)
		shutdown.AddFunc("ui_sink", func() error {
			sink.Close()
			return nil
		})
		bus.SubscribeFunc(func(_ context.Context, ev events.Event) error {
			sink.Emit(ev)
			return nil
		})
		g.Go(func() error {
			err := ui.Run(gctx, log, ui.Options{
				Wallet:   w.PublicKey,
				Devnet:   cfg.Account.Devnet,
				Events:   sink.Events(),
				Commands: commands,
			})
			if err != nil {
				// The dashboard is optional; keep selling without it.
				log.Error("Dashboard stopped", zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// rpcObserver feeds every RPC outcome into the metrics collector and the bus.
func rpcObserver(collector *metrics.Collector, sink events.Sink) solbc.Observer {
	return func(method string, elapsed time.Duration, err error) {
		collector.ObserveRPC(method, elapsed, err)
		sink.Emit(events.RpcMetric{
			Method:     method,
			DurationMS: uint64(elapsed.Milliseconds()),
			OK:         err == nil,
		})
	}
}

// settingsForwarder turns a reloaded config file into an ApplySettings command.
func settingsForwarder(commands chan<- events.Command, log *zap.Logger) func(*config.Config) {
	return func(cfg *config.Config) {
		select {
		case commands <- events.ApplySettings{Strategy: cfg.Strategy, Sell: cfg.Sell}:
		default:
			log.Warn("Dropping config reload, command queue full",
				zap.String("event", "config_reload_dropped"))
		}
	}
}

// lateSink lets the logger forward into a bus that is built after it.
type lateSink struct {
	bus atomic.Pointer[events.Bus]
}

func (s *lateSink) set(bus *events.Bus) { s.bus.Store(bus) }

func (s *lateSink) Emit(event events.Event) {
	if bus := s.bus.Load(); bus != nil {
		bus.Emit(event)
	}
}
