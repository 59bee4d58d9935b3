// Command rf2relay runs next to the simulator. It relays the local driver's
// shared memory to the hub while they drive and shows a teammate's relayed
// data while they spectate.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simlink/relay/internal/arbiter"
	"github.com/simlink/relay/internal/config"
	"github.com/simlink/relay/internal/influx"
	"github.com/simlink/relay/internal/liveness"
	"github.com/simlink/relay/internal/logging"
	"github.com/simlink/relay/internal/monitor"
	intOtel "github.com/simlink/relay/internal/otel"
	"github.com/simlink/relay/internal/player"
	"github.com/simlink/relay/internal/relay"
	"github.com/simlink/relay/internal/snapshot"
)

// BuildDate and Version can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	Name = "rf2relay"
)

func main() {
	configDir := flag.String("config", ".", "directory holding "+config.RelayConfigName)
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	if err := config.Load(configDir, config.RelayConfigName); err != nil {
		return err
	}
	sessionStart := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logFile, err := os.OpenFile(logging.LogFilePath(logsDir, Name, sessionStart), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	provider, err := newOTelProvider(ctx, logsDir, sessionStart)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	var arb *arbiter.Arbiter
	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{
		Name:     Name,
		Level:    config.GetString("logLevel"),
		File:     logFile,
		Graylog:  graylogWriter(),
		Provider: provider.LoggerProvider(),
		Context: func() []slog.Attr {
			if arb == nil {
				return nil
			}
			return []slog.Attr{slog.String("role", arb.Role().String())}
		},
	})
	logger := slogManager.Logger()
	slog.SetDefault(logger)
	logger.Info("Starting", "name", Name, "version", Version, "build", BuildDate)

	sm := config.GetSharedMemoryConfig()
	lv := config.GetLivenessConfig()
	rc := config.GetRelayConfig()
	ac := config.GetArbiterConfig()

	override := player.NewOverride()
	override.SetIndex(sm.PlayerIndex)
	override.SetActive(sm.PlayerOverride)

	arb = arbiter.New(arbiter.Config{
		Interval:       ac.Interval,
		StartupRetries: ac.StartupRetries,
		StartupDelay:   ac.StartupDelay,
	}, arbiter.Dependencies{
		ProcessID:   sm.ProcessID,
		Mode:        snapshot.Mode(sm.Mode),
		CopyRetries: sm.CopyRetries,
		Override:    override,
		Liveness: liveness.Config{
			FreezeTimeout:  lv.FreezeTimeout,
			ActiveInterval: lv.ActiveInterval,
			IdleInterval:   lv.IdleInterval,
			MissLimit:      lv.MissLimit,
			StopTimeout:    lv.StopTimeout,
		},
		RelayEnabled: rc.Enabled,
		Relay: relay.Config{
			URL:                rc.URL,
			Session:            rc.Session,
			ActivationKey:      rc.ActivationKey,
			SendInterval:       rc.SendInterval,
			MaxReconnect:       rc.MaxReconnect,
			InitialBackoff:     rc.InitialBackoff,
			MaxBackoff:         rc.MaxBackoff,
			HandshakeTimeout:   rc.HandshakeTimeout,
			InsecureSkipVerify: rc.InsecureSkipVerify,
		},
		Logger: logger,
	})
	defer func() {
		if err := arb.Close(); err != nil {
			logger.Error("Failed to release shared memory", "error", err)
		}
	}()
	arb.OnSwitch(func(r arbiter.Role) {
		logger.Info("Role switched", "role", r.String(), "session", rc.Session)
	})

	deps := monitor.Dependencies{
		Source:     arb,
		Session:    rc.Session,
		StatusPath: filepath.Join(logsDir, "status.json"),
		Interval:   ac.Interval,
		Logger:     logger,
	}
	if im := newInflux(ctx, logFile, logsDir, logger); im != nil {
		defer im.Close()
		deps.Points = im
	}
	monitorService := monitor.NewService(deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return arb.Run(gctx)
	})
	g.Go(func() error {
		if err := monitorService.Start(); err != nil {
			return err
		}
		<-gctx.Done()
		monitorService.Stop()
		return nil
	})

	err = g.Wait()
	logger.Info("Stopped", "error", err)
	if flushErr := slogManager.Flush(context.Background()); flushErr != nil && err == nil {
		err = flushErr
	}
	return err
}

func newOTelProvider(ctx context.Context, logsDir string, start time.Time) (*intOtel.Provider, error) {
	oc := config.GetOTelConfig()
	cfg := intOtel.Config{
		Enabled:        oc.Enabled,
		ServiceName:    oc.ServiceName,
		BatchTimeout:   oc.BatchTimeout,
		MetricInterval: oc.MetricInterval,
		Endpoint:       oc.Endpoint,
		Insecure:       oc.Insecure,
	}
	if oc.Enabled {
		f, err := os.OpenFile(logging.LogFilePath(logsDir, Name+".otel", start), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open otel log file: %w", err)
		}
		cfg.LogWriter = f
	}
	return intOtel.New(ctx, cfg)
}

// graylogWriter returns nil when Graylog is disabled or unreachable.
func graylogWriter() io.Writer {
	gc := config.GetGraylogConfig()
	if !gc.Enabled {
		return nil
	}
	w, err := logging.NewGraylogWriter(gc.Address)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil
	}
	return w
}

// newInflux returns nil when influx is disabled or has no backup either.
func newInflux(ctx context.Context, out io.Writer, logsDir string, logger *slog.Logger) *influx.Manager {
	ic := config.GetInfluxConfig()
	if !ic.Enabled {
		return nil
	}
	im := influx.NewManager(ic,
		logging.NewZerolog(out, config.GetString("logLevel")),
		filepath.Join(logsDir, influx.Measurement+".lp.gz"),
	)
	if err := im.Connect(ctx); err != nil {
		logger.Warn("Performance metrics disabled", "error", err)
		return nil
	}
	return im
}
