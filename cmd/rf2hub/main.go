// Command rf2hub routes relayed telemetry between the sender and the
// receivers of each session and manages activation keys.
//
// Usage:
//
//	rf2hub [-config dir]                   serve
//	rf2hub [-config dir] addkey KEY [LABEL]
//	rf2hub [-config dir] revokekey KEY
//	rf2hub [-config dir] sessions
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/simlink/relay/internal/config"
	"github.com/simlink/relay/internal/database"
	"github.com/simlink/relay/internal/hub"
	"github.com/simlink/relay/internal/logging"
	"github.com/simlink/relay/internal/store"
)

// BuildDate and Version can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	Name = "rf2hub"
)

func main() {
	configDir := flag.String("config", ".", "directory holding "+config.HubConfigName)
	flag.Parse()

	if err := run(*configDir, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir string, args []string, out io.Writer) error {
	if err := config.Load(configDir, config.HubConfigName); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logFile, err := os.OpenFile(logging.LogFilePath(logsDir, Name, time.Now()), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	level := config.GetString("logLevel")
	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{
		Name:    Name,
		Level:   level,
		File:    logFile,
		Graylog: graylogWriter(),
	})
	logger := slogManager.Logger()
	slog.SetDefault(logger)

	st, closeDB, err := openStore(logging.NewZerolog(logFile, level))
	if err != nil {
		return err
	}
	defer closeDB()

	cmd := "serve"
	if len(args) > 0 {
		cmd = strings.ToLower(args[0])
	}

	switch cmd {
	case "serve":
		logger.Info("Starting", "name", Name, "version", Version, "build", BuildDate)
		hc := config.GetHubConfig()
		server := hub.New(hub.Config{
			Listen:    hc.Listen,
			Path:      hc.Path,
			CertFile:  hc.CertFile,
			KeyFile:   hc.KeyFile,
			QueueSize: hc.QueueSize,
		}, st, logger)
		return server.ListenAndServe(ctx)

	case "addkey":
		if len(args) < 2 {
			return errors.New("addkey: missing key")
		}
		label := ""
		if len(args) > 2 {
			label = strings.Join(args[2:], " ")
		}
		if err := st.AddKey(args[1], label); err != nil {
			return err
		}
		fmt.Fprintln(out, "key added")
		return nil

	case "revokekey":
		if len(args) < 2 {
			return errors.New("revokekey: missing key")
		}
		if err := st.RevokeKey(args[1]); err != nil {
			return err
		}
		fmt.Fprintln(out, "key revoked")
		return nil

	case "sessions":
		sessions, err := st.Sessions()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openStore(log zerolog.Logger) (*store.Store, func(), error) {
	sc := config.GetStoreConfig()
	dbManager := database.NewManager(log)
	err := dbManager.Connect(database.Config{
		Type:       sc.Type,
		SqlitePath: sc.SqlitePath,
		Host:       sc.Host,
		Port:       sc.Port,
		Username:   sc.Username,
		Password:   sc.Password,
		Database:   sc.Database,
	})
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := dbManager.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}

	st := store.New(dbManager.DB, log)
	if err := st.Migrate(); err != nil {
		closeDB()
		return nil, nil, err
	}
	return st, closeDB, nil
}

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
