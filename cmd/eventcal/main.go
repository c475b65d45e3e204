package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"eventcal/internal/calendar"
	"eventcal/internal/config"
	"eventcal/internal/conflict"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/scheduler"
	"eventcal/internal/store"
	"eventcal/internal/store/sqlkv"
	"eventcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	exportPath string
	debug      bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("eventcal failed", err)
		_ = appLog.Close()
		os.Exit(1)
	}
	_ = appLog.Close()
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := conf.Log.Level
	if flags.debug {
		level = "debug"
	}
	appLog.Configure(level, appLog.FileOptions{
		Path:       conf.Log.File,
		MaxSizeMB:  conf.Log.MaxSizeMB,
		MaxBackups: conf.Log.MaxBackups,
	})
	appLog.Info("eventcal starting", "version", "0.1.0")

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"horizon_months", conf.HorizonMonths,
		"conflict_scan", conf.ConflictScan,
		"storage", conf.Storage.Backend,
		"once", flags.once,
		"export", flags.exportPath,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, closeBackend, err := openBackend(ctx, conf.Storage)
	if err != nil {
		return err
	}
	defer closeBackend()

	slotOpts, err := conf.SlotOptions()
	if err != nil {
		return err
	}
	cal := calendar.New(ctx, store.New(backend, conf.Storage.Key), calendar.Options{
		HorizonMonths:          conf.HorizonMonths,
		MaxOccurrencesPerEvent: conf.MaxOccurrencesPerEvent,
		Slots:                  slotOpts,
	})

	switch {
	case flags.exportPath != "":
		return exportICS(afero.NewOsFs(), flags.exportPath, cal.Events())
	case flags.once:
		return printConflicts(os.Stdout, cal.Conflicts(calendar.Query{}))
	}

	if conf.ConflictScan != config.ScanDisabled {
		sched, err := scheduler.New(conf.ConflictScan, cal)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		sched.RunOnce()
	}

	srv := web.NewServer(conf, cal)
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	appLog.Info("eventcal exiting")
	return nil
}

func openBackend(ctx context.Context, sc config.StorageConfig) (store.Backend, func(), error) {
	noop := func() {}
	switch sc.Backend {
	case config.BackendMemory:
		return store.NewMemoryBackend(), noop, nil
	case config.BackendFile:
		return store.NewFileBackend(sc.Path), noop, nil
	case config.BackendSQLite, config.BackendPostgres:
		var (
			b   *sqlkv.Backend
			err error
		)
		if sc.Backend == config.BackendSQLite {
			b, err = sqlkv.OpenSQLite(ctx, sc.Path)
		} else {
			b, err = sqlkv.OpenPostgres(ctx, sc.DSN)
		}
		if err != nil {
			return nil, noop, fmt.Errorf("open %s storage: %w", sc.Backend, err)
		}
		return b, func() {
			if err := b.Close(); err != nil {
				appLog.Error("close storage failed", err)
			}
		}, nil
	}
	return nil, noop, errors.New("unknown storage backend " + sc.Backend)
}

type conflictReport struct {
	GeneratedAt time.Time             `json:"generatedAt"`
	Count       int                   `json:"count"`
	Groups      []model.ConflictGroup `json:"groups"`
}

func printConflicts(w io.Writer, groups []model.ConflictGroup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(conflictReport{
		GeneratedAt: time.Now().UTC(),
		Count:       conflict.Count(groups),
		Groups:      groups,
	})
}

func exportICS(fsys afero.Fs, path string, events []model.Event) error {
	body := ics.Export(events, time.Now())
	if err := afero.WriteFile(fsys, path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	appLog.Info("calendar exported", "path", path, "events", len(events))
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/eventcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print the conflict report as JSON and exit")
	flag.StringVar(&cfg.exportPath, "export", "", "Write all events to this .ics file and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
