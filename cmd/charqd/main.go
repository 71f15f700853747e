// Command charqd runs the job queue service: an HTTP front end, a
// supervised pool of transform workers, and a lease-recovery reaper,
// all sharing one SQLite-backed store.
package main

import (
	"context"
	gosql "database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/charq/charq/internal/backoff"
	"github.com/charq/charq/internal/config"
	"github.com/charq/charq/internal/core"
	"github.com/charq/charq/internal/httpapi"
	"github.com/charq/charq/internal/migrate"
	"github.com/charq/charq/internal/queue"
	"github.com/charq/charq/internal/reaper"
	"github.com/charq/charq/internal/store/sqlite"
	"github.com/charq/charq/internal/supervisor"
	"github.com/charq/charq/internal/workerpool"
)

var version = "0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:   "charqd",
		Short: "charqd runs the character-count job queue service",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := openSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return migrate.Run(db)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API, worker pool and reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sqlDB, err := openSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := migrate.Run(sqlDB); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// SQLite tolerates only one writer at a time; a small pool avoids
	// SQLITE_BUSY thrash under the workers' concurrent writes while
	// still letting reads overlap.
	sqlDB.SetMaxOpenConns(4)

	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	st := sqlite.New(bunDB)
	q := queue.New(cfg.QueueBound)
	c := core.New(st, q, cfg.MaxTextBytes, log)

	sup := supervisor.New(supervisor.Config{
		RestartBackoff: cfg.RestartBackoff,
		ShutdownGrace:  time.Duration(cfg.ShutdownGrace) * time.Second,
	}, log)

	workerCfg := workerpool.Config{
		LeaseSeconds: cfg.LeaseSeconds,
		MaxRetries:   cfg.MaxRetries,
		FaultRate:    cfg.FaultRate,
		WorkDelay:    time.Duration(cfg.WorkDelayMS) * time.Millisecond,
		Backoff:      backoff.DefaultConfig(),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		label := fmt.Sprintf("w-%d", i+1)
		sup.Add(label, workerpool.New(label, st, q, workerCfg, log))
	}
	sup.Add("reaper", reaper.New(st, q, reaper.Config{
		Interval: time.Duration(cfg.ReaperInterval) * time.Second,
		Batch:    cfg.Batch,
	}, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup.Start(ctx)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.New(c, log),
	}
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGrace)*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	sup.Stop()
	return nil
}

func openSQLite(path string) (*gosql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := gosql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}
