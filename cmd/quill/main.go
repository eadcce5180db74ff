package main

import (
	"log"
	"os"

	"github.com/seantiz/quill/internal/api"
	"github.com/seantiz/quill/internal/config"
	"github.com/seantiz/quill/internal/connector"
	"github.com/seantiz/quill/internal/pool"
	"github.com/seantiz/quill/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("quill: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"worker_limit", cfg.WorkerLimit,
		"tick_interval", cfg.TickInterval.String(),
	)

	p, err := pool.New(worker.SQLiteFactory(cfg.DBPath, logger), cfg.WorkerLimit, logger)
	if err != nil {
		log.Fatalf("failed to create worker pool: %v", err)
	}

	c := connector.New(p, logger, connector.Options{
		Style:            cfg.Placeholder,
		LogQueries:       cfg.LogQueries,
		CaptureCallSites: cfg.CaptureCallSites,
	})
	defer c.Close()

	if cfg.StatementFile != "" {
		if err := c.LoadQueryFile(cfg.StatementFile); err != nil {
			log.Fatalf("failed to load statement file: %v", err)
		}
		logger.Info("statements loaded", "file", cfg.StatementFile, "count", len(c.Statements()))
	}

	connector.StartTicker(c, cfg.TickInterval)

	srv := api.NewServer(cfg.ListenAddr, c, logger)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
