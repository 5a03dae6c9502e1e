// Command summarizer drives C6: one sweep of every stale post summary.
// Intended to run on a schedule (cron, systemd timer) rather than as a
// long-lived daemon.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/sirupsen/logrus"

	"github.com/dfroberg/coursepilot/internal/config"
	"github.com/dfroberg/coursepilot/internal/logger"
	"github.com/dfroberg/coursepilot/internal/summarizer"
	"github.com/dfroberg/coursepilot/internal/tracing"
	"github.com/dfroberg/coursepilot/internal/wiring"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	logger.Configure(logrus.InfoLevel, true)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("summarizer: load config: %v", err)
	}

	shutdown, err := tracing.Init("coursepilot-summarizer", false)
	if err != nil {
		log.Fatalf("summarizer: init tracing: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	container, err := wiring.Build(cfg)
	if err != nil {
		log.Fatalf("summarizer: build container: %v", err)
	}

	ctx := context.Background()
	err = container.Invoke(func(s *summarizer.Summarizer) error {
		return s.Run(ctx)
	})
	if err != nil {
		log.Fatalf("summarizer: run: %v", err)
	}
}
