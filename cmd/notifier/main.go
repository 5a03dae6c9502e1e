// Command notifier drives C10: one sweep of every active standing query.
// Intended to run on a schedule, same as cmd/summarizer.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/sirupsen/logrus"

	"github.com/dfroberg/coursepilot/internal/config"
	"github.com/dfroberg/coursepilot/internal/logger"
	"github.com/dfroberg/coursepilot/internal/notifier"
	"github.com/dfroberg/coursepilot/internal/tracing"
	"github.com/dfroberg/coursepilot/internal/wiring"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	logger.Configure(logrus.InfoLevel, true)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("notifier: load config: %v", err)
	}

	shutdown, err := tracing.Init("coursepilot-notifier", false)
	if err != nil {
		log.Fatalf("notifier: init tracing: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	container, err := wiring.Build(cfg)
	if err != nil {
		log.Fatalf("notifier: build container: %v", err)
	}

	ctx := context.Background()
	err = container.Invoke(func(n *notifier.Notifier) error {
		return n.Run(ctx)
	})
	if err != nil {
		log.Fatalf("notifier: run: %v", err)
	}
}
