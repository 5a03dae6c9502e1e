// Command scraper drives C2/C3/C5: a full-course crawl when -course is set,
// otherwise a continuous drain of the incremental update queue.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/sirupsen/logrus"

	"github.com/dfroberg/coursepilot/internal/config"
	"github.com/dfroberg/coursepilot/internal/ingest"
	"github.com/dfroberg/coursepilot/internal/logger"
	"github.com/dfroberg/coursepilot/internal/tracing"
	"github.com/dfroberg/coursepilot/internal/wiring"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	course := flag.String("course", "", "course id for a one-shot full scrape; omitted means drain the incremental queue")
	flag.Parse()

	logger.Configure(logrus.InfoLevel, true)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("scraper: load config: %v", err)
	}

	shutdown, err := tracing.Init("coursepilot-scraper", false)
	if err != nil {
		log.Fatalf("scraper: init tracing: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	container, err := wiring.Build(cfg)
	if err != nil {
		log.Fatalf("scraper: build container: %v", err)
	}

	ctx := context.Background()
	err = container.Invoke(func(s *ingest.Scraper) error {
		if *course != "" {
			return s.FullScrape(ctx, *course)
		}
		return s.IncrementalScrape(ctx)
	})
	if err != nil {
		log.Fatalf("scraper: run: %v", err)
	}
}
