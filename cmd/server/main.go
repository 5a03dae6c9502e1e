// Command server runs the ops/admin HTTP surface: /healthz, /system/info,
// swagger docs, and an optional operator status websocket. It is not the
// chat front door; that transport lives elsewhere.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dfroberg/coursepilot/internal/adminserver"
	"github.com/dfroberg/coursepilot/internal/config"
	"github.com/dfroberg/coursepilot/internal/logger"
	"github.com/dfroberg/coursepilot/internal/tracing"
	"github.com/dfroberg/coursepilot/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger.Configure(logrus.InfoLevel, true)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("server: load config: %v", err)
	}

	shutdown, err := tracing.Init("coursepilot-server", false)
	if err != nil {
		log.Fatalf("server: init tracing: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	router := adminserver.New(cfg)

	broadcaster := ws.NewBroadcaster()
	router.GET("/ws/status", func(c *gin.Context) {
		broadcaster.Handler(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("server: listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}
