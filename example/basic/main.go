// Command basic publishes vitals with the settings from a YAML file and logs
// every publish as JSON on stderr.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/PulseFlow"
)

func main() {
	path := flag.String("config", "../../data/config.yaml", "path to the device config")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := pulseflow.LoadConfig(*path)
	if err != nil {
		logger.Error("load config", "path", *path, "err", err)
		os.Exit(1)
	}

	rt, err := pulseflow.NewDeviceRuntime(cfg, pulseflow.WithLogger(logger))
	if err != nil {
		logger.Error("build runtime", "err", err)
		os.Exit(1)
	}
	if err := rt.Start(); err != nil {
		logger.Error("start runtime", "err", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
		os.Exit(1)
	}
}
