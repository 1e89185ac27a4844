package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/PulseFlow/pkg/pulseflow"
)

func main() {
	cfg := pulseflow.DefaultConfig()
	cfg.Device.ID = "bedside-demo"
	cfg.Publisher.Interval = 5 * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, ev pulseflow.Event) error {
		s := ev.Sample
		fmt.Printf("%s %s device=%s hr=%d spo2=%d\n",
			time.Unix(s.Timestamp, 0).Format(time.RFC3339),
			ev.Name, s.DeviceID, s.HeartRate, s.SpO2)
		return nil
	}

	if err := pulseflow.ConfFromConfig(cfg).PublishFunc("stdout", callback).Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
