package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/PulseFlow"
)

func main() {
	flow, err := pulseflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ch, events, closeEvents := pulseflow.NewGoChannel("fanout", 32)
	defer closeEvents()

	go fanoutWorker("alerts", events)

	if err := flow.PublishTo(ch).Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// fanoutWorker flags readings outside the usual resting band.
func fanoutWorker(name string, events <-chan pulseflow.Event) {
	for ev := range events {
		s := ev.Sample
		if s.HeartRate > 90 || s.SpO2 < 97 {
			fmt.Printf("[%s] %s hr=%d spo2=%d\n", name, s.DeviceID, s.HeartRate, s.SpO2)
		}
	}
}
