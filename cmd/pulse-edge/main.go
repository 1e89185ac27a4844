// pulse-edge runs the PulseFlow device runtime: it samples vitals on a fixed
// interval and publishes them through the configured channel.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/ghalamif/PulseFlow"
)

const defaultConfigPath = "./data/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "sample":
		err = sampleCommand(os.Args[2:], os.Stdout)
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		printUsage(os.Stderr)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "pulse-edge %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", defaultConfigPath, "path to device configuration file")
	deviceID := fs.String("device-id", "", "override the configured device id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := pulseflow.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *deviceID != "" {
		cfg.Device.ID = *deviceID
	}

	logger := newLogger(cfg.Log, os.Getenv("PULSE_DEBUG") != "", os.Stderr)
	slog.SetDefault(logger)

	rt, err := pulseflow.NewDeviceRuntime(cfg,
		pulseflow.WithLogger(logger),
		pulseflow.WithRegisterer(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", defaultConfigPath, "path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := pulseflow.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s ok: %s every %s via %s channel\n",
		*cfgPath, cfg.Publisher.EventName, cfg.Publisher.Interval, cfg.Channel.Kind)
	return nil
}

// sampleCommand prints payloads as the publisher would build them, one per
// elapsed interval, without touching the configured channel.
func sampleCommand(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("sample", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "", "optional configuration file (defaults apply when empty)")
	count := fs.IntP("count", "n", 1, "number of payloads to print")
	deviceID := fs.String("device-id", "", "device id to stamp into payloads")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count <= 0 {
		return fmt.Errorf("--count must be > 0")
	}

	cfg := pulseflow.DefaultConfig()
	if *cfgPath != "" {
		loaded, err := pulseflow.LoadConfig(*cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Spool.Enabled = false

	opts := []pulseflow.DeviceRuntimeOption{
		pulseflow.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		pulseflow.WithChannel(pulseflow.NewCallbackChannel("stdout", func(_ context.Context, ev pulseflow.Event) error {
			_, err := fmt.Fprintf(out, "%s %s %s\n", ev.Name, ev.Visibility, ev.Payload)
			return err
		})),
	}
	if *deviceID != "" {
		opts = append(opts, pulseflow.WithIdentity(staticID(*deviceID)))
	}

	rt, err := pulseflow.NewDeviceRuntime(cfg, opts...)
	if err != nil {
		return err
	}
	defer rt.Shutdown(context.Background())

	pub := rt.Publisher()
	step := uint64(pub.Interval() / time.Millisecond)
	for i := 1; i <= *count; i++ {
		res, _ := pub.Tick(context.Background(), uint64(i)*step)
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

type staticID string

func (s staticID) DeviceID() string { return string(s) }

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: *interval}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, client, *url, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsMetrics = []string{
	pulseflow.MetricPublishTotal,
	pulseflow.MetricPublishFailedTotal,
	pulseflow.MetricLastHeartRate,
	pulseflow.MetricLastSpO2,
	pulseflow.MetricSpoolQueueLength,
	pulseflow.MetricSpoolWALSizeBytes,
}

func printMetricsSnapshot(ctx context.Context, client *http.Client, url string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scanMetrics(resp.Body, statsMetrics)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[%s] published=%g failed=%g hr=%g spo2=%g spool_queue=%g spool_bytes=%g\n",
		time.Now().Format(time.RFC3339),
		values[pulseflow.MetricPublishTotal],
		values[pulseflow.MetricPublishFailedTotal],
		values[pulseflow.MetricLastHeartRate],
		values[pulseflow.MetricLastSpO2],
		values[pulseflow.MetricSpoolQueueLength],
		values[pulseflow.MetricSpoolWALSizeBytes],
	)
	return nil
}

// scanMetrics pulls unlabelled sample values for names out of the Prometheus
// text exposition format.
func scanMetrics(r io.Reader, names []string) (map[string]float64, error) {
	values := make(map[string]float64, len(names))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range names {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	return values, scanner.Err()
}

func newLogger(cfg pulseflow.LogConfig, debug bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `PulseFlow CLI

Usage:
  pulse-edge <command> [flags]

Commands:
  run        Start the device runtime using the provided config
  validate   Load and validate a config file without starting the runtime
  sample     Print telemetry payloads without publishing them
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  pulse-edge run --config ./data/config.yaml
  pulse-edge validate -c ./data/config.yaml
  pulse-edge sample -n 3 --device-id abc123
  pulse-edge stats --url http://localhost:9100/metrics --interval 1s
`)
}
