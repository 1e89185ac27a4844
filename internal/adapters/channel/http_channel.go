package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// ErrRejected is returned when the collector answers with a non-2xx status.
var ErrRejected = errors.New("collector rejected event")

const (
	HeaderAPIKey     = "X-API-Key"
	HeaderEvent      = "X-Event-Name"
	HeaderVisibility = "X-Event-Visibility"
)

type HTTPConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPChannel POSTs each payload to a readings endpoint that authenticates
// devices by API key.
type HTTPChannel struct {
	client *http.Client
	url    string
	apiKey string
}

func NewHTTPChannel(cfg HTTPConfig, client *http.Client) (*HTTPChannel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http channel: url is required")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPChannel{client: client, url: cfg.URL, apiKey: cfg.APIKey}, nil
}

func (c *HTTPChannel) Publish(ctx context.Context, event string, payload []byte, vis ports.Visibility) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event)
	req.Header.Set(HeaderVisibility, vis.String())
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Status)
	}
	return nil
}

func (c *HTTPChannel) Name() string { return "http" }

func (c *HTTPChannel) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

var _ ports.Channel = (*HTTPChannel)(nil)
