package channel

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

func TestHTTPChannelPostsPayload(t *testing.T) {
	var (
		gotBody    string
		gotHeaders http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch, err := NewHTTPChannel(HTTPConfig{URL: srv.URL, APIKey: "k-123"}, nil)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	defer ch.Close()

	payload := `{"deviceId":"d","hr":70,"spo2":98,"ts":1}`
	if err := ch.Publish(context.Background(), "hb", []byte(payload), ports.Private); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if gotBody != payload {
		t.Fatalf("expected body %s, got %s", payload, gotBody)
	}
	if gotHeaders.Get(HeaderAPIKey) != "k-123" {
		t.Fatalf("expected api key header, got %q", gotHeaders.Get(HeaderAPIKey))
	}
	if gotHeaders.Get(HeaderEvent) != "hb" || gotHeaders.Get(HeaderVisibility) != "PRIVATE" {
		t.Fatalf("unexpected event headers: %v", gotHeaders)
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type %q", gotHeaders.Get("Content-Type"))
	}
}

func TestHTTPChannelRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Bad API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	ch, err := NewHTTPChannel(HTTPConfig{URL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}

	err = ch.Publish(context.Background(), "hb", []byte(`{}`), ports.Private)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestHTTPChannelUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ch, err := NewHTTPChannel(HTTPConfig{URL: url}, nil)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	if err := ch.Publish(context.Background(), "hb", []byte(`{}`), ports.Private); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestNewHTTPChannelRequiresURL(t *testing.T) {
	if _, err := NewHTTPChannel(HTTPConfig{}, nil); err == nil {
		t.Fatalf("expected error without url")
	}
}
