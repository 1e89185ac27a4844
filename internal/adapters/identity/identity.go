// Package identity resolves the stable device identifier stamped on every
// published sample.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

type Static string

func (s Static) DeviceID() string { return string(s) }

// LoadOrCreate reads the identifier stored at path. On first boot it mints a
// new one, persists it and returns it, so the id survives restarts.
func LoadOrCreate(path string) (Static, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id := strings.TrimSpace(string(data))
		if id == "" {
			return "", fmt.Errorf("identity file %s is empty", path)
		}
		return Static(id), nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read identity: %w", err)
	}

	id := NewDeviceID()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write identity: %w", err)
	}
	return Static(id), nil
}

// Resolve prefers an explicit id and otherwise falls back to the identity file.
func Resolve(override, path string) (ports.Identity, error) {
	if id := strings.TrimSpace(override); id != "" {
		return Static(id), nil
	}
	return LoadOrCreate(path)
}

// NewDeviceID returns 32 lowercase hex characters.
func NewDeviceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var _ ports.Identity = Static("")
