package channel

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// TimescaleChannel stores each payload as one row of a readings hypertable.
// Rows are idempotent on (device_id, ts).
type TimescaleChannel struct {
	db     *sql.DB
	insert string
}

func NewTimescaleChannel(db *sql.DB, table string) (*TimescaleChannel, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("timescale channel: invalid table name %q", table)
	}
	return &TimescaleChannel{
		db: db,
		insert: "INSERT INTO " + table +
			" (device_id, ts, hr, spo2, event, visibility) VALUES ($1,$2,$3,$4,$5,$6)" +
			" ON CONFLICT (device_id, ts) DO NOTHING",
	}, nil
}

func (t *TimescaleChannel) Publish(ctx context.Context, event string, payload []byte, vis ports.Visibility) error {
	s, err := domain.DecodePayload(payload)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx, t.insert,
		s.DeviceID,
		time.Unix(s.Timestamp, 0).UTC(),
		s.HeartRate,
		s.SpO2,
		event,
		vis.String(),
	)
	return err
}

func (t *TimescaleChannel) Name() string { return "timescaledb" }

func (t *TimescaleChannel) Close() error { return t.db.Close() }

var _ ports.Channel = (*TimescaleChannel)(nil)
