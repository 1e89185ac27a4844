package ports

import "time"

type Policy struct {
	MaxWALSizeBytes int64         `yaml:"max_wal_size_bytes"`
	MaxQueueLen     int           `yaml:"max_queue_len"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
	IdleSleep       time.Duration `yaml:"idle_sleep"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	MaxAttempts     int           `yaml:"max_attempts"`

	OnWALFull   string `yaml:"on_wal_full"`   // "block", "drop"
	OnQueueFull string `yaml:"on_queue_full"` // "reject", "block", "drop"
}

// ApplyDefaults fills thresholds suited to a device publishing a few events
// per minute. Full conditions default to dropping so a publish never stalls
// the polling loop.
func (p *Policy) ApplyDefaults() {
	if p.MaxWALSizeBytes == 0 {
		p.MaxWALSizeBytes = 64 << 20
	}
	if p.MaxQueueLen == 0 {
		p.MaxQueueLen = 10_000
	}
	if p.MaxBatchSize == 0 {
		p.MaxBatchSize = 100
	}
	if p.IdleSleep == 0 {
		p.IdleSleep = 50 * time.Millisecond
	}
	if p.RetryDelay == 0 {
		p.RetryDelay = 5 * time.Second
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 20
	}
	if p.OnQueueFull == "" {
		p.OnQueueFull = "drop"
	}
	if p.OnWALFull == "" {
		p.OnWALFull = "drop"
	}
}
