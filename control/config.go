// File: control/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime parameters, immutable per run. Fields absent
// from a YAML document keep their defaults.
type Config struct {
	// MaxQueueSize bounds each socket's outbound queue in bytes; values
	// < 1 keep the queue unbounded.
	MaxQueueSize int64 `yaml:"max_queue_size"`

	// ReadBufferSize sizes the per-socket read scratch buffer.
	ReadBufferSize int `yaml:"read_buffer_size"`

	// MaxPacketSize caps framed packet payloads for codecs constructed
	// from this config.
	MaxPacketSize int `yaml:"max_packet_size"`

	// PollBatch is the number of readiness events dispatched per poller
	// wait.
	PollBatch int `yaml:"poll_batch"`

	// LockOSThread pins the reactor loop goroutine to its OS thread.
	LockOSThread bool `yaml:"lock_os_thread"`

	// LogLevel selects the zap level used when the host initializes
	// logging through this config.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the defaults: unbounded write queues, 64 KiB read
// buffers, 1 MiB packet cap, 128-event poll batches.
func DefaultConfig() *Config {
	return &Config{
		MaxQueueSize:   0,
		ReadBufferSize: 64 * 1024,
		MaxPacketSize:  1 << 20,
		PollBatch:      128,
		LockOSThread:   false,
		LogLevel:       "info",
	}
}

// Load parses a YAML document over DefaultConfig and validates the result.
func Load(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses the YAML config at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Load(data)
}

// Validate rejects values the runtime cannot operate with.
func (c *Config) Validate() error {
	if c.ReadBufferSize < 1 {
		return fmt.Errorf("config: read_buffer_size %d must be >= 1", c.ReadBufferSize)
	}
	if c.MaxPacketSize < 1 {
		return fmt.Errorf("config: max_packet_size %d must be >= 1", c.MaxPacketSize)
	}
	if c.PollBatch < 1 {
		return fmt.Errorf("config: poll_batch %d must be >= 1", c.PollBatch)
	}
	return nil
}
