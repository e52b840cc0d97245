// Package config loads the tunables that govern deadlines and limits
// across the transport, launcher, and protocol engine. An on-disk YAML
// document is optional, and every field has a sane default in Default();
// the zero Config does not pass Validate.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every engine-wide tunable. Durations are stored as
// time.Duration but round-trip through YAML as Go duration strings
// ("10s", "2s") for readability in hand-edited files.
type Config struct {
	// HandshakeTimeout bounds how long the engine waits for Init followed
	// by ExeMode after the transport reports both pipes connected.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// TransportConnectTimeout bounds how long the transport waits for the
	// debuggee to accept both pipe connections.
	TransportConnectTimeout time.Duration `yaml:"transport_connect_timeout"`
	// TeardownTimeout bounds how long Terminate waits for an Exited
	// acknowledgement before the engine forces termination.
	TeardownTimeout time.Duration `yaml:"teardown_timeout"`
	// MaxFrameSize is the largest data_size the frame codec accepts
	// before failing with MalformedFrame.
	MaxFrameSize uint32 `yaml:"max_frame_size"`
	// PipeRetryBackoff is the initial backoff between POSIX FIFO open
	// retries while waiting for the debuggee to open its end.
	PipeRetryBackoff time.Duration `yaml:"pipe_retry_backoff"`
	// PipeRetryMax is the longest a single backoff step may grow to.
	PipeRetryMax time.Duration `yaml:"pipe_retry_max"`
	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		HandshakeTimeout:        10 * time.Second,
		TransportConnectTimeout: 10 * time.Second,
		TeardownTimeout:         2 * time.Second,
		MaxFrameSize:            64 << 20, // 64 MiB
		PipeRetryBackoff:        20 * time.Millisecond,
		PipeRetryMax:            500 * time.Millisecond,
		Debug:                   false,
	}
}

// Load reads YAML from path and merges it over Default(). A missing file
// is not an error; the defaults are used as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every tunable is in a usable range.
func (c Config) Validate() error {
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	if c.TransportConnectTimeout <= 0 {
		return fmt.Errorf("transport_connect_timeout must be positive")
	}
	if c.TeardownTimeout <= 0 {
		return fmt.Errorf("teardown_timeout must be positive")
	}
	if c.MaxFrameSize == 0 {
		return fmt.Errorf("max_frame_size must be positive")
	}
	if c.PipeRetryBackoff <= 0 || c.PipeRetryMax <= 0 {
		return fmt.Errorf("pipe retry backoff settings must be positive")
	}
	return nil
}
