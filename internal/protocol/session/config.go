package session

import "time"

// Config defines per-session deadlines.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// RespondDelay postpones the server send for one session only.
	RespondDelay time.Duration
}

// DefaultConfig returns handshake defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   5 * time.Second,
		RespondDelay:   0,
	}
}

// WithDefaults fills zero deadlines from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.RespondDelay < 0 {
		c.RespondDelay = 0
	}
	return c
}
