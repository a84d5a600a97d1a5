package livepush

import "time"

// Config holds WebSocket hub settings.
type Config struct {
	// PingInterval is how often clients are expected to send {"type":"ping"}.
	PingInterval time.Duration `env:"LIVE_PING_INTERVAL" envDefault:"25s"`
	// PongTimeout closes connections that stayed silent this long.
	PongTimeout    time.Duration `env:"LIVE_PONG_TIMEOUT" envDefault:"60s"`
	WriteTimeout   time.Duration `env:"LIVE_WRITE_TIMEOUT" envDefault:"10s"`
	SendBuffer     int           `env:"LIVE_SEND_BUFFER" envDefault:"16"`
	MaxMessageSize int64         `env:"LIVE_MAX_MESSAGE_SIZE" envDefault:"4096"`
	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string `env:"LIVE_ALLOWED_ORIGINS" envSeparator:","`
}

// DefaultConfig returns the values used when no environment is loaded.
func DefaultConfig() Config {
	return Config{
		PingInterval:   25 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     16,
		MaxMessageSize: 4096,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}
