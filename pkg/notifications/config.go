package notifications

import (
	"errors"
	"time"
)

// Config holds the engine settings loaded from the environment.
type Config struct {
	AsyncDelivery       bool          `env:"NOTIFY_ASYNC_DELIVERY" envDefault:"true"`
	DigestTick          string        `env:"NOTIFY_DIGEST_TICK" envDefault:"@every 1m"`
	DigestHighlights    int           `env:"NOTIFY_DIGEST_HIGHLIGHTS" envDefault:"5"`
	CatalogPath         string        `env:"NOTIFY_CATALOG_PATH"`
	PreferenceCacheSize int           `env:"NOTIFY_PREFERENCE_CACHE_SIZE" envDefault:"10000"`
	PreferenceCacheTTL  time.Duration `env:"NOTIFY_PREFERENCE_CACHE_TTL" envDefault:"30s"`

	Delivery DispatcherConfig
}

// Validate checks the settings that have no safe fallback.
func (c Config) Validate() error {
	var errs []error
	if c.DigestHighlights < 1 {
		errs = append(errs, errors.New("NOTIFY_DIGEST_HIGHLIGHTS must be positive"))
	}
	if c.PreferenceCacheSize < 0 {
		errs = append(errs, errors.New("NOTIFY_PREFERENCE_CACHE_SIZE must not be negative"))
	}
	if c.Delivery.MaxAttempts < 0 {
		errs = append(errs, errors.New("DELIVERY_MAX_ATTEMPTS must not be negative"))
	}
	return errors.Join(errs...)
}
