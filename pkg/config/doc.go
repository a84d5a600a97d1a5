// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for struct parsing. Every package of the
// notification service owns a Config struct annotated with env tags; the
// service binary loads them with Load:
//
//	if err := config.LoadEnv("./deploy/notifyd.env"); err != nil {
//		return err
//	}
//	var cfg notifications.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Each configuration type is parsed once and cached by type. Structs that
// implement Validator are checked after parsing; a failing struct is not
// cached, so a corrected environment can be loaded again.
//
// Sentinel errors: ErrParsingConfig, ErrInvalidConfig, ErrLoadingEnvFile,
// ErrConfigNotLoaded and ErrNilPointer. ResetCache clears the cache between
// tests.
package config
