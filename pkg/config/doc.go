// Package config loads environment-driven configuration structs.
//
// Every package that needs settings declares its own Config with
// github.com/caarlos0/env struct tags; Load parses it once per type and
// caches the result for the life of the process. A local .env file is read
// through github.com/joho/godotenv on first use.
//
//	type Config struct {
//		URL    string `env:"REDIS_URL"`
//		Prefix string `env:"REDIS_KEY_PREFIX" envDefault:"paygate"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// Structs that implement Validator get a second pass after parsing, so
// cross-field rules surface as startup errors (ErrInvalidConfig) rather
// than runtime surprises.
package config
