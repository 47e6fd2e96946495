package config

import "github.com/google/wire"

// ProviderSet is the wire provider set for the config package
var ProviderSet = wire.NewSet(ProvideConfig, ProvideLoggerConfig)

// ProvideConfig loads the toolkit configuration from the default
// locations.
func ProvideConfig() (*Config, error) {
	return LoadConfig("")
}

// ProvideLoggerConfig extracts the logger section.
func ProvideLoggerConfig(cfg *Config) *Logger {
	return cfg.Logger
}
