package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the settings file on change and invokes onChange with
// the fresh configuration. Long-running services use this to pick up
// endpoint or logging changes without a restart; the station's INI
// configuration still requires one.
func (c *Config) Watch(ctx context.Context, onChange func(*Config)) {
	if c.Viper == nil || c.Viper.ConfigFileUsed() == "" {
		return
	}
	c.Viper.OnConfigChange(func(e fsnotify.Event) {
		if err := c.Viper.ReadInConfig(); err != nil {
			return
		}
		onChange(fromViper(c.Viper))
	})
	c.Viper.WatchConfig()
	<-ctx.Done()
}

// Reload re-reads the settings file once.
func (c *Config) Reload() (*Config, error) {
	v := c.Viper
	if v == nil {
		return c, nil
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	return fromViper(v), nil
}
