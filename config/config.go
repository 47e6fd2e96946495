// Package config loads the toolkit's own settings file (wxstack.yaml):
// where the station lives, how to log, and service defaults. The
// station's INI configuration itself is handled by the stanza package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the toolkit configuration.
type Config struct {
	AppName    string
	RunMode    string
	ConfigPath string // path to the station's INI configuration file
	Root       string // station root override, empty to derive from ConfigPath
	Logger     *Logger
	Alerting   *Alerting
	Viper      *viper.Viper
}

// LoadConfig reads the configuration from the given file. An empty
// path falls back to wxstack.yaml next to the binary, then to
// /etc/wxstack/wxstack.yaml; a missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wxstack")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/wxstack")
	}
	v.SetEnvPrefix("wxstack")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// no settings file is fine, defaults apply
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "wxstack")
	v.SetDefault("run_mode", "release")
	v.SetDefault("config_path", defaultStationConf())
	v.SetDefault("logger.level", 4) // logrus.InfoLevel
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("alerting.heartbeat_interval", "5m")
}

func defaultStationConf() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wxstack.conf"
	}
	return filepath.Join(home, "wxstack-data", "wxstack.conf")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		AppName:    v.GetString("app_name"),
		RunMode:    v.GetString("run_mode"),
		ConfigPath: v.GetString("config_path"),
		Root:       v.GetString("root"),
		Logger:     getLoggerConfig(v),
		Alerting:   getAlertingConfig(v),
		Viper:      v,
	}
}
