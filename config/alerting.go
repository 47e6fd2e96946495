package config

import (
	"time"

	"github.com/spf13/viper"
)

// Alerting holds defaults for the alerting service that are not part
// of the station configuration: the outbound endpoint and timing.
// Per-rule settings always come from the station's alerting stanza.
type Alerting struct {
	Endpoint          string        `json:"endpoint" yaml:"endpoint"`
	APIKey            string        `json:"api_key" yaml:"api_key"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
}

func getAlertingConfig(v *viper.Viper) *Alerting {
	return &Alerting{
		Endpoint:          v.GetString("alerting.endpoint"),
		APIKey:            v.GetString("alerting.api_key"),
		HeartbeatInterval: v.GetDuration("alerting.heartbeat_interval"),
	}
}
