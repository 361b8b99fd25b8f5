package config

import "fmt"

type MetricsConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (cfg *MetricsConfig) Validate() error {
	if cfg.Host == "" {
		return fmt.Errorf("metrics host is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("metrics port must be between 0 and 65535")
	}

	return nil
}

func (cfg *MetricsConfig) GetMetricsPort() int {
	return cfg.Port
}
