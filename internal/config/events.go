package config

import "fmt"

type EventsConfig struct {
	// Enabled switches the AMQP publisher on. When disabled the engine keeps
	// an in-memory sink so components still observe their own stream.
	Enabled   bool   `mapstructure:"enabled"`
	Url       string `mapstructure:"url"`
	QueueName string `mapstructure:"queue-name"`
}

func (cfg *EventsConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Url == "" {
		return fmt.Errorf("events url is required when events are enabled")
	}
	if cfg.QueueName == "" {
		return fmt.Errorf("events queue-name is required when events are enabled")
	}

	return nil
}
