package config

import "fmt"

// RolesConfig seeds the role capability sets. The real role hierarchy is
// bootstrapped by an external collaborator; this is the narrow slice the
// engine consumes.
type RolesConfig struct {
	Admins    []string `mapstructure:"admins"`
	Managers  []string `mapstructure:"managers"`
	Operators []string `mapstructure:"operators"`
	Reporters []string `mapstructure:"reporters"`
}

func (cfg *RolesConfig) Validate() error {
	if len(cfg.Admins) == 0 {
		return fmt.Errorf("at least one admin account is required")
	}
	if len(cfg.Reporters) == 0 {
		return fmt.Errorf("at least one reporter account is required")
	}

	return nil
}

// AllowlistConfig seeds the registry-style allow-list checks.
type AllowlistConfig struct {
	Hooks  []string `mapstructure:"hooks"`
	Assets []string `mapstructure:"assets"`
}

func (cfg *AllowlistConfig) Validate() error {
	if len(cfg.Assets) == 0 {
		return fmt.Errorf("at least one allow-listed asset is required")
	}

	return nil
}
