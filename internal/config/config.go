package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Db        DbConfig        `mapstructure:"db"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Hooks     HooksConfig     `mapstructure:"hooks"`
	Events    EventsConfig    `mapstructure:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Roles     RolesConfig     `mapstructure:"roles"`
	Allowlist AllowlistConfig `mapstructure:"allowlist"`
}

func (cfg *Config) Validate() error {
	if err := cfg.Db.Validate(); err != nil {
		return err
	}
	if err := cfg.Vault.Validate(); err != nil {
		return err
	}
	if err := cfg.Oracle.Validate(); err != nil {
		return err
	}
	if err := cfg.Hooks.Validate(); err != nil {
		return err
	}
	if err := cfg.Events.Validate(); err != nil {
		return err
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return err
	}
	if err := cfg.Roles.Validate(); err != nil {
		return err
	}
	if err := cfg.Allowlist.Validate(); err != nil {
		return err
	}
	return nil
}

// New returns a fully parsed Config object from a given file directory
func New(cfgFile string) (*Config, error) {
	_, err := NewViper(cfgFile)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewViper loads the config file into viper with env overrides enabled.
func NewViper(cfgFile string) (*viper.Viper, error) {
	viper.SetConfigFile(cfgFile)
	viper.SetEnvPrefix("VAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}

	return viper.GetViper(), nil
}
