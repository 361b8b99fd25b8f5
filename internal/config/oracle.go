package config

import "fmt"

type OracleConfig struct {
	// MaxRampBps bounds the relative change of a reported price against the
	// prior snapshot, in basis points.
	MaxRampBps int64 `mapstructure:"max-ramp-bps"`
}

func (cfg *OracleConfig) Validate() error {
	if cfg.MaxRampBps <= 0 {
		return fmt.Errorf("oracle max-ramp-bps must be positive")
	}
	if cfg.MaxRampBps > 10_000 {
		return fmt.Errorf("oracle max-ramp-bps must not exceed 10000 (100%%)")
	}

	return nil
}
