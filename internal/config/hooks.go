package config

import "fmt"

const defaultMaxHooksPerKind = 16

type HooksConfig struct {
	// MaxPerKind bounds the hook count per operation kind so a long hook
	// list cannot turn every operation into unbounded work.
	MaxPerKind int `mapstructure:"max-per-kind"`
	// AmountCap, when set, enables the built-in cap hook: the per-operation
	// asset ceiling as a base-unit decimal string.
	AmountCap string `mapstructure:"amount-cap"`
	// DeniedReceivers, when set, enables the built-in denylist hook.
	DeniedReceivers []string `mapstructure:"denied-receivers"`
}

func (cfg *HooksConfig) Validate() error {
	if cfg.MaxPerKind < 0 {
		return fmt.Errorf("hooks max-per-kind must not be negative")
	}
	if cfg.MaxPerKind == 0 {
		cfg.MaxPerKind = defaultMaxHooksPerKind
	}

	return nil
}
