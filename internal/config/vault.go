package config

import "fmt"

const (
	defaultDomainName    = "vault-engine"
	defaultDomainVersion = "1"
	defaultVirtualOffset = 1000
)

type VaultConfig struct {
	// AssetID identifies the single underlying asset this pool accepts.
	AssetID string `mapstructure:"asset-id"`
	// VirtualOffset is the constant added to the value base of every
	// conversion to blunt first-depositor price manipulation, in base units.
	VirtualOffset int64 `mapstructure:"virtual-offset"`
	// DomainName/DomainVersion/FundID form the domain separator for signed
	// redemption requests.
	DomainName    string `mapstructure:"domain-name"`
	DomainVersion string `mapstructure:"domain-version"`
	FundID        string `mapstructure:"fund-id"`
}

func (cfg *VaultConfig) Validate() error {
	if cfg.AssetID == "" {
		return fmt.Errorf("vault asset-id is required")
	}
	if cfg.VirtualOffset < 0 {
		return fmt.Errorf("vault virtual-offset must not be negative")
	}
	if cfg.VirtualOffset == 0 {
		cfg.VirtualOffset = defaultVirtualOffset
	}
	if cfg.DomainName == "" {
		cfg.DomainName = defaultDomainName
	}
	if cfg.DomainVersion == "" {
		cfg.DomainVersion = defaultDomainVersion
	}
	if cfg.FundID == "" {
		return fmt.Errorf("vault fund-id is required")
	}

	return nil
}
