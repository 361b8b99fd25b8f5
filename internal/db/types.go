package db

import (
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
)

// VaultState is the parsed runtime view of the singleton ledger header.
type VaultState struct {
	AssetID            string
	ShareSupply        math.Int
	AvailableLiquidity math.Int
}

func vaultStateFromDocument(doc *model.VaultStateDocument) (*VaultState, error) {
	supply, ok := math.NewIntFromString(doc.ShareSupply)
	if !ok {
		return nil, fmt.Errorf("invalid share supply %q", doc.ShareSupply)
	}
	liquidity, ok := math.NewIntFromString(doc.AvailableLiquidity)
	if !ok {
		return nil, fmt.Errorf("invalid available liquidity %q", doc.AvailableLiquidity)
	}

	return &VaultState{
		AssetID:            doc.AssetID,
		ShareSupply:        supply,
		AvailableLiquidity: liquidity,
	}, nil
}

// PriceSnapshot is the parsed runtime view of the latest oracle report.
type PriceSnapshot struct {
	Value      math.LegacyDec
	ReportedAt time.Time
	Reporter   string
}

func priceSnapshotFromDocument(doc *model.PriceSnapshotDocument) (*PriceSnapshot, error) {
	value, err := math.LegacyNewDecFromStr(doc.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid price value %q: %w", doc.Value, err)
	}

	return &PriceSnapshot{
		Value:      value,
		ReportedAt: doc.ReportedAt,
		Reporter:   doc.Reporter,
	}, nil
}

// LedgerMutation is one atomic balance/supply/liquidity change. Deltas are
// signed; CounterAccount is set only for share transfers.
type LedgerMutation struct {
	Account            string
	SharesDelta        math.Int
	CounterAccount     string
	CounterSharesDelta math.Int
	SupplyDelta        math.Int
	LiquidityDelta     math.Int
}
