package model

const (
	VaultStateCollection = "vault_state"

	// VaultStateID is the _id of the single vault state document.
	VaultStateID = "state"
)

// VaultStateDocument is the singleton ledger header: total share supply and
// the asset units currently on hand for immediate exits and settlements.
type VaultStateDocument struct {
	ID                 string `bson:"_id"`
	AssetID            string `bson:"asset_id"`
	ShareSupply        string `bson:"share_supply"`
	AvailableLiquidity string `bson:"available_liquidity"`
}
