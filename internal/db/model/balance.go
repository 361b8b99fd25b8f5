package model

const BalanceCollection = "balances"

// BalanceDocument holds one account's share balance. Quantities are stored
// as decimal strings to keep 18-decimal fixed point exact in bson.
type BalanceDocument struct {
	AccountID string `bson:"_id"`
	Shares    string `bson:"shares"`
}
