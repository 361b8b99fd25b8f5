package model

import "time"

const UsedNonceCollection = "used_nonces"

// UsedNonceDocument marks one (owner, nonce) pair as consumed. The set only
// grows; entries are never removed, which is what makes replays detectable.
type UsedNonceDocument struct {
	Owner      string    `bson:"owner"`
	Nonce      uint64    `bson:"nonce"`
	ConsumedAt time.Time `bson:"consumed_at"`
}
