package model

import (
	"fmt"
	"time"

	"cosmossdk.io/math"

	"github.com/fundlabs-io/vault-engine/internal/types"
)

const RedemptionRequestCollection = "redemption_requests"

// RedemptionRequestDocument is one signed exit intent walking the
// PENDING -> APPROVED -> PROCESSING -> {COMPLETED|FAILED} state machine.
type RedemptionRequestDocument struct {
	ID            string                `bson:"_id"`
	Owner         string                `bson:"owner"`
	ShareAmount   string                `bson:"share_amount"`
	MinAssetsOut  string                `bson:"min_assets_out"`
	Deadline      time.Time             `bson:"deadline"`
	Nonce         uint64                `bson:"nonce"`
	SignatureHex  string                `bson:"signature_hex"`
	State         types.RedemptionState `bson:"state"`
	Priority      int32                 `bson:"priority"`
	QueuePosition int64                 `bson:"queue_position"`
	Notes         string                `bson:"notes,omitempty"`
	Reason        string                `bson:"reason,omitempty"`
	AssetsPaid    string                `bson:"assets_paid,omitempty"`
	CreatedAt     time.Time             `bson:"created_at"`
	UpdatedAt     time.Time             `bson:"updated_at"`
}

func (d *RedemptionRequestDocument) Shares() (math.Int, error) {
	return parseInt(d.ShareAmount, "share_amount")
}

func (d *RedemptionRequestDocument) MinAssets() (math.Int, error) {
	return parseInt(d.MinAssetsOut, "min_assets_out")
}

func parseInt(s, field string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid %s amount: %q", field, s)
	}
	return v, nil
}
