package model

import "time"

const (
	PriceSnapshotCollection = "price_snapshot"

	// PriceSnapshotID is the _id of the single latest snapshot document.
	PriceSnapshotID = "latest"
)

// PriceSnapshotDocument is the last reported per-share price. Replaced
// wholesale on every accepted report.
type PriceSnapshotDocument struct {
	ID         string    `bson:"_id"`
	Value      string    `bson:"value"`
	ReportedAt time.Time `bson:"reported_at"`
	Reporter   string    `bson:"reporter"`
}
