package db

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/math"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
)

func (db *Database) GetPriceSnapshot(ctx context.Context) (*PriceSnapshot, error) {
	var doc model.PriceSnapshotDocument
	err := db.collection(model.PriceSnapshotCollection).
		FindOne(ctx, bson.M{"_id": model.PriceSnapshotID}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     model.PriceSnapshotID,
				Message: "no price snapshot reported yet",
			}
		}
		return nil, err
	}

	return priceSnapshotFromDocument(&doc)
}

// SavePriceSnapshot replaces the latest snapshot. There is exactly one; the
// history lives in the event stream, not in this collection.
func (db *Database) SavePriceSnapshot(ctx context.Context, value math.LegacyDec, reportedAt time.Time, reporter string) error {
	doc := &model.PriceSnapshotDocument{
		ID:         model.PriceSnapshotID,
		Value:      value.String(),
		ReportedAt: reportedAt,
		Reporter:   reporter,
	}
	opts := options.Replace().SetUpsert(true)

	_, err := db.collection(model.PriceSnapshotCollection).
		ReplaceOne(ctx, bson.M{"_id": model.PriceSnapshotID}, doc, opts)
	return err
}
