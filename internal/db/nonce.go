package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
)

// ConsumeNonce inserts the (owner, nonce) pair; the unique index turns a
// replay into a DuplicateKeyError.
func (db *Database) ConsumeNonce(ctx context.Context, owner string, nonce uint64) error {
	doc := &model.UsedNonceDocument{
		Owner:      owner,
		Nonce:      nonce,
		ConsumedAt: time.Now().UTC(),
	}

	_, err := db.collection(model.UsedNonceCollection).InsertOne(ctx, doc)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     fmt.Sprintf("%s/%d", owner, nonce),
						Message: "nonce already consumed for owner",
					}
				}
			}
		}
		return err
	}
	return nil
}
