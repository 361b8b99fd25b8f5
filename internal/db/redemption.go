package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

func (db *Database) SaveRedemptionRequest(
	ctx context.Context, requestDoc *model.RedemptionRequestDocument,
) error {
	_, err := db.collection(model.RedemptionRequestCollection).InsertOne(ctx, requestDoc)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     requestDoc.ID,
						Message: "redemption request already exists",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetRedemptionRequest(
	ctx context.Context, requestID string,
) (*model.RedemptionRequestDocument, error) {
	var doc model.RedemptionRequestDocument
	err := db.collection(model.RedemptionRequestCollection).
		FindOne(ctx, bson.M{"_id": requestID}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     requestID,
				Message: "redemption request not found",
			}
		}
		return nil, err
	}
	return &doc, nil
}

// UpdateRedemptionState transitions a request to newState only if its
// current state is one of qualifiedPreviousStates; the filter makes the
// check-and-set a single atomic step.
func (db *Database) UpdateRedemptionState(
	ctx context.Context,
	requestID string,
	qualifiedPreviousStates []types.RedemptionState,
	newState types.RedemptionState,
	setFields map[string]any,
) error {
	qualifiedStateStrs := make([]string, len(qualifiedPreviousStates))
	for i, state := range qualifiedPreviousStates {
		qualifiedStateStrs[i] = state.String()
	}

	filter := bson.M{
		"_id":   requestID,
		"state": bson.M{"$in": qualifiedStateStrs},
	}

	updateFields := bson.M{
		"state":      newState.String(),
		"updated_at": time.Now().UTC(),
	}
	for field, value := range setFields {
		updateFields[field] = value
	}

	res := db.collection(model.RedemptionRequestCollection).
		FindOneAndUpdate(ctx, filter, bson.M{"$set": updateFields})
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     requestID,
				Message: "redemption request not found or current state is not qualified states",
			}
		}
		return res.Err()
	}

	return nil
}

// GetRedemptionRequestsByIDs returns the requests ordered by the settlement
// fairness contract: descending priority, then ascending queue position.
func (db *Database) GetRedemptionRequestsByIDs(
	ctx context.Context, requestIDs []string,
) ([]model.RedemptionRequestDocument, error) {
	filter := bson.M{"_id": bson.M{"$in": requestIDs}}
	opts := options.Find().SetSort(bson.D{
		{Key: "priority", Value: -1},
		{Key: "queue_position", Value: 1},
	})

	cursor, err := db.collection(model.RedemptionRequestCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []model.RedemptionRequestDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	// mongo sorts string states fine, but the index sort is not guaranteed
	// for documents modified mid-cursor; re-assert the contract here.
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Priority != docs[j].Priority {
			return docs[i].Priority > docs[j].Priority
		}
		return docs[i].QueuePosition < docs[j].QueuePosition
	})
	return docs, nil
}

// NextQueuePosition atomically increments and returns the approval sequence.
func (db *Database) NextQueuePosition(ctx context.Context) (int64, error) {
	filter := bson.M{"_id": model.QueuePositionCounterID}
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc model.CounterDocument
	err := db.collection(model.CounterCollection).
		FindOneAndUpdate(ctx, filter, update, opts).
		Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to advance queue position counter: %w", err)
	}
	return doc.Seq, nil
}
