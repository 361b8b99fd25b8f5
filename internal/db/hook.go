package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
)

func (db *Database) SaveHookRegistration(
	ctx context.Context, registrationDoc *model.HookRegistrationDocument,
) error {
	opts := options.Replace().SetUpsert(true)
	_, err := db.collection(model.HookRegistrationCollection).
		ReplaceOne(ctx, bson.M{"_id": registrationDoc.HookID}, registrationDoc, opts)
	return err
}

func (db *Database) DeleteHookRegistration(ctx context.Context, hookID string) error {
	res, err := db.collection(model.HookRegistrationCollection).
		DeleteOne(ctx, bson.M{"_id": hookID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return &NotFoundError{
			Key:     hookID,
			Message: "hook registration not found",
		}
	}
	return nil
}

func (db *Database) GetHookRegistrations(ctx context.Context) ([]model.HookRegistrationDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
	cursor, err := db.collection(model.HookRegistrationCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []model.HookRegistrationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
