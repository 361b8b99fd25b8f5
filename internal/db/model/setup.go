package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fundlabs-io/vault-engine/internal/config"
)

var collections = []string{
	BalanceCollection,
	VaultStateCollection,
	PriceSnapshotCollection,
	RedemptionRequestCollection,
	UsedNonceCollection,
	HookRegistrationCollection,
	CounterCollection,
}

// Setup creates the collections and indexes the engine relies on: the unique
// (owner, nonce) replay guard and the settlement selection index.
func Setup(ctx context.Context, cfg *config.DbConfig) error {
	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clientOps := options.Client().ApplyURI(cfg.Address).SetAuth(credential)
	client, err := mongo.Connect(ctx, clientOps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	database := client.Database(cfg.DbName)
	for _, collection := range collections {
		// ignore "collection already exists" on repeated setup runs
		_ = database.CreateCollection(ctx, collection)
	}

	if err := createNonceIndex(ctx, database); err != nil {
		return err
	}
	if err := createRedemptionQueueIndex(ctx, database); err != nil {
		return err
	}

	return client.Disconnect(ctx)
}

func createNonceIndex(ctx context.Context, database *mongo.Database) error {
	index := mongo.IndexModel{
		Keys: bson.D{
			{Key: "owner", Value: 1},
			{Key: "nonce", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	_, err := database.Collection(UsedNonceCollection).Indexes().CreateOne(ctx, index)
	return err
}

func createRedemptionQueueIndex(ctx context.Context, database *mongo.Database) error {
	index := mongo.IndexModel{
		Keys: bson.D{
			{Key: "state", Value: 1},
			{Key: "priority", Value: -1},
			{Key: "queue_position", Value: 1},
		},
	}
	_, err := database.Collection(RedemptionRequestCollection).Indexes().CreateOne(ctx, index)
	return err
}
