package db

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
)

// InitVaultState writes the singleton state document if it does not exist
// yet. Supply and liquidity start at zero.
func (db *Database) InitVaultState(ctx context.Context, assetID string) error {
	filter := bson.M{"_id": model.VaultStateID}
	update := bson.M{
		"$setOnInsert": &model.VaultStateDocument{
			ID:                 model.VaultStateID,
			AssetID:            assetID,
			ShareSupply:        math.ZeroInt().String(),
			AvailableLiquidity: math.ZeroInt().String(),
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := db.collection(model.VaultStateCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

func (db *Database) GetVaultState(ctx context.Context) (*VaultState, error) {
	var doc model.VaultStateDocument
	err := db.collection(model.VaultStateCollection).
		FindOne(ctx, bson.M{"_id": model.VaultStateID}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     model.VaultStateID,
				Message: "vault state not initialized",
			}
		}
		return nil, err
	}

	return vaultStateFromDocument(&doc)
}

// GetBalance returns the share balance of an account, zero if the account
// has never held shares.
func (db *Database) GetBalance(ctx context.Context, accountID string) (math.Int, error) {
	var doc model.BalanceDocument
	err := db.collection(model.BalanceCollection).
		FindOne(ctx, bson.M{"_id": accountID}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, err
	}

	shares, ok := math.NewIntFromString(doc.Shares)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid share balance %q for account %s", doc.Shares, accountID)
	}
	return shares, nil
}

// ApplyLedgerMutation validates and writes one balance/supply/liquidity
// change. The engine executes operations strictly serialized, so the ordered
// writes here are never interleaved with another mutation.
func (db *Database) ApplyLedgerMutation(ctx context.Context, mut LedgerMutation) error {
	state, err := db.GetVaultState(ctx)
	if err != nil {
		return err
	}

	newSupply := state.ShareSupply.Add(mut.SupplyDelta)
	newLiquidity := state.AvailableLiquidity.Add(mut.LiquidityDelta)
	if newSupply.IsNegative() {
		return fmt.Errorf("mutation would drive share supply negative")
	}
	if newLiquidity.IsNegative() {
		return fmt.Errorf("mutation would drive available liquidity negative")
	}

	if err := db.applyBalanceDelta(ctx, mut.Account, mut.SharesDelta); err != nil {
		return err
	}
	if mut.CounterAccount != "" {
		if err := db.applyBalanceDelta(ctx, mut.CounterAccount, mut.CounterSharesDelta); err != nil {
			return err
		}
	}

	filter := bson.M{"_id": model.VaultStateID}
	update := bson.M{"$set": bson.M{
		"share_supply":        newSupply.String(),
		"available_liquidity": newLiquidity.String(),
	}}
	_, err = db.collection(model.VaultStateCollection).UpdateOne(ctx, filter, update)
	return err
}

func (db *Database) applyBalanceDelta(ctx context.Context, accountID string, delta math.Int) error {
	if delta.IsZero() {
		return nil
	}

	balance, err := db.GetBalance(ctx, accountID)
	if err != nil {
		return err
	}
	newBalance := balance.Add(delta)
	if newBalance.IsNegative() {
		return fmt.Errorf("mutation would drive balance of %s negative", accountID)
	}

	doc := &model.BalanceDocument{
		AccountID: accountID,
		Shares:    newBalance.String(),
	}
	opts := options.Replace().SetUpsert(true)
	_, err = db.collection(model.BalanceCollection).ReplaceOne(ctx, bson.M{"_id": accountID}, doc, opts)
	return err
}
