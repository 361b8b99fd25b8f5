package db

import (
	"context"
	"time"

	"cosmossdk.io/math"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

type DbInterface interface {
	Ping(ctx context.Context) error

	// ledger
	InitVaultState(ctx context.Context, assetID string) error
	GetVaultState(ctx context.Context) (*VaultState, error)
	GetBalance(ctx context.Context, accountID string) (math.Int, error)
	ApplyLedgerMutation(ctx context.Context, mut LedgerMutation) error

	// oracle
	GetPriceSnapshot(ctx context.Context) (*PriceSnapshot, error)
	SavePriceSnapshot(ctx context.Context, value math.LegacyDec, reportedAt time.Time, reporter string) error

	// redemption queue
	SaveRedemptionRequest(ctx context.Context, requestDoc *model.RedemptionRequestDocument) error
	GetRedemptionRequest(ctx context.Context, requestID string) (*model.RedemptionRequestDocument, error)
	UpdateRedemptionState(
		ctx context.Context,
		requestID string,
		qualifiedPreviousStates []types.RedemptionState,
		newState types.RedemptionState,
		setFields map[string]any,
	) error
	GetRedemptionRequestsByIDs(ctx context.Context, requestIDs []string) ([]model.RedemptionRequestDocument, error)
	NextQueuePosition(ctx context.Context) (int64, error)
	ConsumeNonce(ctx context.Context, owner string, nonce uint64) error

	// hook registry
	SaveHookRegistration(ctx context.Context, registrationDoc *model.HookRegistrationDocument) error
	DeleteHookRegistration(ctx context.Context, hookID string) error
	GetHookRegistrations(ctx context.Context) ([]model.HookRegistrationDocument, error)
}
