package db

import (
	"context"
	"time"

	"cosmossdk.io/math"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
	"github.com/fundlabs-io/vault-engine/internal/observability/metrics"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.run("Ping", func() error {
		return d.db.Ping(ctx)
	})
}

func (d *DbWithMetrics) InitVaultState(ctx context.Context, assetID string) error {
	return d.run("InitVaultState", func() error {
		return d.db.InitVaultState(ctx, assetID)
	})
}

func (d *DbWithMetrics) GetVaultState(ctx context.Context) (result *VaultState, err error) {
	//nolint:errcheck
	d.run("GetVaultState", func() error {
		result, err = d.db.GetVaultState(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) GetBalance(ctx context.Context, accountID string) (result math.Int, err error) {
	//nolint:errcheck
	d.run("GetBalance", func() error {
		result, err = d.db.GetBalance(ctx, accountID)
		return err
	})
	return
}

func (d *DbWithMetrics) ApplyLedgerMutation(ctx context.Context, mut LedgerMutation) error {
	return d.run("ApplyLedgerMutation", func() error {
		return d.db.ApplyLedgerMutation(ctx, mut)
	})
}

func (d *DbWithMetrics) GetPriceSnapshot(ctx context.Context) (result *PriceSnapshot, err error) {
	//nolint:errcheck
	d.run("GetPriceSnapshot", func() error {
		result, err = d.db.GetPriceSnapshot(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) SavePriceSnapshot(ctx context.Context, value math.LegacyDec, reportedAt time.Time, reporter string) error {
	return d.run("SavePriceSnapshot", func() error {
		return d.db.SavePriceSnapshot(ctx, value, reportedAt, reporter)
	})
}

func (d *DbWithMetrics) SaveRedemptionRequest(ctx context.Context, requestDoc *model.RedemptionRequestDocument) error {
	return d.run("SaveRedemptionRequest", func() error {
		return d.db.SaveRedemptionRequest(ctx, requestDoc)
	})
}

func (d *DbWithMetrics) GetRedemptionRequest(ctx context.Context, requestID string) (result *model.RedemptionRequestDocument, err error) {
	//nolint:errcheck
	d.run("GetRedemptionRequest", func() error {
		result, err = d.db.GetRedemptionRequest(ctx, requestID)
		return err
	})
	return
}

func (d *DbWithMetrics) UpdateRedemptionState(
	ctx context.Context,
	requestID string,
	qualifiedPreviousStates []types.RedemptionState,
	newState types.RedemptionState,
	setFields map[string]any,
) error {
	return d.run("UpdateRedemptionState", func() error {
		return d.db.UpdateRedemptionState(ctx, requestID, qualifiedPreviousStates, newState, setFields)
	})
}

func (d *DbWithMetrics) GetRedemptionRequestsByIDs(ctx context.Context, requestIDs []string) (result []model.RedemptionRequestDocument, err error) {
	//nolint:errcheck
	d.run("GetRedemptionRequestsByIDs", func() error {
		result, err = d.db.GetRedemptionRequestsByIDs(ctx, requestIDs)
		return err
	})
	return
}

func (d *DbWithMetrics) NextQueuePosition(ctx context.Context) (result int64, err error) {
	//nolint:errcheck
	d.run("NextQueuePosition", func() error {
		result, err = d.db.NextQueuePosition(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) ConsumeNonce(ctx context.Context, owner string, nonce uint64) error {
	return d.run("ConsumeNonce", func() error {
		return d.db.ConsumeNonce(ctx, owner, nonce)
	})
}

func (d *DbWithMetrics) SaveHookRegistration(ctx context.Context, registrationDoc *model.HookRegistrationDocument) error {
	return d.run("SaveHookRegistration", func() error {
		return d.db.SaveHookRegistration(ctx, registrationDoc)
	})
}

func (d *DbWithMetrics) DeleteHookRegistration(ctx context.Context, hookID string) error {
	return d.run("DeleteHookRegistration", func() error {
		return d.db.DeleteHookRegistration(ctx, hookID)
	})
}

func (d *DbWithMetrics) GetHookRegistrations(ctx context.Context) (result []model.HookRegistrationDocument, err error) {
	//nolint:errcheck
	d.run("GetHookRegistrations", func() error {
		result, err = d.db.GetHookRegistrations(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) run(method string, f func() error) error {
	startTime := time.Now()
	err := f()
	duration := time.Since(startTime)

	metrics.RecordDbLatency(duration, method, err != nil)
	return err
}
