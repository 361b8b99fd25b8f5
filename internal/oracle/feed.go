// Package oracle ingests the privileged price feed. The ledger derives
// total pool value as price × share supply, so every accepted report
// directly prices every outstanding share; ramping and a strictly
// increasing report clock are what stand between a compromised reporter
// key and instant value minting.
//
// Deposits and withdrawals between reports do not move the reported
// valuation until the next report lands. That staleness window is a known,
// bounded limitation of the price-per-share model, not a bug.
package oracle

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/fundlabs-io/vault-engine/internal/config"
	"github.com/fundlabs-io/vault-engine/internal/db"
	"github.com/fundlabs-io/vault-engine/internal/events"
	"github.com/fundlabs-io/vault-engine/internal/observability/metrics"
	"github.com/fundlabs-io/vault-engine/internal/registry"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

type Store interface {
	GetPriceSnapshot(ctx context.Context) (*db.PriceSnapshot, error)
	SavePriceSnapshot(ctx context.Context, value math.LegacyDec, reportedAt time.Time, reporter string) error
}

type RoleChecker interface {
	HasRole(account string, role registry.Role) bool
}

type Feed struct {
	store   Store
	roles   RoleChecker
	sink    events.Sink
	maxRamp math.LegacyDec
}

func NewFeed(store Store, roles RoleChecker, sink events.Sink, cfg config.OracleConfig) *Feed {
	return &Feed{
		store: store,
		roles: roles,
		sink:  sink,
		// basis points to a relative fraction
		maxRamp: math.LegacyNewDecWithPrec(cfg.MaxRampBps, 4),
	}
}

// Report validates and stores a new price snapshot.
func (f *Feed) Report(ctx context.Context, reporter string, value math.LegacyDec, reportedAt time.Time) *types.Error {
	if err := f.report(ctx, reporter, value, reportedAt); err != nil {
		metrics.RecordOracleReport(true)
		return err
	}
	metrics.RecordOracleReport(false)
	return nil
}

func (f *Feed) report(ctx context.Context, reporter string, value math.LegacyDec, reportedAt time.Time) *types.Error {
	if !f.roles.HasRole(reporter, registry.RoleReporter) {
		return types.NewErrorf(
			types.ErrorAuthorization, types.Unauthorized,
			"account %s is not an authorized reporter", reporter,
		)
	}
	if !value.IsPositive() {
		return types.NewErrorf(
			types.ErrorValidation, types.ZeroAmount,
			"reported price must be positive, got %s", value,
		)
	}

	prev, err := f.store.GetPriceSnapshot(ctx)
	if err != nil && !db.IsNotFoundError(err) {
		return types.NewInternalError(fmt.Errorf("failed to load price snapshot: %w", err))
	}

	// the first report seeds the feed; every later one is ramp-checked
	if prev != nil {
		if !reportedAt.After(prev.ReportedAt) {
			return types.NewErrorf(
				types.ErrorTemporal, types.StaleTimestamp,
				"report timestamp %s does not advance past %s",
				reportedAt.UTC().Format(time.RFC3339), prev.ReportedAt.UTC().Format(time.RFC3339),
			)
		}
		delta := value.Sub(prev.Value).Abs().Quo(prev.Value)
		if delta.GT(f.maxRamp) {
			return types.NewErrorf(
				types.ErrorTemporal, types.RampExceeded,
				"price change %s from %s to %s exceeds max ramp %s",
				delta, prev.Value, value, f.maxRamp,
			)
		}
	}

	if err := f.store.SavePriceSnapshot(ctx, value, reportedAt, reporter); err != nil {
		return types.NewInternalError(fmt.Errorf("failed to save price snapshot: %w", err))
	}

	metrics.SetOraclePrice(value.MustFloat64())
	log.Ctx(ctx).Info().
		Str("reporter", reporter).
		Str("price", value.String()).
		Time("reportedAt", reportedAt).
		Msg("Accepted price report")
	events.Emit(ctx, f.sink, types.NewEvent(types.EventPriceUpdate, reporter, "").
		WithDetail("price", value.String()))

	return nil
}

// Latest returns the current snapshot for valuation.
func (f *Feed) Latest(ctx context.Context) (math.LegacyDec, time.Time, *types.Error) {
	snapshot, err := f.store.GetPriceSnapshot(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return math.LegacyDec{}, time.Time{}, types.NewErrorf(
				types.ErrorState, types.WrongState,
				"no price has been reported yet",
			)
		}
		return math.LegacyDec{}, time.Time{}, types.NewInternalError(err)
	}
	return snapshot.Value, snapshot.ReportedAt, nil
}
