// Package redemption manages signed exit requests: submission escrow,
// manager review and priority-ordered batch settlement.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fundlabs-io/vault-engine/internal/db"
	"github.com/fundlabs-io/vault-engine/internal/db/model"
	"github.com/fundlabs-io/vault-engine/internal/events"
	"github.com/fundlabs-io/vault-engine/internal/hooks"
	"github.com/fundlabs-io/vault-engine/internal/observability/metrics"
	"github.com/fundlabs-io/vault-engine/internal/registry"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

type Store interface {
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
}

// LedgerOps is the slice of the share ledger the queue needs: escrow burns,
// compensating mints and settlement payouts.
type LedgerOps interface {
	Balance(ctx context.Context, accountID string) (math.Int, *types.Error)
	BurnShares(ctx context.Context, owner string, shares math.Int) *types.Error
	MintShares(ctx context.Context, owner string, shares math.Int) *types.Error
	PayOut(ctx context.Context, receiver string, assets math.Int) *types.Error
	AssetsForShares(ctx context.Context, shares math.Int) (math.Int, *types.Error)
	AvailableLiquidity(ctx context.Context) (math.Int, *types.Error)
}

type RoleChecker interface {
	HasRole(account string, role registry.Role) bool
}

type HookRunner interface {
	RunPre(ctx context.Context, op hooks.OpContext) *types.Error
	RunPost(ctx context.Context, op hooks.OpContext, result hooks.OpResult)
}

type Queue struct {
	store  Store
	ledger LedgerOps
	roles  RoleChecker
	hooks  HookRunner
	sink   events.Sink
	domain Domain

	// Now is swapped in tests to control deadlines.
	Now func() time.Time
}

func NewQueue(
	store Store,
	ledger LedgerOps,
	roles RoleChecker,
	hookRunner HookRunner,
	sink events.Sink,
	domain Domain,
) *Queue {
	return &Queue{
		store:  store,
		ledger: ledger,
		roles:  roles,
		hooks:  hookRunner,
		sink:   sink,
		domain: domain,
		Now:    time.Now,
	}
}

// SettlementOutcome reports what happened to one request in a batch.
type SettlementOutcome struct {
	RequestID  string
	State      types.RedemptionState
	AssetsPaid math.Int
	Reason     string
}

// Submit verifies the owner's authorization, consumes the nonce, escrows
// the shares and enqueues the request as PENDING. The burned shares come
// back only through rejection, cancellation or settlement failure.
func (q *Queue) Submit(ctx context.Context, msg RequestMessage, signatureHex string) (string, *types.Error) {
	if !msg.ShareAmount.IsPositive() {
		return "", types.NewErrorf(types.ErrorValidation, types.ZeroAmount, "redemption share amount must be positive")
	}
	if msg.MinAssetsOut.IsNegative() {
		return "", types.NewErrorf(types.ErrorValidation, types.ZeroAmount, "min assets out must not be negative")
	}
	now := q.Now().UTC()
	if !msg.Deadline.After(now) {
		return "", types.NewErrorf(
			types.ErrorTemporal, types.Expired,
			"deadline %s is not in the future", msg.Deadline.UTC().Format(time.RFC3339),
		)
	}
	if err := Verify(q.domain, msg, signatureHex); err != nil {
		return "", err
	}

	// The balance check runs before the nonce is consumed so a rejected
	// submission leaves the signed authorization replayable once funded.
	balance, berr := q.ledger.Balance(ctx, msg.Owner)
	if berr != nil {
		return "", berr
	}
	if balance.LT(msg.ShareAmount) {
		return "", types.NewErrorf(
			types.ErrorValidation, types.InsufficientBalance,
			"owner %s holds %s shares, %s required", msg.Owner, balance, msg.ShareAmount,
		)
	}

	if err := q.store.ConsumeNonce(ctx, msg.Owner, msg.Nonce); err != nil {
		var dupErr *db.DuplicateKeyError
		if errors.As(err, &dupErr) {
			return "", types.NewErrorf(
				types.ErrorReplay, types.NonceReused,
				"nonce %d already used by owner %s", msg.Nonce, msg.Owner,
			)
		}
		return "", types.NewInternalError(err)
	}

	if err := q.ledger.BurnShares(ctx, msg.Owner, msg.ShareAmount); err != nil {
		return "", err
	}

	requestDoc := &model.RedemptionRequestDocument{
		ID:           uuid.NewString(),
		Owner:        msg.Owner,
		ShareAmount:  msg.ShareAmount.String(),
		MinAssetsOut: msg.MinAssetsOut.String(),
		Deadline:     msg.Deadline.UTC(),
		Nonce:        msg.Nonce,
		SignatureHex: signatureHex,
		State:        types.RedemptionStatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := q.store.SaveRedemptionRequest(ctx, requestDoc); err != nil {
		// escrow must not outlive a request that was never persisted
		if merr := q.ledger.MintShares(ctx, msg.Owner, msg.ShareAmount); merr != nil {
			log.Ctx(ctx).Error().Err(merr).
				Str("owner", msg.Owner).
				Str("shares", msg.ShareAmount.String()).
				Msg("Failed to restore escrowed shares after save failure")
		}
		return "", types.NewInternalError(fmt.Errorf("failed to save redemption request: %w", err))
	}

	metrics.RecordQueueTransition(types.RedemptionStatePending.String())
	events.Emit(ctx, q.sink, types.NewEvent(
		types.EventRedemptionSubmitted, requestDoc.ID, types.RedemptionStatePending.String(),
	).WithAmount("shares", msg.ShareAmount).WithDetail("owner", msg.Owner))

	log.Ctx(ctx).Info().
		Str("request_id", requestDoc.ID).
		Str("owner", msg.Owner).
		Str("shares", msg.ShareAmount.String()).
		Msg("Redemption request submitted")

	return requestDoc.ID, nil
}

// Approve moves a PENDING request to APPROVED, stamping the priority and
// the next slot of the monotonic queue position sequence.
func (q *Queue) Approve(ctx context.Context, caller, requestID string, priority int32, notes string) *types.Error {
	if err := q.requireManager(caller); err != nil {
		return err
	}

	position, err := q.store.NextQueuePosition(ctx)
	if err != nil {
		return types.NewInternalError(err)
	}

	if err := q.transition(ctx, requestID, types.QualifiedStatesForApproval(), types.RedemptionStateApproved, map[string]any{
		"priority":       priority,
		"queue_position": position,
		"notes":          notes,
	}); err != nil {
		return err
	}

	events.Emit(ctx, q.sink, types.NewEvent(
		types.EventRedemptionApproved, requestID, types.RedemptionStateApproved.String(),
	).WithDetail("priority", fmt.Sprintf("%d", priority)))
	return nil
}

// Reject declines a PENDING or APPROVED request and restores the escrowed
// shares to the owner. A reason is mandatory.
func (q *Queue) Reject(ctx context.Context, caller, requestID, reason string) *types.Error {
	if err := q.requireManager(caller); err != nil {
		return err
	}
	if reason == "" {
		return types.NewErrorf(types.ErrorValidation, types.WrongState, "rejection requires a reason")
	}

	requestDoc, rerr := q.getRequest(ctx, requestID)
	if rerr != nil {
		return rerr
	}
	shares, err := requestDoc.Shares()
	if err != nil {
		return types.NewInternalError(err)
	}

	if err := q.transition(ctx, requestID, types.QualifiedStatesForRejection(), types.RedemptionStateRejected, map[string]any{
		"reason": reason,
	}); err != nil {
		return err
	}
	if err := q.ledger.MintShares(ctx, requestDoc.Owner, shares); err != nil {
		q.logStrandedEscrow(ctx, requestID, requestDoc.Owner, shares, err)
		return err
	}

	events.Emit(ctx, q.sink, types.NewEvent(
		types.EventRedemptionRejected, requestID, types.RedemptionStateRejected.String(),
	).WithAmount("shares", shares).WithDetail("reason", reason))
	return nil
}

// Cancel lets the owner withdraw a still-PENDING request; the escrowed
// shares come back.
func (q *Queue) Cancel(ctx context.Context, caller, requestID string) *types.Error {
	requestDoc, rerr := q.getRequest(ctx, requestID)
	if rerr != nil {
		return rerr
	}
	if caller != requestDoc.Owner {
		return types.NewErrorf(
			types.ErrorAuthorization, types.Unauthorized,
			"only owner %s may cancel request %s", requestDoc.Owner, requestID,
		)
	}
	shares, err := requestDoc.Shares()
	if err != nil {
		return types.NewInternalError(err)
	}

	if err := q.transition(ctx, requestID, types.QualifiedStatesForCancellation(), types.RedemptionStateCancelled, nil); err != nil {
		return err
	}
	if err := q.ledger.MintShares(ctx, requestDoc.Owner, shares); err != nil {
		q.logStrandedEscrow(ctx, requestID, requestDoc.Owner, shares, err)
		return err
	}

	events.Emit(ctx, q.sink, types.NewEvent(
		types.EventRedemptionCancelled, requestID, types.RedemptionStateCancelled.String(),
	).WithAmount("shares", shares))
	return nil
}

// SettleBatch settles the APPROVED requests among requestIDs in fairness
// order: highest priority first, earliest approval first within a priority.
// A request the pool cannot currently pay is skipped back to APPROVED with
// its queue position intact; expired or below-minimum requests fail and
// their shares return to the owner.
func (q *Queue) SettleBatch(ctx context.Context, caller string, requestIDs []string) ([]SettlementOutcome, *types.Error) {
	if err := q.requireManager(caller); err != nil {
		return nil, err
	}

	start := time.Now()
	docs, err := q.store.GetRedemptionRequestsByIDs(ctx, requestIDs)
	if err != nil {
		metrics.RecordSettlementBatchDuration(time.Since(start), true)
		return nil, types.NewInternalError(err)
	}

	outcomes := make([]SettlementOutcome, 0, len(docs))
	for i := range docs {
		outcomes = append(outcomes, q.settleOne(ctx, &docs[i]))
	}
	metrics.RecordSettlementBatchDuration(time.Since(start), false)
	return outcomes, nil
}

func (q *Queue) settleOne(ctx context.Context, requestDoc *model.RedemptionRequestDocument) SettlementOutcome {
	logger := log.Ctx(ctx).With().Str("request_id", requestDoc.ID).Logger()

	if err := q.transition(
		ctx, requestDoc.ID, types.QualifiedStatesForProcessing(), types.RedemptionStateProcessing, nil,
	); err != nil {
		return SettlementOutcome{
			RequestID: requestDoc.ID,
			State:     requestDoc.State,
			Reason:    "request is not approved",
		}
	}

	shares, perr := requestDoc.Shares()
	if perr != nil {
		return q.failRequest(ctx, requestDoc, math.Int{}, fmt.Sprintf("corrupt share amount: %v", perr))
	}
	minAssets, perr := requestDoc.MinAssets()
	if perr != nil {
		return q.failRequest(ctx, requestDoc, shares, fmt.Sprintf("corrupt min assets out: %v", perr))
	}

	if !requestDoc.Deadline.After(q.Now().UTC()) {
		return q.failRequest(ctx, requestDoc, shares, "deadline elapsed")
	}

	assets, aerr := q.ledger.AssetsForShares(ctx, shares)
	if aerr != nil {
		return q.failRequest(ctx, requestDoc, shares, fmt.Sprintf("valuation failed: %v", aerr))
	}
	if assets.LT(minAssets) {
		return q.failRequest(ctx, requestDoc, shares,
			fmt.Sprintf("payout %s below minimum %s", assets, minAssets))
	}

	liquidity, lerr := q.ledger.AvailableLiquidity(ctx)
	if lerr != nil {
		return q.failRequest(ctx, requestDoc, shares, fmt.Sprintf("liquidity check failed: %v", lerr))
	}
	if liquidity.LT(assets) {
		return q.skipRequest(ctx, requestDoc, fmt.Sprintf(
			"liquidity %s cannot cover payout %s", liquidity, assets,
		))
	}

	op := hooks.OpContext{
		Kind:     types.OperationWithdraw,
		Caller:   requestDoc.Owner,
		Owner:    requestDoc.Owner,
		Receiver: requestDoc.Owner,
		Assets:   assets,
		Shares:   shares,
	}
	if herr := q.hooks.RunPre(ctx, op); herr != nil {
		return q.skipRequest(ctx, requestDoc, fmt.Sprintf("vetoed: %v", herr))
	}

	if perr := q.ledger.PayOut(ctx, requestDoc.Owner, assets); perr != nil {
		if types.HasErrorCode(perr, types.InsufficientLiquidity) {
			return q.skipRequest(ctx, requestDoc, perr.Error())
		}
		return q.failRequest(ctx, requestDoc, shares, fmt.Sprintf("payout failed: %v", perr))
	}

	if err := q.transition(
		ctx, requestDoc.ID, types.QualifiedStatesForSettlementOutcome(), types.RedemptionStateCompleted,
		map[string]any{"assets_paid": assets.String()},
	); err != nil {
		logger.Error().Err(err).Msg("Failed to mark paid request completed")
		return SettlementOutcome{
			RequestID: requestDoc.ID,
			State:     types.RedemptionStateProcessing,
			Reason:    "paid but state update failed",
		}
	}

	events.Emit(ctx, q.sink, types.NewEvent(
		types.EventRedemptionSettled, requestDoc.ID, types.RedemptionStateCompleted.String(),
	).WithAmount("assets_paid", assets).WithAmount("shares", shares))
	q.hooks.RunPost(ctx, op, hooks.OpResult{Assets: assets, Shares: shares})

	logger.Info().
		Str("assets_paid", assets.String()).
		Msg("Redemption request settled")

	return SettlementOutcome{
		RequestID:  requestDoc.ID,
		State:      types.RedemptionStateCompleted,
		AssetsPaid: assets,
	}
}

// failRequest finalizes a PROCESSING request as FAILED and restores the
// escrowed shares when the amount is known.
func (q *Queue) failRequest(
	ctx context.Context, requestDoc *model.RedemptionRequestDocument, shares math.Int, reason string,
) SettlementOutcome {
	if err := q.transition(
		ctx, requestDoc.ID, types.QualifiedStatesForSettlementOutcome(), types.RedemptionStateFailed,
		map[string]any{"reason": reason},
	); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("request_id", requestDoc.ID).Msg("Failed to mark request failed")
	}
	if !shares.IsNil() && shares.IsPositive() {
		if err := q.ledger.MintShares(ctx, requestDoc.Owner, shares); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("request_id", requestDoc.ID).
				Msg("Failed to restore escrowed shares for failed request")
		}
	}

	events.Emit(ctx, q.sink, types.NewEvent(
		types.EventRedemptionFailed, requestDoc.ID, types.RedemptionStateFailed.String(),
	).WithDetail("reason", reason))

	return SettlementOutcome{
		RequestID: requestDoc.ID,
		State:     types.RedemptionStateFailed,
		Reason:    reason,
	}
}

// skipRequest returns a PROCESSING request to APPROVED so a later batch
// retries it without losing its place in line.
func (q *Queue) skipRequest(
	ctx context.Context, requestDoc *model.RedemptionRequestDocument, reason string,
) SettlementOutcome {
	if err := q.transition(
		ctx, requestDoc.ID, types.QualifiedStatesForSettlementOutcome(), types.RedemptionStateApproved, nil,
	); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("request_id", requestDoc.ID).Msg("Failed to return skipped request to approved")
	}

	events.Emit(ctx, q.sink, types.NewEvent(
		types.EventRedemptionSkipped, requestDoc.ID, types.RedemptionStateApproved.String(),
	).WithDetail("reason", reason))

	log.Ctx(ctx).Info().
		Str("request_id", requestDoc.ID).
		Str("reason", reason).
		Msg("Redemption request skipped")

	return SettlementOutcome{
		RequestID: requestDoc.ID,
		State:     types.RedemptionStateApproved,
		Reason:    reason,
	}
}

// logStrandedEscrow records shares that stayed escrowed after a terminal
// transition because the restoring mint failed; the request id lets an
// operator reconcile the escrow by hand.
func (q *Queue) logStrandedEscrow(ctx context.Context, requestID, owner string, shares math.Int, err error) {
	log.Ctx(ctx).Error().Err(err).
		Str("request_id", requestID).
		Str("owner", owner).
		Str("shares", shares.String()).
		Msg("Failed to restore escrowed shares after terminal transition")
}

func (q *Queue) transition(
	ctx context.Context,
	requestID string,
	qualified []types.RedemptionState,
	newState types.RedemptionState,
	setFields map[string]any,
) *types.Error {
	err := q.store.UpdateRedemptionState(ctx, requestID, qualified, newState, setFields)
	if err != nil {
		var notFoundErr *db.NotFoundError
		if errors.As(err, &notFoundErr) {
			return types.NewErrorf(
				types.ErrorState, types.WrongState,
				"request %s not found or not in a state qualifying for %s", requestID, newState,
			)
		}
		return types.NewInternalError(err)
	}
	metrics.RecordQueueTransition(newState.String())
	return nil
}

func (q *Queue) getRequest(ctx context.Context, requestID string) (*model.RedemptionRequestDocument, *types.Error) {
	requestDoc, err := q.store.GetRedemptionRequest(ctx, requestID)
	if err != nil {
		var notFoundErr *db.NotFoundError
		if errors.As(err, &notFoundErr) {
			return nil, types.NewErrorf(types.ErrorState, types.WrongState, "request %s not found", requestID)
		}
		return nil, types.NewInternalError(err)
	}
	return requestDoc, nil
}

func (q *Queue) requireManager(caller string) *types.Error {
	if !q.roles.HasRole(caller, registry.RoleManager) {
		return types.NewErrorf(
			types.ErrorAuthorization, types.Unauthorized,
			"account %s lacks the manager role", caller,
		)
	}
	return nil
}
