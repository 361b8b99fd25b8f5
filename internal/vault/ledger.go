// Package vault is the share/asset accounting core. All mutations of share
// supply, balances and available liquidity flow through the Ledger, gated
// by the hook pipeline and priced by the oracle feed.
package vault

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/fundlabs-io/vault-engine/internal/config"
	"github.com/fundlabs-io/vault-engine/internal/db"
	"github.com/fundlabs-io/vault-engine/internal/events"
	"github.com/fundlabs-io/vault-engine/internal/hooks"
	"github.com/fundlabs-io/vault-engine/internal/observability/metrics"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

type Store interface {
	GetVaultState(ctx context.Context) (*db.VaultState, error)
	GetBalance(ctx context.Context, accountID string) (math.Int, error)
	ApplyLedgerMutation(ctx context.Context, mut db.LedgerMutation) error
}

// PriceSource is the valuation collaborator, normally the oracle feed.
type PriceSource interface {
	Latest(ctx context.Context) (math.LegacyDec, time.Time, *types.Error)
}

type HookRunner interface {
	RunPre(ctx context.Context, op hooks.OpContext) *types.Error
	RunPost(ctx context.Context, op hooks.OpContext, result hooks.OpResult)
}

type Ledger struct {
	store         Store
	prices        PriceSource
	hooks         HookRunner
	sink          events.Sink
	assetID       string
	virtualOffset math.Int

	// owner -> operators approved to withdraw/redeem/transfer on its behalf
	operators map[string]map[string]struct{}
}

func NewLedger(store Store, prices PriceSource, hookRunner HookRunner, sink events.Sink, cfg config.VaultConfig) *Ledger {
	return &Ledger{
		store:         store,
		prices:        prices,
		hooks:         hookRunner,
		sink:          sink,
		assetID:       cfg.AssetID,
		virtualOffset: math.NewInt(cfg.VirtualOffset),
		operators:     make(map[string]map[string]struct{}),
	}
}

// ApproveOperator lets operator act on owner's balance in withdraw, redeem
// and transfer operations.
func (l *Ledger) ApproveOperator(owner, operator string) {
	if l.operators[owner] == nil {
		l.operators[owner] = make(map[string]struct{})
	}
	l.operators[owner][operator] = struct{}{}
}

func (l *Ledger) RevokeOperator(owner, operator string) {
	delete(l.operators[owner], operator)
}

func (l *Ledger) isAuthorized(caller, owner string) bool {
	if caller == owner {
		return true
	}
	_, ok := l.operators[owner][caller]
	return ok
}

// Deposit converts assets to shares for receiver. Shares round down.
func (l *Ledger) Deposit(ctx context.Context, caller, assetID string, assets math.Int, receiver string) (math.Int, *types.Error) {
	shares, err := l.deposit(ctx, caller, assetID, assets, receiver)
	metrics.RecordLedgerOperation("deposit", err != nil)
	return shares, err
}

func (l *Ledger) deposit(ctx context.Context, caller, assetID string, assets math.Int, receiver string) (math.Int, *types.Error) {
	if err := l.checkAsset(assetID); err != nil {
		return math.Int{}, err
	}
	if !assets.IsPositive() {
		return math.Int{}, zeroAmountError("deposit assets")
	}

	state, totalValue, err := l.valuation(ctx)
	if err != nil {
		return math.Int{}, err
	}
	shares := SharesForDeposit(assets, state.ShareSupply, totalValue, l.virtualOffset)
	if !shares.IsPositive() {
		return math.Int{}, zeroAmountError("deposit would mint zero shares")
	}

	op := hooks.OpContext{
		Kind:     types.OperationDeposit,
		Caller:   caller,
		Owner:    receiver,
		Receiver: receiver,
		Assets:   assets,
		Shares:   shares,
	}
	if err := l.hooks.RunPre(ctx, op); err != nil {
		return math.Int{}, err
	}

	mut := db.LedgerMutation{
		Account:        receiver,
		SharesDelta:    shares,
		CounterSharesDelta: math.ZeroInt(),
		SupplyDelta:    shares,
		LiquidityDelta: assets,
	}
	if err := l.commit(ctx, mut, state); err != nil {
		return math.Int{}, err
	}

	l.logOp(ctx, "deposit", receiver, assets, shares)
	events.Emit(ctx, l.sink, types.NewEvent(types.EventDeposit, receiver, state.ShareSupply.Add(shares).String()).
		WithAmount("assets", assets).
		WithAmount("shares", shares))
	l.hooks.RunPost(ctx, op, hooks.OpResult{Assets: assets, Shares: shares})

	return shares, nil
}

// Mint issues an exact share amount to receiver and returns the assets
// required, rounded up.
func (l *Ledger) Mint(ctx context.Context, caller, assetID string, shares math.Int, receiver string) (math.Int, *types.Error) {
	assets, err := l.mint(ctx, caller, assetID, shares, receiver)
	metrics.RecordLedgerOperation("mint", err != nil)
	return assets, err
}

func (l *Ledger) mint(ctx context.Context, caller, assetID string, shares math.Int, receiver string) (math.Int, *types.Error) {
	if err := l.checkAsset(assetID); err != nil {
		return math.Int{}, err
	}
	if !shares.IsPositive() {
		return math.Int{}, zeroAmountError("mint shares")
	}

	state, totalValue, err := l.valuation(ctx)
	if err != nil {
		return math.Int{}, err
	}
	assets := AssetsForMint(shares, state.ShareSupply, totalValue, l.virtualOffset)

	op := hooks.OpContext{
		Kind:     types.OperationDeposit,
		Caller:   caller,
		Owner:    receiver,
		Receiver: receiver,
		Assets:   assets,
		Shares:   shares,
	}
	if err := l.hooks.RunPre(ctx, op); err != nil {
		return math.Int{}, err
	}

	mut := db.LedgerMutation{
		Account:        receiver,
		SharesDelta:    shares,
		CounterSharesDelta: math.ZeroInt(),
		SupplyDelta:    shares,
		LiquidityDelta: assets,
	}
	if err := l.commit(ctx, mut, state); err != nil {
		return math.Int{}, err
	}

	l.logOp(ctx, "mint", receiver, assets, shares)
	events.Emit(ctx, l.sink, types.NewEvent(types.EventMint, receiver, state.ShareSupply.Add(shares).String()).
		WithAmount("assets", assets).
		WithAmount("shares", shares))
	l.hooks.RunPost(ctx, op, hooks.OpResult{Assets: assets, Shares: shares})

	return assets, nil
}

// Withdraw pays an exact asset amount to receiver, burning owner's shares
// rounded up.
func (l *Ledger) Withdraw(ctx context.Context, caller, assetID string, assets math.Int, receiver, owner string) (math.Int, *types.Error) {
	shares, err := l.withdraw(ctx, caller, assetID, assets, receiver, owner)
	metrics.RecordLedgerOperation("withdraw", err != nil)
	return shares, err
}

func (l *Ledger) withdraw(ctx context.Context, caller, assetID string, assets math.Int, receiver, owner string) (math.Int, *types.Error) {
	if err := l.checkAsset(assetID); err != nil {
		return math.Int{}, err
	}
	if !assets.IsPositive() {
		return math.Int{}, zeroAmountError("withdraw assets")
	}
	if !l.isAuthorized(caller, owner) {
		return math.Int{}, notOwnerError(caller, owner)
	}

	state, totalValue, err := l.valuation(ctx)
	if err != nil {
		return math.Int{}, err
	}
	shares := SharesForWithdraw(assets, state.ShareSupply, totalValue, l.virtualOffset)

	if err := l.checkBalance(ctx, owner, shares); err != nil {
		return math.Int{}, err
	}
	if err := checkLiquidity(state, assets); err != nil {
		return math.Int{}, err
	}

	op := hooks.OpContext{
		Kind:     types.OperationWithdraw,
		Caller:   caller,
		Owner:    owner,
		Receiver: receiver,
		Assets:   assets,
		Shares:   shares,
	}
	if err := l.hooks.RunPre(ctx, op); err != nil {
		return math.Int{}, err
	}

	mut := db.LedgerMutation{
		Account:        owner,
		SharesDelta:    shares.Neg(),
		CounterSharesDelta: math.ZeroInt(),
		SupplyDelta:    shares.Neg(),
		LiquidityDelta: assets.Neg(),
	}
	if err := l.commit(ctx, mut, state); err != nil {
		return math.Int{}, err
	}

	l.logOp(ctx, "withdraw", owner, assets, shares)
	events.Emit(ctx, l.sink, types.NewEvent(types.EventWithdraw, owner, state.ShareSupply.Sub(shares).String()).
		WithAmount("assets", assets).
		WithAmount("shares", shares).
		WithDetail("receiver", receiver))
	l.hooks.RunPost(ctx, op, hooks.OpResult{Assets: assets, Shares: shares})

	return shares, nil
}

// Redeem burns an exact share amount from owner and pays assets to
// receiver, rounded down.
func (l *Ledger) Redeem(ctx context.Context, caller, assetID string, shares math.Int, receiver, owner string) (math.Int, *types.Error) {
	assets, err := l.redeem(ctx, caller, assetID, shares, receiver, owner)
	metrics.RecordLedgerOperation("redeem", err != nil)
	return assets, err
}

func (l *Ledger) redeem(ctx context.Context, caller, assetID string, shares math.Int, receiver, owner string) (math.Int, *types.Error) {
	if err := l.checkAsset(assetID); err != nil {
		return math.Int{}, err
	}
	if !shares.IsPositive() {
		return math.Int{}, zeroAmountError("redeem shares")
	}
	if !l.isAuthorized(caller, owner) {
		return math.Int{}, notOwnerError(caller, owner)
	}

	state, totalValue, err := l.valuation(ctx)
	if err != nil {
		return math.Int{}, err
	}
	assets := AssetsForRedeem(shares, state.ShareSupply, totalValue, l.virtualOffset)
	if !assets.IsPositive() {
		return math.Int{}, zeroAmountError("redeem would pay zero assets")
	}

	if err := l.checkBalance(ctx, owner, shares); err != nil {
		return math.Int{}, err
	}
	if err := checkLiquidity(state, assets); err != nil {
		return math.Int{}, err
	}

	op := hooks.OpContext{
		Kind:     types.OperationWithdraw,
		Caller:   caller,
		Owner:    owner,
		Receiver: receiver,
		Assets:   assets,
		Shares:   shares,
	}
	if err := l.hooks.RunPre(ctx, op); err != nil {
		return math.Int{}, err
	}

	mut := db.LedgerMutation{
		Account:        owner,
		SharesDelta:    shares.Neg(),
		CounterSharesDelta: math.ZeroInt(),
		SupplyDelta:    shares.Neg(),
		LiquidityDelta: assets.Neg(),
	}
	if err := l.commit(ctx, mut, state); err != nil {
		return math.Int{}, err
	}

	l.logOp(ctx, "redeem", owner, assets, shares)
	events.Emit(ctx, l.sink, types.NewEvent(types.EventRedeem, owner, state.ShareSupply.Sub(shares).String()).
		WithAmount("assets", assets).
		WithAmount("shares", shares).
		WithDetail("receiver", receiver))
	l.hooks.RunPost(ctx, op, hooks.OpResult{Assets: assets, Shares: shares})

	return assets, nil
}

// Transfer moves shares between accounts without touching supply or
// liquidity.
func (l *Ledger) Transfer(ctx context.Context, caller, from, to string, shares math.Int) *types.Error {
	err := l.transfer(ctx, caller, from, to, shares)
	metrics.RecordLedgerOperation("transfer", err != nil)
	return err
}

func (l *Ledger) transfer(ctx context.Context, caller, from, to string, shares math.Int) *types.Error {
	if !shares.IsPositive() {
		return zeroAmountError("transfer shares")
	}
	if !l.isAuthorized(caller, from) {
		return notOwnerError(caller, from)
	}
	if err := l.checkBalance(ctx, from, shares); err != nil {
		return err
	}

	op := hooks.OpContext{
		Kind:     types.OperationTransfer,
		Caller:   caller,
		Owner:    from,
		Receiver: to,
		Assets:   math.ZeroInt(),
		Shares:   shares,
	}
	if err := l.hooks.RunPre(ctx, op); err != nil {
		return err
	}

	mut := db.LedgerMutation{
		Account:            from,
		SharesDelta:        shares.Neg(),
		CounterAccount:     to,
		CounterSharesDelta: shares,
		SupplyDelta:        math.ZeroInt(),
		LiquidityDelta:     math.ZeroInt(),
	}
	if err := l.store.ApplyLedgerMutation(ctx, mut); err != nil {
		return types.NewInternalError(fmt.Errorf("failed to apply transfer: %w", err))
	}

	l.logOp(ctx, "transfer", from, math.ZeroInt(), shares)
	events.Emit(ctx, l.sink, types.NewEvent(types.EventTransfer, from, "").
		WithAmount("shares", shares).
		WithDetail("receiver", to))
	l.hooks.RunPost(ctx, op, hooks.OpResult{Assets: math.ZeroInt(), Shares: shares})

	return nil
}

// BurnShares removes shares from owner and supply without paying assets.
// Used by the redemption queue at submission.
func (l *Ledger) BurnShares(ctx context.Context, owner string, shares math.Int) *types.Error {
	if !shares.IsPositive() {
		return zeroAmountError("burn shares")
	}
	if err := l.checkBalance(ctx, owner, shares); err != nil {
		return err
	}

	mut := db.LedgerMutation{
		Account:        owner,
		SharesDelta:    shares.Neg(),
		CounterSharesDelta: math.ZeroInt(),
		SupplyDelta:    shares.Neg(),
		LiquidityDelta: math.ZeroInt(),
	}
	if err := l.store.ApplyLedgerMutation(ctx, mut); err != nil {
		return types.NewInternalError(fmt.Errorf("failed to burn shares: %w", err))
	}
	l.refreshSupplyGauge(ctx)
	return nil
}

// MintShares issues shares to owner without taking assets. Used by the
// redemption queue to compensate rejected, cancelled and failed requests.
func (l *Ledger) MintShares(ctx context.Context, owner string, shares math.Int) *types.Error {
	if !shares.IsPositive() {
		return zeroAmountError("mint shares")
	}

	mut := db.LedgerMutation{
		Account:        owner,
		SharesDelta:    shares,
		CounterSharesDelta: math.ZeroInt(),
		SupplyDelta:    shares,
		LiquidityDelta: math.ZeroInt(),
	}
	if err := l.store.ApplyLedgerMutation(ctx, mut); err != nil {
		return types.NewInternalError(fmt.Errorf("failed to mint shares: %w", err))
	}
	l.refreshSupplyGauge(ctx)
	return nil
}

// PayOut debits available liquidity for a settlement payment.
func (l *Ledger) PayOut(ctx context.Context, receiver string, assets math.Int) *types.Error {
	state, err := l.store.GetVaultState(ctx)
	if err != nil {
		return types.NewInternalError(err)
	}
	if err := checkLiquidity(state, assets); err != nil {
		return err
	}

	mut := db.LedgerMutation{
		Account:        receiver,
		SharesDelta:    math.ZeroInt(),
		CounterSharesDelta: math.ZeroInt(),
		SupplyDelta:    math.ZeroInt(),
		LiquidityDelta: assets.Neg(),
	}
	if err := l.store.ApplyLedgerMutation(ctx, mut); err != nil {
		return types.NewInternalError(fmt.Errorf("failed to pay out assets: %w", err))
	}
	return nil
}

// AssetsForShares converts at the current price, rounding down.
func (l *Ledger) AssetsForShares(ctx context.Context, shares math.Int) (math.Int, *types.Error) {
	state, totalValue, err := l.valuation(ctx)
	if err != nil {
		return math.Int{}, err
	}
	return AssetsForRedeem(shares, state.ShareSupply, totalValue, l.virtualOffset), nil
}

func (l *Ledger) AvailableLiquidity(ctx context.Context) (math.Int, *types.Error) {
	state, err := l.store.GetVaultState(ctx)
	if err != nil {
		return math.Int{}, types.NewInternalError(err)
	}
	return state.AvailableLiquidity, nil
}

func (l *Ledger) Balance(ctx context.Context, accountID string) (math.Int, *types.Error) {
	balance, err := l.store.GetBalance(ctx, accountID)
	if err != nil {
		return math.Int{}, types.NewInternalError(err)
	}
	return balance, nil
}

// valuation re-reads shared state at the point of use; nothing is cached
// across operation boundaries.
func (l *Ledger) valuation(ctx context.Context) (*db.VaultState, math.Int, *types.Error) {
	state, err := l.store.GetVaultState(ctx)
	if err != nil {
		return nil, math.Int{}, types.NewInternalError(err)
	}
	price, _, perr := l.prices.Latest(ctx)
	if perr != nil {
		return nil, math.Int{}, perr
	}
	return state, TotalValue(price, state.ShareSupply), nil
}

func (l *Ledger) commit(ctx context.Context, mut db.LedgerMutation, state *db.VaultState) *types.Error {
	if err := l.store.ApplyLedgerMutation(ctx, mut); err != nil {
		return types.NewInternalError(fmt.Errorf("failed to apply ledger mutation: %w", err))
	}
	metrics.SetShareSupply(floatSupply(state.ShareSupply.Add(mut.SupplyDelta)))
	return nil
}

func (l *Ledger) refreshSupplyGauge(ctx context.Context) {
	if state, err := l.store.GetVaultState(ctx); err == nil {
		metrics.SetShareSupply(floatSupply(state.ShareSupply))
	}
}

func (l *Ledger) checkAsset(assetID string) *types.Error {
	if assetID != l.assetID {
		return types.NewErrorf(
			types.ErrorValidation, types.AssetMismatch,
			"asset %s does not match pool asset %s", assetID, l.assetID,
		)
	}
	return nil
}

func (l *Ledger) checkBalance(ctx context.Context, owner string, shares math.Int) *types.Error {
	balance, err := l.store.GetBalance(ctx, owner)
	if err != nil {
		return types.NewInternalError(err)
	}
	if balance.LT(shares) {
		return types.NewErrorf(
			types.ErrorValidation, types.InsufficientBalance,
			"account %s holds %s shares, needs %s", owner, balance, shares,
		)
	}
	return nil
}

func checkLiquidity(state *db.VaultState, assets math.Int) *types.Error {
	if state.AvailableLiquidity.LT(assets) {
		return types.NewErrorf(
			types.ErrorLiquidity, types.InsufficientLiquidity,
			"available liquidity %s cannot cover %s", state.AvailableLiquidity, assets,
		)
	}
	return nil
}

func zeroAmountError(what string) *types.Error {
	return types.NewErrorf(types.ErrorValidation, types.ZeroAmount, "%s must be positive", what)
}

func notOwnerError(caller, owner string) *types.Error {
	return types.NewErrorf(
		types.ErrorAuthorization, types.Unauthorized,
		"caller %s is neither owner %s nor an approved operator", caller, owner,
	)
}

func floatSupply(supply math.Int) float64 {
	f, err := supply.ToLegacyDec().Float64()
	if err != nil {
		return 0
	}
	return f
}

func (l *Ledger) logOp(ctx context.Context, operation, account string, assets, shares math.Int) {
	log.Ctx(ctx).Info().
		Str("operation", operation).
		Str("account", account).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Msg("Committed ledger operation")
}
