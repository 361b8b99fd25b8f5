package vault

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/fundlabs-io/vault-engine/internal/config"
	"github.com/fundlabs-io/vault-engine/internal/events"
	"github.com/fundlabs-io/vault-engine/internal/hooks"
	"github.com/fundlabs-io/vault-engine/internal/types"
	"github.com/fundlabs-io/vault-engine/testutil"
)

const testAsset = "usd-token"

type fixedPrice struct {
	price math.LegacyDec
}

func (p fixedPrice) Latest(_ context.Context) (math.LegacyDec, time.Time, *types.Error) {
	return p.price, time.Now().UTC(), nil
}

type recordingHooks struct {
	veto      *types.Error
	preCalls  []hooks.OpContext
	postCalls []hooks.OpResult
}

func (h *recordingHooks) RunPre(_ context.Context, op hooks.OpContext) *types.Error {
	h.preCalls = append(h.preCalls, op)
	return h.veto
}

func (h *recordingHooks) RunPost(_ context.Context, _ hooks.OpContext, result hooks.OpResult) {
	h.postCalls = append(h.postCalls, result)
}

func newTestLedger(t *testing.T) (*Ledger, *testutil.MemStore, *recordingHooks, *events.MemorySink) {
	t.Helper()
	store := testutil.NewMemStore(testAsset)
	hookRunner := &recordingHooks{}
	sink := events.NewMemorySink()
	ledger := NewLedger(store, fixedPrice{math.LegacyOneDec()}, hookRunner, sink, config.VaultConfig{
		AssetID:       testAsset,
		VirtualOffset: 1000,
	})
	return ledger, store, hookRunner, sink
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	ledger, store, hookRunner, sink := newTestLedger(t)

	shares, err := ledger.Deposit(ctx, "alice", testAsset, math.NewInt(1_000_000), "alice")
	require.Nil(t, err)
	require.Equal(t, math.NewInt(1000), shares)

	balance, gerr := store.GetBalance(ctx, "alice")
	require.NoError(t, gerr)
	require.Equal(t, shares, balance)

	state, gerr := store.GetVaultState(ctx)
	require.NoError(t, gerr)
	require.Equal(t, shares, state.ShareSupply)
	require.Equal(t, math.NewInt(1_000_000), state.AvailableLiquidity)

	require.Len(t, hookRunner.preCalls, 1)
	require.Equal(t, types.OperationDeposit, hookRunner.preCalls[0].Kind)
	require.Len(t, hookRunner.postCalls, 1)

	emitted := sink.Events()
	require.Len(t, emitted, 1)
	require.Equal(t, types.EventDeposit, emitted[0].Kind)
	require.Equal(t, "alice", emitted[0].SubjectID)
}

func TestDepositValidation(t *testing.T) {
	ctx := context.Background()
	ledger, _, _, _ := newTestLedger(t)

	_, err := ledger.Deposit(ctx, "alice", testAsset, math.ZeroInt(), "alice")
	require.True(t, types.HasErrorCode(err, types.ZeroAmount))

	_, err = ledger.Deposit(ctx, "alice", "other-token", math.NewInt(100), "alice")
	require.True(t, types.HasErrorCode(err, types.AssetMismatch))
}

func TestHookVetoAbortsDeposit(t *testing.T) {
	ctx := context.Background()
	ledger, store, hookRunner, _ := newTestLedger(t)
	hookRunner.veto = types.NewErrorf(types.ErrorValidation, types.HookRejected, "no")

	_, err := ledger.Deposit(ctx, "alice", testAsset, math.NewInt(1_000_000), "alice")
	require.True(t, types.HasErrorCode(err, types.HookRejected))

	// nothing committed, post hooks never ran
	state, gerr := store.GetVaultState(ctx)
	require.NoError(t, gerr)
	require.True(t, state.ShareSupply.IsZero())
	require.True(t, state.AvailableLiquidity.IsZero())
	require.Empty(t, hookRunner.postCalls)
}

func TestMintQuotesAssetsRoundedUp(t *testing.T) {
	ctx := context.Background()
	ledger, store, _, _ := newTestLedger(t)

	assets, err := ledger.Mint(ctx, "alice", testAsset, math.NewInt(3), "alice")
	require.Nil(t, err)
	// 3 shares at empty pool cost ceil(3*1000/1) assets
	require.Equal(t, math.NewInt(3000), assets)

	balance, gerr := store.GetBalance(ctx, "alice")
	require.NoError(t, gerr)
	require.Equal(t, math.NewInt(3), balance)
}

func TestWithdrawBurnsSharesRoundedUp(t *testing.T) {
	ctx := context.Background()
	ledger, store, _, _ := newTestLedger(t)

	_, err := ledger.Deposit(ctx, "alice", testAsset, math.NewInt(1_000_000), "alice")
	require.Nil(t, err)

	// supply 1000, value 1000: 100 assets cost ceil(100*1001/2000) = 51 shares
	shares, err := ledger.Withdraw(ctx, "alice", testAsset, math.NewInt(100), "alice", "alice")
	require.Nil(t, err)
	require.Equal(t, math.NewInt(51), shares)

	state, gerr := store.GetVaultState(ctx)
	require.NoError(t, gerr)
	require.Equal(t, math.NewInt(949), state.ShareSupply)
	require.Equal(t, math.NewInt(999_900), state.AvailableLiquidity)

	balance, gerr := store.GetBalance(ctx, "alice")
	require.NoError(t, gerr)
	require.Equal(t, math.NewInt(949), balance)
}

func TestWithdrawAuthorization(t *testing.T) {
	ctx := context.Background()
	ledger, _, _, _ := newTestLedger(t)

	_, err := ledger.Deposit(ctx, "alice", testAsset, math.NewInt(1_000_000), "alice")
	require.Nil(t, err)

	_, err = ledger.Withdraw(ctx, "mallory", testAsset, math.NewInt(100), "mallory", "alice")
	require.True(t, types.HasErrorCode(err, types.Unauthorized))

	ledger.ApproveOperator("alice", "bob")
	_, err = ledger.Withdraw(ctx, "bob", testAsset, math.NewInt(100), "bob", "alice")
	require.Nil(t, err)

	ledger.RevokeOperator("alice", "bob")
	_, err = ledger.Withdraw(ctx, "bob", testAsset, math.NewInt(100), "bob", "alice")
	require.True(t, types.HasErrorCode(err, types.Unauthorized))
}

func TestRedeemInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	ledger, _, _, _ := newTestLedger(t)

	_, err := ledger.Deposit(ctx, "alice", testAsset, math.NewInt(1_000_000), "alice")
	require.Nil(t, err)

	_, err = ledger.Redeem(ctx, "alice", testAsset, math.NewInt(10_000), "alice", "alice")
	require.True(t, types.HasErrorCode(err, types.InsufficientBalance))
}

func TestTransferPreservesSupply(t *testing.T) {
	ctx := context.Background()
	ledger, store, _, _ := newTestLedger(t)

	_, err := ledger.Deposit(ctx, "alice", testAsset, math.NewInt(1_000_000), "alice")
	require.Nil(t, err)

	err = ledger.Transfer(ctx, "alice", "alice", "bob", math.NewInt(400))
	require.Nil(t, err)

	aliceBalance, gerr := store.GetBalance(ctx, "alice")
	require.NoError(t, gerr)
	bobBalance, gerr := store.GetBalance(ctx, "bob")
	require.NoError(t, gerr)
	require.Equal(t, math.NewInt(600), aliceBalance)
	require.Equal(t, math.NewInt(400), bobBalance)

	state, gerr := store.GetVaultState(ctx)
	require.NoError(t, gerr)
	require.Equal(t, math.NewInt(1000), state.ShareSupply)
	require.Equal(t, aliceBalance.Add(bobBalance), state.ShareSupply)
}

func TestBurnAndMintSharesForEscrow(t *testing.T) {
	ctx := context.Background()
	ledger, store, _, _ := newTestLedger(t)

	_, err := ledger.Deposit(ctx, "alice", testAsset, math.NewInt(1_000_000), "alice")
	require.Nil(t, err)

	err = ledger.BurnShares(ctx, "alice", math.NewInt(100))
	require.Nil(t, err)
	state, gerr := store.GetVaultState(ctx)
	require.NoError(t, gerr)
	require.Equal(t, math.NewInt(900), state.ShareSupply)
	// liquidity untouched by escrow burns
	require.Equal(t, math.NewInt(1_000_000), state.AvailableLiquidity)

	err = ledger.MintShares(ctx, "alice", math.NewInt(100))
	require.Nil(t, err)
	balance, gerr := store.GetBalance(ctx, "alice")
	require.NoError(t, gerr)
	require.Equal(t, math.NewInt(1000), balance)
}

func TestPayOutChecksLiquidity(t *testing.T) {
	ctx := context.Background()
	ledger, store, _, _ := newTestLedger(t)
	store.SeedLiquidity(math.NewInt(80))

	err := ledger.PayOut(ctx, "alice", math.NewInt(100))
	require.True(t, types.HasErrorCode(err, types.InsufficientLiquidity))

	err = ledger.PayOut(ctx, "alice", math.NewInt(60))
	require.Nil(t, err)

	liquidity, lerr := ledger.AvailableLiquidity(ctx)
	require.Nil(t, lerr)
	require.Equal(t, math.NewInt(20), liquidity)
}

// Share supply must equal the sum of all balances after every operation,
// whether the operation succeeded or was refused.
func TestSupplyEqualsSumOfBalances(t *testing.T) {
	ctx := context.Background()
	ledger, store, _, _ := newTestLedger(t)

	accounts := []string{"alice", "bob", "carol"}
	account := func() string { return accounts[gofakeit.Number(0, len(accounts)-1)] }
	amount := func() math.Int { return math.NewInt(int64(gofakeit.Number(1, 5_000_000))) }

	checkInvariant := func(step int) {
		state, err := store.GetVaultState(ctx)
		require.NoError(t, err)

		sum := math.ZeroInt()
		for _, name := range accounts {
			balance, berr := store.GetBalance(ctx, name)
			require.NoError(t, berr)
			require.False(t, balance.IsNegative(), "step %d: negative balance for %s", step, name)
			sum = sum.Add(balance)
		}
		require.Equal(t, state.ShareSupply, sum, "step %d: supply diverged from balances", step)
		require.False(t, state.AvailableLiquidity.IsNegative(), "step %d: negative liquidity", step)
	}

	for step := 0; step < 500; step++ {
		owner := account()
		switch gofakeit.Number(0, 5) {
		case 0:
			ledger.Deposit(ctx, owner, testAsset, amount(), owner)
		case 1:
			ledger.Mint(ctx, owner, testAsset, math.NewInt(int64(gofakeit.Number(1, 5_000))), owner)
		case 2:
			ledger.Withdraw(ctx, owner, testAsset, amount(), owner, owner)
		case 3:
			ledger.Redeem(ctx, owner, testAsset, math.NewInt(int64(gofakeit.Number(1, 5_000))), owner, owner)
		case 4:
			ledger.Transfer(ctx, owner, owner, account(), math.NewInt(int64(gofakeit.Number(1, 5_000))))
		case 5:
			// escrow burn immediately unwound, as a failed redemption does
			shares := math.NewInt(int64(gofakeit.Number(1, 5_000)))
			if err := ledger.BurnShares(ctx, owner, shares); err == nil {
				require.Nil(t, ledger.MintShares(ctx, owner, shares))
			}
		}
		checkInvariant(step)
	}
}
