package hooks

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
	"github.com/fundlabs-io/vault-engine/internal/events"
	"github.com/fundlabs-io/vault-engine/internal/registry"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

type fakeRegistry struct {
	managers map[string]bool
	denied   map[string]bool
}

func (r *fakeRegistry) IsAllowedHook(hookID string) bool {
	return !r.denied[hookID]
}

func (r *fakeRegistry) HasRole(account string, role registry.Role) bool {
	return role == registry.RoleManager && r.managers[account]
}

type scriptedHook struct {
	id        string
	appliesTo types.OperationMask
	beforeErr *types.Error
	afterErr  error
	calls     *[]string
}

func (h *scriptedHook) ID() string                     { return h.id }
func (h *scriptedHook) AppliesTo() types.OperationMask { return h.appliesTo }

func (h *scriptedHook) Before(_ context.Context, _ OpContext) *types.Error {
	if h.calls != nil {
		*h.calls = append(*h.calls, "before:"+h.id)
	}
	return h.beforeErr
}

func (h *scriptedHook) After(_ context.Context, _ OpContext, _ OpResult) error {
	if h.calls != nil {
		*h.calls = append(*h.calls, "after:"+h.id)
	}
	return h.afterErr
}

func newTestPipeline() (*Pipeline, *fakeRegistry) {
	reg := &fakeRegistry{
		managers: map[string]bool{"manager": true},
		denied:   map[string]bool{},
	}
	return NewPipeline(reg, nil, events.NewMemorySink(), 4), reg
}

func depositOp() OpContext {
	return OpContext{
		Kind:   types.OperationDeposit,
		Caller: "alice",
		Owner:  "alice",
		Assets: math.NewInt(100),
		Shares: math.NewInt(100),
	}
}

func TestRegisterRequiresManager(t *testing.T) {
	ctx := context.Background()
	pipeline, _ := newTestPipeline()

	err := pipeline.Register(ctx, "mallory", &scriptedHook{id: "h1", appliesTo: types.MaskAll}, 0)
	require.True(t, types.HasErrorCode(err, types.Unauthorized))
}

func TestRegisterRequiresAllowlistedHook(t *testing.T) {
	ctx := context.Background()
	pipeline, reg := newTestPipeline()
	reg.denied["rogue"] = true

	err := pipeline.Register(ctx, "manager", &scriptedHook{id: "rogue", appliesTo: types.MaskAll}, 0)
	require.True(t, types.HasErrorCode(err, types.HookRejected))
}

func TestRegisterBoundsHooksPerKind(t *testing.T) {
	ctx := context.Background()
	pipeline, _ := newTestPipeline()

	for i := 0; i < 4; i++ {
		hook := &scriptedHook{id: string(rune('a' + i)), appliesTo: types.MaskDeposit}
		require.Nil(t, pipeline.Register(ctx, "manager", hook, i))
	}
	err := pipeline.Register(ctx, "manager", &scriptedHook{id: "e", appliesTo: types.MaskDeposit}, 5)
	require.True(t, types.HasErrorCode(err, types.HookRejected))

	// a kind under its bound still accepts hooks
	err = pipeline.Register(ctx, "manager", &scriptedHook{id: "w", appliesTo: types.MaskWithdraw}, 5)
	require.Nil(t, err)
}

func TestRunPreExecutesInOrder(t *testing.T) {
	ctx := context.Background()
	pipeline, _ := newTestPipeline()

	var calls []string
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "second", appliesTo: types.MaskAll, calls: &calls}, 20))
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "first", appliesTo: types.MaskAll, calls: &calls}, 10))

	require.Nil(t, pipeline.RunPre(ctx, depositOp()))
	require.Equal(t, []string{"before:first", "before:second"}, calls)
}

func TestRunPreStopsAtFirstVeto(t *testing.T) {
	ctx := context.Background()
	pipeline, _ := newTestPipeline()

	var calls []string
	veto := types.NewErrorf(types.ErrorValidation, types.HookRejected, "limit reached")
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "gate", appliesTo: types.MaskAll, beforeErr: veto, calls: &calls}, 0))
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "late", appliesTo: types.MaskAll, calls: &calls}, 1))

	err := pipeline.RunPre(ctx, depositOp())
	require.True(t, types.HasErrorCode(err, types.HookRejected))
	require.Equal(t, []string{"before:gate"}, calls)
}

func TestRunPreSkipsOtherKinds(t *testing.T) {
	ctx := context.Background()
	pipeline, _ := newTestPipeline()

	var calls []string
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "w-only", appliesTo: types.MaskWithdraw, calls: &calls}, 0))

	require.Nil(t, pipeline.RunPre(ctx, depositOp()))
	require.Empty(t, calls)
}

func TestRunPostIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{managers: map[string]bool{"manager": true}, denied: map[string]bool{}}
	sink := events.NewMemorySink()
	pipeline := NewPipeline(reg, nil, sink, 4)

	var calls []string
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{
		id: "broken", appliesTo: types.MaskAll, afterErr: errors.New("boom"), calls: &calls,
	}, 0))
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "healthy", appliesTo: types.MaskAll, calls: &calls}, 1))

	pipeline.RunPost(ctx, depositOp(), OpResult{Assets: math.NewInt(100), Shares: math.NewInt(100)})

	// the failure neither propagates nor stops later hooks
	require.Equal(t, []string{"after:broken", "after:healthy"}, calls)

	emitted := sink.Events()
	require.Len(t, emitted, 1)
	require.Equal(t, types.EventPostHookFailure, emitted[0].Kind)
	require.Equal(t, "broken", emitted[0].SubjectID)
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	pipeline, _ := newTestPipeline()

	var calls []string
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "h1", appliesTo: types.MaskAll, calls: &calls}, 0))
	require.Nil(t, pipeline.Unregister(ctx, "manager", "h1"))

	require.Nil(t, pipeline.RunPre(ctx, depositOp()))
	require.Empty(t, calls)

	err := pipeline.Unregister(ctx, "manager", "h1")
	require.True(t, types.HasErrorCode(err, types.HookRejected))
}

type failingHookStore struct {
	saveErr   error
	deleteErr error
}

func (s *failingHookStore) SaveHookRegistration(context.Context, *model.HookRegistrationDocument) error {
	return s.saveErr
}

func (s *failingHookStore) DeleteHookRegistration(context.Context, string) error {
	return s.deleteErr
}

func TestRegisterStoreFailureLeavesHookInactive(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{managers: map[string]bool{"manager": true}, denied: map[string]bool{}}
	store := &failingHookStore{saveErr: errors.New("mongo down")}
	pipeline := NewPipeline(reg, store, events.NewMemorySink(), 4)

	var calls []string
	err := pipeline.Register(ctx, "manager", &scriptedHook{id: "h1", appliesTo: types.MaskAll, calls: &calls}, 0)
	require.True(t, types.HasErrorKind(err, types.ErrorInternal))

	// an unpersisted hook never runs
	require.Nil(t, pipeline.RunPre(ctx, depositOp()))
	require.Empty(t, calls)

	// and the slot stays free for a retry
	store.saveErr = nil
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "h1", appliesTo: types.MaskAll, calls: &calls}, 0))
	require.Nil(t, pipeline.RunPre(ctx, depositOp()))
	require.Equal(t, []string{"before:h1"}, calls)
}

func TestUnregisterStoreFailureKeepsHookActive(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{managers: map[string]bool{"manager": true}, denied: map[string]bool{}}
	store := &failingHookStore{}
	pipeline := NewPipeline(reg, store, events.NewMemorySink(), 4)

	var calls []string
	require.Nil(t, pipeline.Register(ctx, "manager", &scriptedHook{id: "h1", appliesTo: types.MaskAll, calls: &calls}, 0))

	store.deleteErr = errors.New("mongo down")
	err := pipeline.Unregister(ctx, "manager", "h1")
	require.True(t, types.HasErrorKind(err, types.ErrorInternal))

	// still registered, still runs
	require.Nil(t, pipeline.RunPre(ctx, depositOp()))
	require.Equal(t, []string{"before:h1"}, calls)
}

func TestAmountCapHook(t *testing.T) {
	hook := NewAmountCapHook(math.NewInt(500))

	op := depositOp()
	require.Nil(t, hook.Before(context.Background(), op))

	op.Assets = math.NewInt(501)
	err := hook.Before(context.Background(), op)
	require.True(t, types.HasErrorCode(err, types.HookRejected))
}

func TestDenylistHook(t *testing.T) {
	hook := NewDenylistHook([]string{"sanctioned"})

	op := depositOp()
	require.Nil(t, hook.Before(context.Background(), op))

	op.Receiver = "sanctioned"
	err := hook.Before(context.Background(), op)
	require.True(t, types.HasErrorCode(err, types.HookRejected))
}
