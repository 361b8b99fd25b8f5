package hooks

import (
	"context"
	"fmt"

	"cosmossdk.io/math"

	"github.com/fundlabs-io/vault-engine/internal/types"
)

const (
	AmountCapHookID = "builtin/amount-cap"
	DenylistHookID  = "builtin/receiver-denylist"
)

// AmountCapHook vetoes any operation moving more assets than the cap.
type AmountCapHook struct {
	cap math.Int
}

func NewAmountCapHook(cap math.Int) *AmountCapHook {
	return &AmountCapHook{cap: cap}
}

func (h *AmountCapHook) ID() string {
	return AmountCapHookID
}

func (h *AmountCapHook) AppliesTo() types.OperationMask {
	return types.MaskDeposit | types.MaskWithdraw
}

func (h *AmountCapHook) Before(_ context.Context, op OpContext) *types.Error {
	if op.Assets.GT(h.cap) {
		return types.NewErrorf(
			types.ErrorValidation, types.HookRejected,
			"amount %s exceeds per-operation cap %s", op.Assets, h.cap,
		)
	}
	return nil
}

func (h *AmountCapHook) After(context.Context, OpContext, OpResult) error {
	return nil
}

// DenylistHook vetoes operations whose receiver or owner is denied.
type DenylistHook struct {
	denied map[string]struct{}
}

func NewDenylistHook(accounts []string) *DenylistHook {
	denied := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		denied[account] = struct{}{}
	}
	return &DenylistHook{denied: denied}
}

func (h *DenylistHook) ID() string {
	return DenylistHookID
}

func (h *DenylistHook) AppliesTo() types.OperationMask {
	return types.MaskAll
}

func (h *DenylistHook) Before(_ context.Context, op OpContext) *types.Error {
	for _, account := range []string{op.Receiver, op.Owner} {
		if _, ok := h.denied[account]; ok {
			return types.NewError(
				types.ErrorValidation, types.HookRejected,
				fmt.Errorf("account %s is denied", account),
			)
		}
	}
	return nil
}

func (h *DenylistHook) After(context.Context, OpContext, OpResult) error {
	return nil
}
