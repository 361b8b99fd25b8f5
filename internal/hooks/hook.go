// Package hooks implements the pre/post operation pipeline attached to the
// ledger. Pre-hooks can veto a mutation before it happens; post-hooks only
// observe a committed one, and a buggy post-hook must never be able to
// unwind settled accounting.
package hooks

import (
	"context"

	"cosmossdk.io/math"

	"github.com/fundlabs-io/vault-engine/internal/types"
)

// OpContext describes the balance-affecting action being gated.
type OpContext struct {
	Kind     types.OperationKind
	Caller   string
	Owner    string
	Receiver string
	Assets   math.Int
	Shares   math.Int
}

// OpResult carries the committed quantities to post-hooks.
type OpResult struct {
	Assets math.Int
	Shares math.Int
}

// Hook is one pluggable extension. AppliesTo tags the operation kinds it is
// dispatched for; Before may veto, After may only observe.
type Hook interface {
	ID() string
	AppliesTo() types.OperationMask
	Before(ctx context.Context, op OpContext) *types.Error
	After(ctx context.Context, op OpContext, result OpResult) error
}
