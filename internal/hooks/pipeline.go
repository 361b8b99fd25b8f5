package hooks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fundlabs-io/vault-engine/internal/db/model"
	"github.com/fundlabs-io/vault-engine/internal/events"
	"github.com/fundlabs-io/vault-engine/internal/observability/metrics"
	"github.com/fundlabs-io/vault-engine/internal/registry"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

// RegistryChecker is the slice of the external registry the pipeline
// consumes: the global hook allow-list and the manager role check.
type RegistryChecker interface {
	IsAllowedHook(hookID string) bool
	HasRole(account string, role registry.Role) bool
}

// Store persists registrations for restart and audit. May be nil in tests.
type Store interface {
	SaveHookRegistration(ctx context.Context, registrationDoc *model.HookRegistrationDocument) error
	DeleteHookRegistration(ctx context.Context, hookID string) error
}

type registration struct {
	hook  Hook
	order int
}

type Pipeline struct {
	registry   RegistryChecker
	store      Store
	sink       events.Sink
	maxPerKind int
	hooks      []registration
}

func NewPipeline(reg RegistryChecker, store Store, sink events.Sink, maxPerKind int) *Pipeline {
	return &Pipeline{
		registry:   reg,
		store:      store,
		sink:       sink,
		maxPerKind: maxPerKind,
	}
}

// Register appends a hook at the given order. Only managers may register,
// only allow-listed hooks are accepted, and the per-kind count is bounded so
// a long hook list cannot make operations arbitrarily expensive.
func (p *Pipeline) Register(ctx context.Context, manager string, hook Hook, order int) *types.Error {
	if !p.registry.HasRole(manager, registry.RoleManager) {
		return types.NewErrorf(
			types.ErrorAuthorization, types.Unauthorized,
			"account %s may not register hooks", manager,
		)
	}
	if !p.registry.IsAllowedHook(hook.ID()) {
		return types.NewErrorf(
			types.ErrorValidation, types.HookRejected,
			"hook %s is not on the global allow-list", hook.ID(),
		)
	}
	for _, kind := range types.OperationKinds() {
		if !hook.AppliesTo().Includes(kind) {
			continue
		}
		if p.countForKind(kind) >= p.maxPerKind {
			return types.NewErrorf(
				types.ErrorValidation, types.HookRejected,
				"hook limit of %d reached for operation kind %s", p.maxPerKind, kind,
			)
		}
	}

	// persist first: a hook that could not be recorded never runs
	if p.store != nil {
		doc := &model.HookRegistrationDocument{
			HookID:       hook.ID(),
			AppliesTo:    uint8(hook.AppliesTo()),
			Order:        order,
			RegisteredBy: manager,
			RegisteredAt: time.Now().UTC(),
		}
		if err := p.store.SaveHookRegistration(ctx, doc); err != nil {
			return types.NewInternalError(fmt.Errorf("failed to persist hook registration: %w", err))
		}
	}

	p.hooks = append(p.hooks, registration{hook: hook, order: order})
	sort.SliceStable(p.hooks, func(i, j int) bool {
		return p.hooks[i].order < p.hooks[j].order
	})

	return nil
}

func (p *Pipeline) Unregister(ctx context.Context, manager string, hookID string) *types.Error {
	if !p.registry.HasRole(manager, registry.RoleManager) {
		return types.NewErrorf(
			types.ErrorAuthorization, types.Unauthorized,
			"account %s may not unregister hooks", manager,
		)
	}

	found := false
	for _, reg := range p.hooks {
		if reg.hook.ID() == hookID {
			found = true
			break
		}
	}
	if !found {
		return types.NewErrorf(
			types.ErrorValidation, types.HookRejected,
			"hook %s is not registered", hookID,
		)
	}

	// persist first so a storage failure leaves the hook still active
	if p.store != nil {
		if err := p.store.DeleteHookRegistration(ctx, hookID); err != nil {
			return types.NewInternalError(fmt.Errorf("failed to delete hook registration: %w", err))
		}
	}

	kept := p.hooks[:0]
	for _, reg := range p.hooks {
		if reg.hook.ID() != hookID {
			kept = append(kept, reg)
		}
	}
	p.hooks = kept

	return nil
}

func (p *Pipeline) countForKind(kind types.OperationKind) int {
	n := 0
	for _, reg := range p.hooks {
		if reg.hook.AppliesTo().Includes(kind) {
			n++
		}
	}
	return n
}

// RunPre executes pre-hooks in registration order. The first rejection
// aborts with the offending hook's reason; later hooks are never run.
func (p *Pipeline) RunPre(ctx context.Context, op OpContext) *types.Error {
	for _, reg := range p.hooks {
		if !reg.hook.AppliesTo().Includes(op.Kind) {
			continue
		}
		if err := reg.hook.Before(ctx, op); err != nil {
			return types.NewError(
				types.ErrorValidation, types.HookRejected,
				fmt.Errorf("hook %s rejected %s: %w", reg.hook.ID(), op.Kind, err),
			)
		}
	}
	return nil
}

// RunPost executes post-hooks after the mutation has committed. Failures
// are captured into the event stream and metrics, never propagated: the
// economically meaningful mutation is already settled.
func (p *Pipeline) RunPost(ctx context.Context, op OpContext, result OpResult) {
	for _, reg := range p.hooks {
		if !reg.hook.AppliesTo().Includes(op.Kind) {
			continue
		}
		if err := reg.hook.After(ctx, op, result); err != nil {
			metrics.RecordPostHookFailure()
			log.Ctx(ctx).Error().Err(err).
				Str("hookId", reg.hook.ID()).
				Str("operation", op.Kind.String()).
				Msg("Post-hook failed; mutation stands")
			events.Emit(ctx, p.sink, types.NewEvent(
				types.EventPostHookFailure, reg.hook.ID(), "",
			).WithDetail("operation", op.Kind.String()).WithDetail("error", err.Error()))
		}
	}
}
