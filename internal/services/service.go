// Package services wires configuration, storage, the oracle feed, the hook
// pipeline, the ledger and the redemption queue into one engine facade.
package services

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
	"github.com/fundlabs-io/vault-engine/internal/oracle"
	"github.com/fundlabs-io/vault-engine/internal/redemption"
	"github.com/fundlabs-io/vault-engine/internal/registry"
	"github.com/fundlabs-io/vault-engine/internal/types"
	"github.com/fundlabs-io/vault-engine/internal/vault"
)

type Service struct {
	cfg      *config.Config
	db       db.DbInterface
	registry *registry.Service
	sink     events.Sink
	oracle   *oracle.Feed
	pipeline *hooks.Pipeline
	ledger   *vault.Ledger
	queue    *redemption.Queue
}

func NewService(ctx context.Context, cfg *config.Config, database db.DbInterface) (*Service, error) {
	reg := registry.New(cfg.Roles, cfg.Allowlist)
	if !reg.IsAllowedAsset(cfg.Vault.AssetID) {
		return nil, fmt.Errorf("pool asset %s is not on the asset allow-list", cfg.Vault.AssetID)
	}

	var sink events.Sink
	if cfg.Events.Enabled {
		amqpSink, err := events.NewAmqpSink(cfg.Events)
		if err != nil {
			return nil, fmt.Errorf("failed to connect event sink: %w", err)
		}
		sink = amqpSink
	} else {
		sink = events.NewMemorySink()
	}

	if err := database.InitVaultState(ctx, cfg.Vault.AssetID); err != nil {
		return nil, fmt.Errorf("failed to initialize vault state: %w", err)
	}

	feed := oracle.NewFeed(database, reg, sink, cfg.Oracle)
	pipeline := hooks.NewPipeline(reg, database, sink, cfg.Hooks.MaxPerKind)
	ledger := vault.NewLedger(database, feed, pipeline, sink, cfg.Vault)
	queue := redemption.NewQueue(database, ledger, reg, pipeline, sink, redemption.Domain{
		Name:    cfg.Vault.DomainName,
		Version: cfg.Vault.DomainVersion,
		FundID:  cfg.Vault.FundID,
	})

	s := &Service{
		cfg:      cfg,
		db:       database,
		registry: reg,
		sink:     sink,
		oracle:   feed,
		pipeline: pipeline,
		ledger:   ledger,
		queue:    queue,
	}
	if err := s.registerBuiltinHooks(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// registerBuiltinHooks installs the config-driven hooks through the regular
// pipeline gate, attributed to the first configured manager.
func (s *Service) registerBuiltinHooks(ctx context.Context) error {
	if len(s.cfg.Roles.Managers) == 0 {
		if s.cfg.Hooks.AmountCap != "" || len(s.cfg.Hooks.DeniedReceivers) > 0 {
			return fmt.Errorf("built-in hooks configured but no manager account exists to register them")
		}
		return nil
	}
	manager := s.cfg.Roles.Managers[0]

	if s.cfg.Hooks.AmountCap != "" {
		capAmount, ok := math.NewIntFromString(s.cfg.Hooks.AmountCap)
		if !ok {
			return fmt.Errorf("invalid hook amount cap %q", s.cfg.Hooks.AmountCap)
		}
		if err := s.pipeline.Register(ctx, manager, hooks.NewAmountCapHook(capAmount), 0); err != nil {
			return fmt.Errorf("failed to register amount cap hook: %w", err)
		}
	}
	if len(s.cfg.Hooks.DeniedReceivers) > 0 {
		if err := s.pipeline.Register(ctx, manager, hooks.NewDenylistHook(s.cfg.Hooks.DeniedReceivers), 0); err != nil {
			return fmt.Errorf("failed to register denylist hook: %w", err)
		}
	}
	return nil
}

// Start blocks until the context is cancelled, then releases the event sink.
func (s *Service) Start(ctx context.Context) {
	log.Ctx(ctx).Info().
		Str("asset_id", s.cfg.Vault.AssetID).
		Str("fund_id", s.cfg.Vault.FundID).
		Msg("Vault engine started")

	<-ctx.Done()
	if err := s.sink.Close(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to close event sink")
	}
	log.Ctx(ctx).Info().Msg("Vault engine stopped")
}

// Ledger operations

func (s *Service) Deposit(ctx context.Context, caller, assetID string, assets math.Int, receiver string) (math.Int, *types.Error) {
	return s.ledger.Deposit(ctx, caller, assetID, assets, receiver)
}

func (s *Service) Mint(ctx context.Context, caller, assetID string, shares math.Int, receiver string) (math.Int, *types.Error) {
	return s.ledger.Mint(ctx, caller, assetID, shares, receiver)
}

func (s *Service) Withdraw(ctx context.Context, caller, assetID string, assets math.Int, receiver, owner string) (math.Int, *types.Error) {
	return s.ledger.Withdraw(ctx, caller, assetID, assets, receiver, owner)
}

func (s *Service) Redeem(ctx context.Context, caller, assetID string, shares math.Int, receiver, owner string) (math.Int, *types.Error) {
	return s.ledger.Redeem(ctx, caller, assetID, shares, receiver, owner)
}

func (s *Service) Transfer(ctx context.Context, caller, from, to string, shares math.Int) *types.Error {
	return s.ledger.Transfer(ctx, caller, from, to, shares)
}

func (s *Service) ApproveOperator(owner, operator string) {
	s.ledger.ApproveOperator(owner, operator)
}

func (s *Service) RevokeOperator(owner, operator string) {
	s.ledger.RevokeOperator(owner, operator)
}

func (s *Service) Balance(ctx context.Context, accountID string) (math.Int, *types.Error) {
	return s.ledger.Balance(ctx, accountID)
}

func (s *Service) AvailableLiquidity(ctx context.Context) (math.Int, *types.Error) {
	return s.ledger.AvailableLiquidity(ctx)
}

// Oracle operations

func (s *Service) ReportPrice(ctx context.Context, reporter string, value math.LegacyDec, reportedAt time.Time) *types.Error {
	return s.oracle.Report(ctx, reporter, value, reportedAt)
}

func (s *Service) LatestPrice(ctx context.Context) (math.LegacyDec, time.Time, *types.Error) {
	return s.oracle.Latest(ctx)
}

// Hook administration

func (s *Service) RegisterHook(ctx context.Context, manager string, hook hooks.Hook, order int) *types.Error {
	return s.pipeline.Register(ctx, manager, hook, order)
}

func (s *Service) UnregisterHook(ctx context.Context, manager, hookID string) *types.Error {
	return s.pipeline.Unregister(ctx, manager, hookID)
}

// Access control

func (s *Service) GrantRole(granter, grantee string, role registry.Role) *types.Error {
	return s.registry.Grant(granter, grantee, role)
}

// Redemption queue operations

func (s *Service) SubmitRedemption(ctx context.Context, msg redemption.RequestMessage, signatureHex string) (string, *types.Error) {
	return s.queue.Submit(ctx, msg, signatureHex)
}

func (s *Service) ApproveRedemption(ctx context.Context, caller, requestID string, priority int32, notes string) *types.Error {
	return s.queue.Approve(ctx, caller, requestID, priority, notes)
}

func (s *Service) RejectRedemption(ctx context.Context, caller, requestID, reason string) *types.Error {
	return s.queue.Reject(ctx, caller, requestID, reason)
}

func (s *Service) CancelRedemption(ctx context.Context, caller, requestID string) *types.Error {
	return s.queue.Cancel(ctx, caller, requestID)
}

func (s *Service) SettleRedemptions(ctx context.Context, caller string, requestIDs []string) ([]redemption.SettlementOutcome, *types.Error) {
	return s.queue.SettleBatch(ctx, caller, requestIDs)
}
