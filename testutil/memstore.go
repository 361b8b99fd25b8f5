package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/math"

	"github.com/fundlabs-io/vault-engine/internal/db"
	"github.com/fundlabs-io/vault-engine/internal/db/model"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

// MemStore is an in-memory stand-in for the mongo-backed Database with the
// same error contract, so unit tests can exercise the engine packages
// without a container.
type MemStore struct {
	mu sync.Mutex

	assetID   string
	supply    math.Int
	liquidity math.Int
	balances  map[string]math.Int

	price *db.PriceSnapshot

	requests map[string]*model.RedemptionRequestDocument
	nonces   map[string]struct{}
	queueSeq int64

	hookRegs map[string]*model.HookRegistrationDocument
}

func NewMemStore(assetID string) *MemStore {
	return &MemStore{
		assetID:  assetID,
		supply:   math.ZeroInt(),
		liquidity: math.ZeroInt(),
		balances: make(map[string]math.Int),
		requests: make(map[string]*model.RedemptionRequestDocument),
		nonces:   make(map[string]struct{}),
		hookRegs: make(map[string]*model.HookRegistrationDocument),
	}
}

// SeedLiquidity credits available liquidity directly, standing in for
// deposits when a test only cares about the payout side.
func (s *MemStore) SeedLiquidity(amount math.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liquidity = s.liquidity.Add(amount)
}

func (s *MemStore) GetVaultState(ctx context.Context) (*db.VaultState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &db.VaultState{
		AssetID:            s.assetID,
		ShareSupply:        s.supply,
		AvailableLiquidity: s.liquidity,
	}, nil
}

func (s *MemStore) GetBalance(ctx context.Context, accountID string) (math.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if balance, ok := s.balances[accountID]; ok {
		return balance, nil
	}
	return math.ZeroInt(), nil
}

func (s *MemStore) ApplyLedgerMutation(ctx context.Context, mut db.LedgerMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newSupply := s.supply.Add(mut.SupplyDelta)
	newLiquidity := s.liquidity.Add(mut.LiquidityDelta)
	if newSupply.IsNegative() {
		return fmt.Errorf("mutation would drive share supply negative")
	}
	if newLiquidity.IsNegative() {
		return fmt.Errorf("mutation would drive available liquidity negative")
	}

	newBalances := make(map[string]math.Int, 2)
	for _, change := range []struct {
		account string
		delta   math.Int
	}{
		{mut.Account, mut.SharesDelta},
		{mut.CounterAccount, mut.CounterSharesDelta},
	} {
		if change.account == "" || change.delta.IsZero() {
			continue
		}
		balance, ok := s.balances[change.account]
		if !ok {
			balance = math.ZeroInt()
		}
		newBalance := balance.Add(change.delta)
		if newBalance.IsNegative() {
			return fmt.Errorf("mutation would drive balance of %s negative", change.account)
		}
		newBalances[change.account] = newBalance
	}

	for account, balance := range newBalances {
		s.balances[account] = balance
	}
	s.supply = newSupply
	s.liquidity = newLiquidity
	return nil
}

func (s *MemStore) GetPriceSnapshot(ctx context.Context) (*db.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.price == nil {
		return nil, &db.NotFoundError{Key: model.PriceSnapshotID, Message: "no price snapshot"}
	}
	snapshot := *s.price
	return &snapshot, nil
}

func (s *MemStore) SavePriceSnapshot(ctx context.Context, value math.LegacyDec, reportedAt time.Time, reporter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = &db.PriceSnapshot{Value: value, ReportedAt: reportedAt, Reporter: reporter}
	return nil
}

func (s *MemStore) SaveRedemptionRequest(ctx context.Context, requestDoc *model.RedemptionRequestDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[requestDoc.ID]; ok {
		return &db.DuplicateKeyError{Key: requestDoc.ID, Message: "redemption request already exists"}
	}
	clone := *requestDoc
	s.requests[requestDoc.ID] = &clone
	return nil
}

func (s *MemStore) GetRedemptionRequest(ctx context.Context, requestID string) (*model.RedemptionRequestDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requestDoc, ok := s.requests[requestID]
	if !ok {
		return nil, &db.NotFoundError{Key: requestID, Message: "redemption request not found"}
	}
	clone := *requestDoc
	return &clone, nil
}

func (s *MemStore) UpdateRedemptionState(
	ctx context.Context,
	requestID string,
	qualifiedPreviousStates []types.RedemptionState,
	newState types.RedemptionState,
	setFields map[string]any,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	requestDoc, ok := s.requests[requestID]
	if !ok {
		return &db.NotFoundError{Key: requestID, Message: "redemption request not found"}
	}
	qualified := false
	for _, state := range qualifiedPreviousStates {
		if requestDoc.State == state {
			qualified = true
			break
		}
	}
	if !qualified {
		return &db.NotFoundError{Key: requestID, Message: "current state is not qualified states"}
	}

	requestDoc.State = newState
	requestDoc.UpdatedAt = time.Now().UTC()
	for field, value := range setFields {
		switch field {
		case "priority":
			requestDoc.Priority = value.(int32)
		case "queue_position":
			requestDoc.QueuePosition = value.(int64)
		case "notes":
			requestDoc.Notes = value.(string)
		case "reason":
			requestDoc.Reason = value.(string)
		case "assets_paid":
			requestDoc.AssetsPaid = value.(string)
		}
	}
	return nil
}

func (s *MemStore) GetRedemptionRequestsByIDs(
	ctx context.Context, requestIDs []string,
) ([]model.RedemptionRequestDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []model.RedemptionRequestDocument
	for _, requestID := range requestIDs {
		if requestDoc, ok := s.requests[requestID]; ok {
			docs = append(docs, *requestDoc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Priority != docs[j].Priority {
			return docs[i].Priority > docs[j].Priority
		}
		return docs[i].QueuePosition < docs[j].QueuePosition
	})
	return docs, nil
}

func (s *MemStore) NextQueuePosition(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueSeq++
	return s.queueSeq, nil
}

func (s *MemStore) ConsumeNonce(ctx context.Context, owner string, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%d", owner, nonce)
	if _, ok := s.nonces[key]; ok {
		return &db.DuplicateKeyError{Key: key, Message: "nonce already consumed for owner"}
	}
	s.nonces[key] = struct{}{}
	return nil
}

func (s *MemStore) SaveHookRegistration(ctx context.Context, registrationDoc *model.HookRegistrationDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *registrationDoc
	s.hookRegs[registrationDoc.HookID] = &clone
	return nil
}

func (s *MemStore) DeleteHookRegistration(ctx context.Context, hookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hookRegs[hookID]; !ok {
		return &db.NotFoundError{Key: hookID, Message: "hook registration not found"}
	}
	delete(s.hookRegs, hookID)
	return nil
}
