// Package registry adapts the external role and allow-list collaborators to
// the narrow checks the engine consumes: hasRole, isAllowedHook and
// isAllowedAsset. The full hierarchy bootstrap lives outside this system;
// here the sets are seeded from configuration.
package registry

import (
	"fmt"
	"sync"

	"github.com/fundlabs-io/vault-engine/internal/config"
	"github.com/fundlabs-io/vault-engine/internal/types"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RoleReporter Role = "reporter"
)

func (r Role) String() string {
	return string(r)
}

// grantTable is the explicit "which role may grant which" relation; there is
// no inheritance between roles.
var grantTable = map[Role][]Role{
	RoleAdmin:   {RoleAdmin, RoleManager, RoleOperator, RoleReporter},
	RoleManager: {RoleOperator, RoleReporter},
}

type Service struct {
	mu            sync.RWMutex
	roles         map[string]map[Role]struct{}
	allowedHooks  map[string]struct{}
	allowedAssets map[string]struct{}
}

func New(roles config.RolesConfig, allowlist config.AllowlistConfig) *Service {
	s := &Service{
		roles:         make(map[string]map[Role]struct{}),
		allowedHooks:  make(map[string]struct{}),
		allowedAssets: make(map[string]struct{}),
	}

	seed := map[Role][]string{
		RoleAdmin:    roles.Admins,
		RoleManager:  roles.Managers,
		RoleOperator: roles.Operators,
		RoleReporter: roles.Reporters,
	}
	for role, accounts := range seed {
		for _, account := range accounts {
			s.assign(account, role)
		}
	}

	for _, hookID := range allowlist.Hooks {
		s.allowedHooks[hookID] = struct{}{}
	}
	for _, assetID := range allowlist.Assets {
		s.allowedAssets[assetID] = struct{}{}
	}

	return s
}

func (s *Service) assign(account string, role Role) {
	if s.roles[account] == nil {
		s.roles[account] = make(map[Role]struct{})
	}
	s.roles[account][role] = struct{}{}
}

func (s *Service) HasRole(account string, role Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.roles[account][role]
	return ok
}

// Grant assigns role to grantee if the granter holds a role allowed to grant
// it per the grant table.
func (s *Service) Grant(granter, grantee string, role Role) *types.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for held := range s.roles[granter] {
		for _, grantable := range grantTable[held] {
			if grantable == role {
				s.assign(grantee, role)
				return nil
			}
		}
	}

	return types.NewError(
		types.ErrorAuthorization,
		types.Unauthorized,
		fmt.Errorf("account %s may not grant role %s", granter, role),
	)
}

func (s *Service) IsAllowedHook(hookID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.allowedHooks[hookID]
	return ok
}

func (s *Service) IsAllowedAsset(assetID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.allowedAssets[assetID]
	return ok
}
