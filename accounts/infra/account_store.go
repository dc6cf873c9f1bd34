package infra

import (
	"fmt"
	"sort"
	"sync"

	"bank-transfer/accounts/domain"
)

// MemoryAccountStore guarda as contas em um mapa protegido por RWMutex.
//
// O mutex protege só o mapa (inserção/lookup). O saldo de cada conta é
// protegido pelo lock da conta, fora daqui.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]*domain.Account)}
}

// Create implementa domain.AccountStore (test-and-set atômico).
func (s *MemoryAccountStore) Create(acc *domain.Account) error {
	if acc == nil || acc.ID == "" {
		return domain.ErrInvalidAccountID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, acc.ID)
	}
	s.accounts[acc.ID] = acc
	return nil
}

func (s *MemoryAccountStore) Get(id string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	return acc, ok
}

func (s *MemoryAccountStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]*domain.Account)
}

func (s *MemoryAccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// IDs devolve os ids ordenados.
func (s *MemoryAccountStore) IDs() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		out = append(out, id)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}
