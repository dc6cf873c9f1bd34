package infra

import (
	"sync"

	"bank-transfer/accounts/domain"
)

// LockRegistry mantém um lock por id de conta, criado na primeira vez que o id
// é pedido.
//
// Get é o único ponto de criação e roda sob um mutex global, então acessos
// concorrentes ao mesmo id nunca geram dois locks diferentes. Locks não são
// removidos: vivem enquanto o processo viver.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*chanLock
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*chanLock)}
}

// Get implementa domain.AccountLocks.
func (r *LockRegistry) Get(id string) domain.AccountLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.locks[id]; ok {
		return l
	}

	l := newChanLock()
	r.locks[id] = l
	return l
}

func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
