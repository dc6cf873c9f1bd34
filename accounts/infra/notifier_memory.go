package infra

import (
	"context"
	"sync"

	"bank-transfer/accounts/domain"
)

type Counters struct {
	Debits  int64
	Credits int64
}

// MemoryNotifier é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Guarda contadores por conta e, opcionalmente, os próprios eventos.
// Não faz expiração e não é indicada para produção.
type MemoryNotifier struct {
	mu        sync.Mutex
	total     Counters
	byAccount map[string]Counters
	events    []domain.Notification

	keepEvents bool
}

type MemoryNotifierOption func(*MemoryNotifier)

func WithKeepEvents(keep bool) MemoryNotifierOption {
	return func(n *MemoryNotifier) { n.keepEvents = keep }
}

func NewMemoryNotifier(opts ...MemoryNotifierOption) *MemoryNotifier {
	n := &MemoryNotifier{byAccount: make(map[string]Counters)}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (m *MemoryNotifier) Notify(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.byAccount[n.AccountID]
	if n.Direction == domain.Debit {
		m.total.Debits++
		c.Debits++
	} else {
		m.total.Credits++
		c.Credits++
	}
	m.byAccount[n.AccountID] = c

	if m.keepEvents {
		m.events = append(m.events, n)
	}
	return nil
}

func (m *MemoryNotifier) Total() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

func (m *MemoryNotifier) ByAccount() map[string]Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Counters, len(m.byAccount))
	for k, v := range m.byAccount {
		out[k] = v
	}
	return out
}

func (m *MemoryNotifier) Events() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Notification, len(m.events))
	copy(out, m.events)
	return out
}
