package infra

import (
	"context"
	"fmt"

	"bank-transfer/accounts/domain"
)

// chanLock é um semáforo de uma vaga: funciona como mutex, mas a espera
// respeita o ctx (deadline/cancelamento).
type chanLock struct {
	sem chan struct{}
}

func newChanLock() *chanLock {
	return &chanLock{sem: make(chan struct{}, 1)}
}

func (l *chanLock) Lock(ctx context.Context) error {
	// caminho rápido: evita que um ctx já encerrado perca para uma vaga livre
	select {
	case l.sem <- struct{}{}:
		return nil
	default:
	}

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, ctx.Err())
	}
}

func (l *chanLock) Unlock() {
	select {
	case <-l.sem:
	default:
		panic("infra: unlock of unlocked account lock")
	}
}
