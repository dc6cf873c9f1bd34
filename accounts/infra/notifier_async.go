package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"bank-transfer/accounts/domain"

	"go.uber.org/zap"
)

var (
	ErrNotificationDropped   = errors.New("notification queue full, dropped")
	ErrNotificationThrottled = errors.New("notification rate exceeded, dropped")
	ErrNotifierClosed        = errors.New("notifier closed")
)

// AsyncNotifier desacopla quem notifica de um destino possivelmente lento.
//
// Notify só enfileira e nunca bloqueia: com a fila cheia a notificação é
// descartada (best-effort). Workers entregam ao próximo Notifier com timeout
// por entrega; erros e panics do destino viram log.
type AsyncNotifier struct {
	next   domain.Notifier
	logger *zap.Logger

	queue   chan domain.Notification
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type AsyncOption func(*AsyncNotifier)

func WithQueueSize(n int) AsyncOption {
	return func(a *AsyncNotifier) {
		if n > 0 {
			a.queue = make(chan domain.Notification, n)
		}
	}
}

func WithWorkers(n int) AsyncOption {
	return func(a *AsyncNotifier) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithDeliveryTimeout(d time.Duration) AsyncOption {
	return func(a *AsyncNotifier) { a.timeout = d }
}

func NewAsyncNotifier(next domain.Notifier, logger *zap.Logger, opts ...AsyncOption) *AsyncNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AsyncNotifier{
		next:    next,
		logger:  logger,
		queue:   make(chan domain.Notification, 1024),
		workers: 1,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}

	for i := 0; i < a.workers; i++ {
		a.wg.Add(1)
		go a.run()
	}
	return a
}

func (a *AsyncNotifier) Notify(_ context.Context, n domain.Notification) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrNotifierClosed
	}

	select {
	case a.queue <- n:
		return nil
	default:
		a.logger.Warn("notification dropped",
			zap.String("transferId", n.TransferID),
			zap.String("accountId", n.AccountID),
			zap.Int("queueSize", cap(a.queue)),
		)
		return ErrNotificationDropped
	}
}

// Close para de aceitar notificações e espera os workers esvaziarem a fila.
func (a *AsyncNotifier) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *AsyncNotifier) run() {
	defer a.wg.Done()
	for n := range a.queue {
		a.deliver(n)
	}
}

func (a *AsyncNotifier) deliver(n domain.Notification) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := domain.SafeNotify(ctx, a.next, n); err != nil {
		a.logger.Warn("notification delivery failed",
			zap.String("transferId", n.TransferID),
			zap.String("accountId", n.AccountID),
			zap.Error(err),
		)
	}
}
