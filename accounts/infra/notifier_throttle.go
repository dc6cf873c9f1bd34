package infra

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bank-transfer/accounts/domain"

	"golang.org/x/time/rate"
)

// ThrottledNotifier limita quantas notificações cada conta recebe, com um
// token-bucket (x/time/rate) por conta. Acima do limite a notificação é
// descartada com ErrNotificationThrottled.
//
// Buckets sem uso há mais de idleTTL são recolhidos por um janitor que nasce
// com o notifier e morre no Close.
type ThrottledNotifier struct {
	next  domain.Notifier
	rps   rate.Limit
	burst int

	buckets sync.Map // accountID -> *bucket

	idleTTL      time.Duration
	cleanupEvery time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	*rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

type ThrottleOption func(*ThrottledNotifier)

func WithIdleTTL(d time.Duration) ThrottleOption {
	return func(t *ThrottledNotifier) { t.idleTTL = d }
}

// WithCleanupEvery define o intervalo do janitor; <= 0 desliga.
func WithCleanupEvery(d time.Duration) ThrottleOption {
	return func(t *ThrottledNotifier) { t.cleanupEvery = d }
}

func NewThrottledNotifier(next domain.Notifier, rps float64, burst int, opts ...ThrottleOption) *ThrottledNotifier {
	t := &ThrottledNotifier{
		next:         next,
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.cleanupEvery > 0 {
		go t.janitor()
	} else {
		close(t.done)
	}
	return t
}

func (t *ThrottledNotifier) Notify(ctx context.Context, n domain.Notification) error {
	if !t.bucketFor(n.AccountID).Allow() {
		return fmt.Errorf("%w: account %s", ErrNotificationThrottled, n.AccountID)
	}
	return domain.SafeNotify(ctx, t.next, n)
}

// Close para o janitor e espera ele sair. Pode ser chamado mais de uma vez.
func (t *ThrottledNotifier) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *ThrottledNotifier) bucketFor(accountID string) *bucket {
	v, ok := t.buckets.Load(accountID)
	if !ok {
		// corrida entre dois primeiros acessos: LoadOrStore fica com um só
		v, _ = t.buckets.LoadOrStore(accountID, &bucket{Limiter: rate.NewLimiter(t.rps, t.burst)})
	}
	b := v.(*bucket)
	b.lastSeen.Store(time.Now().UnixNano())
	return b
}

// sweep remove buckets sem uso desde before.
func (t *ThrottledNotifier) sweep(before time.Time) int {
	cutoff := before.UnixNano()
	removed := 0
	t.buckets.Range(func(k, v any) bool {
		if v.(*bucket).lastSeen.Load() < cutoff {
			if t.buckets.CompareAndDelete(k, v) {
				removed++
			}
		}
		return true
	})
	return removed
}

func (t *ThrottledNotifier) janitor() {
	defer close(t.done)

	tk := time.NewTicker(t.cleanupEvery)
	defer tk.Stop()
	for {
		select {
		case <-t.stop:
			return
		case now := <-tk.C:
			t.sweep(now.Add(-t.idleTTL))
		}
	}
}
