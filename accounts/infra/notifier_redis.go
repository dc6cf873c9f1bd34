package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bank-transfer/accounts/domain"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publica cada notificação em um stream do Redis (XADD) e
// incrementa contadores por conta, tudo em um único pipeline.
//
// Consumidores (ex: serviço de e-mail) leem o stream com XREADGROUP.
type RedisNotifier struct {
	rdb *redis.Client

	stream string
	prefix string
	// maxLen limita o tamanho do stream (aproximado). 0 = sem limite.
	maxLen int64
	// ttl aplica apenas nos contadores por conta.
	// total é cumulativo e não expira.
	ttl time.Duration
}

type RedisNotifierOption func(*RedisNotifier)

func WithNotifyStream(stream string) RedisNotifierOption {
	return func(n *RedisNotifier) { n.stream = strings.TrimSpace(stream) }
}

func WithNotifyPrefix(prefix string) RedisNotifierOption {
	return func(n *RedisNotifier) { n.prefix = strings.Trim(prefix, ":") }
}

func WithNotifyTTL(d time.Duration) RedisNotifierOption {
	return func(n *RedisNotifier) { n.ttl = d }
}

func WithNotifyMaxLen(max int64) RedisNotifierOption {
	return func(n *RedisNotifier) { n.maxLen = max }
}

func NewRedisNotifier(rdb *redis.Client, opts ...RedisNotifierOption) *RedisNotifier {
	n := &RedisNotifier{
		rdb:    rdb,
		stream: "transfer.notifications",
		prefix: "transfer:notify",
		maxLen: 100000,
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (r *RedisNotifier) Stream() string { return r.stream }

func (r *RedisNotifier) Notify(ctx context.Context, n domain.Notification) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	if n.At.IsZero() {
		n.At = time.Now()
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"account": n.AccountID,
			"event":   payload,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	field := string(n.Direction)

	pipe := r.rdb.Pipeline()
	pipe.XAdd(ctx, args)
	pipe.HIncrBy(ctx, r.prefix+":total", field, 1)

	accountKey := r.prefix + ":account:" + n.AccountID
	pipe.HIncrBy(ctx, accountKey, field, 1)
	if r.ttl > 0 {
		pipe.Expire(ctx, accountKey, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
