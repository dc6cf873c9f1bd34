package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"bank-transfer/accounts/application"
	"bank-transfer/accounts/domain"
	"bank-transfer/accounts/infra"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type simArgs struct {
	accounts    int
	workers     int
	transfers   int
	initial     string
	amount      string
	lockTimeout time.Duration
	verbose     bool
}

type simReport struct {
	ok, insufficient, timeouts int64

	balances      []domain.Account
	total         decimal.Decimal
	expected      decimal.Decimal
	notifications int64
	elapsed       time.Duration
}

func simulate(ctx context.Context, a simArgs, logger *zap.Logger) (simReport, error) {
	if a.accounts < 2 {
		return simReport{}, errors.New("need at least 2 accounts")
	}
	if a.workers <= 0 || a.transfers < 0 {
		return simReport{}, errors.New("workers must be > 0 and transfers >= 0")
	}
	initial, err := decimal.NewFromString(a.initial)
	if err != nil {
		return simReport{}, fmt.Errorf("invalid initial balance: %w", err)
	}
	amount, err := decimal.NewFromString(a.amount)
	if err != nil {
		return simReport{}, fmt.Errorf("invalid amount: %w", err)
	}

	store := infra.NewMemoryAccountStore()
	counter := infra.NewMemoryNotifier()
	var notifier domain.Notifier = counter
	if a.verbose {
		notifier = infra.MultiNotifier{counter, infra.LogNotifier{Logger: logger}}
	}

	svc := &application.TransferService{
		Store:       store,
		Locks:       infra.NewLockRegistry(),
		Notifier:    notifier,
		Logger:      logger,
		LockTimeout: a.lockTimeout,
	}

	ids := make([]string, a.accounts)
	for i := range ids {
		ids[i] = fmt.Sprintf("acc-%03d", i)
		if _, err := svc.CreateAccount(ctx, ids[i], initial); err != nil {
			return simReport{}, err
		}
	}

	var rep simReport
	var wg sync.WaitGroup
	var (
		errOnce    sync.Once
		unexpected error
	)
	start := time.Now()

	for w := 0; w < a.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < a.transfers; i++ {
				if ctx.Err() != nil {
					return
				}
				from := rand.IntN(len(ids))
				to := rand.IntN(len(ids) - 1)
				if to >= from {
					to++
				}

				_, err := svc.Transfer(ctx, ids[from], ids[to], amount)
				switch {
				case err == nil:
					atomic.AddInt64(&rep.ok, 1)
				case errors.Is(err, domain.ErrInsufficientFunds):
					atomic.AddInt64(&rep.insufficient, 1)
				case errors.Is(err, domain.ErrLockTimeout):
					atomic.AddInt64(&rep.timeouts, 1)
				default:
					errOnce.Do(func() { unexpected = err })
					return
				}
			}
		}()
	}
	wg.Wait()
	rep.elapsed = time.Since(start)

	if unexpected != nil {
		return rep, unexpected
	}

	rep.total = decimal.Zero
	for _, id := range store.IDs() {
		acc, err := svc.GetAccount(context.Background(), id)
		if err != nil {
			return rep, err
		}
		rep.balances = append(rep.balances, acc)
		rep.total = rep.total.Add(acc.Balance)
	}
	rep.expected = initial.Mul(decimal.NewFromInt(int64(a.accounts)))

	t := counter.Total()
	rep.notifications = t.Debits + t.Credits
	return rep, nil
}
