package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bank-transfer/accounts/domain"
	"bank-transfer/accounts/infra"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type funcNotifier func(ctx context.Context, n domain.Notification) error

func (f funcNotifier) Notify(ctx context.Context, n domain.Notification) error { return f(ctx, n) }

type fixture struct {
	svc      *TransferService
	store    *infra.MemoryAccountStore
	locks    *infra.LockRegistry
	notifier *infra.MemoryNotifier
}

func newFixture(t *testing.T, balances map[string]int64) fixture {
	t.Helper()

	f := fixture{
		store:    infra.NewMemoryAccountStore(),
		locks:    infra.NewLockRegistry(),
		notifier: infra.NewMemoryNotifier(infra.WithKeepEvents(true)),
	}
	f.svc = &TransferService{Store: f.store, Locks: f.locks, Notifier: f.notifier}

	for id, bal := range balances {
		_, err := f.svc.CreateAccount(context.Background(), id, decimal.NewFromInt(bal))
		require.NoError(t, err)
	}
	return f
}

func (f fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := f.svc.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestTransferService_Transfer_MovesFunds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.CreateAccount(ctx, "Id-123456", dec("50000.00"))
	require.NoError(t, err)
	_, err = f.svc.CreateAccount(ctx, "Id-78905", dec("10000.00"))
	require.NoError(t, err)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f.svc.Now = func() time.Time { return at }
	f.svc.NewID = func() string { return "tr-1" }

	res, err := f.svc.Transfer(ctx, "Id-123456", "Id-78905", dec("25000.00"))
	require.NoError(t, err)

	assert.Equal(t, "tr-1", res.ID)
	assert.Equal(t, at, res.At)
	assert.True(t, res.DebtorBalance.Equal(dec("25000")))
	assert.True(t, res.CreditorBalance.Equal(dec("35000")))

	assert.True(t, f.balance(t, "Id-123456").Equal(dec("25000")))
	assert.True(t, f.balance(t, "Id-78905").Equal(dec("35000")))

	// cada parte é notificada exatamente uma vez
	events := f.notifier.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "tr-1", events[0].TransferID)
	assert.Equal(t, "Id-123456", events[0].AccountID)
	assert.Equal(t, "Id-78905", events[0].CounterpartyID)
	assert.Equal(t, domain.Debit, events[0].Direction)
	assert.True(t, events[0].Amount.Equal(dec("25000")))
	assert.True(t, events[0].Balance.Equal(dec("25000")))
	assert.Equal(t, at, events[0].At)
	assert.Equal(t, "Id-78905", events[1].AccountID)
	assert.Equal(t, domain.Credit, events[1].Direction)
	assert.NotEmpty(t, events[1].Message)
}

func TestTransferService_Transfer_FailuresLeaveBalancesUntouched(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		amount   decimal.Decimal
		wantErr  error
	}{
		{name: "zero amount", from: "A", to: "B", amount: decimal.Zero, wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", from: "A", to: "B", amount: dec("-10"), wantErr: domain.ErrInvalidAmount},
		{name: "self transfer", from: "A", to: "A", amount: dec("10"), wantErr: domain.ErrSelfTransfer},
		{name: "missing debtor", from: "X", to: "B", amount: dec("10"), wantErr: domain.ErrAccountNotFound},
		{name: "missing creditor", from: "A", to: "X", amount: dec("10"), wantErr: domain.ErrAccountNotFound},
		{name: "insufficient funds", from: "A", to: "B", amount: dec("80000"), wantErr: domain.ErrInsufficientFunds},
		{name: "one cent short", from: "A", to: "B", amount: dec("1000.01"), wantErr: domain.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]int64{"A": 1000, "B": 1000})

			_, err := f.svc.Transfer(context.Background(), tt.from, tt.to, tt.amount)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			assert.True(t, f.balance(t, "A").Equal(dec("1000")))
			assert.True(t, f.balance(t, "B").Equal(dec("1000")))
			assert.Equal(t, infra.Counters{}, f.notifier.Total(), "no notification on failure")
		})
	}
}

func TestTransferService_Transfer_UnknownAccountDoesNotRegisterLock(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 10})

	_, err := f.svc.Transfer(context.Background(), "A", "ghost", dec("1"))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, 0, f.locks.Len())
}

func TestTransferService_Transfer_ExactBalanceEmptiesAccount(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 10, "B": 0})

	_, err := f.svc.Transfer(context.Background(), "A", "B", dec("10"))
	require.NoError(t, err)
	assert.True(t, f.balance(t, "A").IsZero())
	assert.True(t, f.balance(t, "B").Equal(dec("10")))
}

func TestTransferService_Transfer_ConcurrentNoLostUpdates(t *testing.T) {
	f := newFixture(t, map[string]int64{"Id-1": 1000, "Id-2": 1000})

	const n = 100
	amount := dec("10")

	var wg sync.WaitGroup
	errs := make(chan error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Transfer(context.Background(), "Id-1", "Id-2", amount)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.True(t, f.balance(t, "Id-1").IsZero(), "got %s", f.balance(t, "Id-1"))
	assert.True(t, f.balance(t, "Id-2").Equal(dec("2000")), "got %s", f.balance(t, "Id-2"))

	byAccount := f.notifier.ByAccount()
	assert.Equal(t, infra.Counters{Debits: n}, byAccount["Id-1"])
	assert.Equal(t, infra.Counters{Credits: n}, byAccount["Id-2"])
}

func TestTransferService_Transfer_OpposingDirectionsDoNotDeadlock(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 1000, "B": 1000})

	const iterations = 1000
	run := func(from, to string, errs chan<- error) {
		for i := 0; i < iterations; i++ {
			_, err := f.svc.Transfer(context.Background(), from, to, dec("1"))
			if err != nil && !errors.Is(err, domain.ErrInsufficientFunds) {
				errs <- err
				return
			}
		}
		errs <- nil
	}

	errs := make(chan error, 2)
	go run("A", "B", errs)
	go run("B", "A", errs)

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatalf("transfers did not finish: possible deadlock")
		}
	}

	total := f.balance(t, "A").Add(f.balance(t, "B"))
	assert.True(t, total.Equal(dec("2000")), "total not conserved: %s", total)
}

func TestTransferService_Transfer_ManyAccountsConserveTotal(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	balances := make(map[string]int64, len(ids))
	for _, id := range ids {
		balances[id] = 500
	}
	f := newFixture(t, balances)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				from := ids[(w+i)%len(ids)]
				to := ids[(w+2*i+1)%len(ids)]
				if from == to {
					continue
				}
				_, err := f.svc.Transfer(context.Background(), from, to, dec("3.33"))
				if err != nil && !errors.Is(err, domain.ErrInsufficientFunds) {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	total := decimal.Zero
	for _, id := range ids {
		bal := f.balance(t, id)
		assert.False(t, bal.IsNegative(), "account %s went negative: %s", id, bal)
		total = total.Add(bal)
	}
	assert.True(t, total.Equal(dec("2500")), "total not conserved: %s", total)
}

func TestTransferService_Transfer_DisjointPairsDoNotBlock(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 1000, "B": 1000, "C": 1000, "D": 1000})

	// segura A e B como se houvesse uma transferência longa em andamento
	ctx := context.Background()
	require.NoError(t, f.locks.Get("A").Lock(ctx))
	require.NoError(t, f.locks.Get("B").Lock(ctx))
	defer f.locks.Get("A").Unlock()
	defer f.locks.Get("B").Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Transfer(ctx, "C", "D", dec("200"))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("C->D blocked by locks on A/B")
	}

	// C e D estão livres, pode ler direto
	c, _ := f.store.Get("C")
	d, _ := f.store.Get("D")
	assert.True(t, c.Balance.Equal(dec("800")))
	assert.True(t, d.Balance.Equal(dec("1200")))
}

func TestTransferService_Transfer_LockTimeout(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 1000, "B": 1000})
	f.svc.LockTimeout = 20 * time.Millisecond

	// B é o segundo lock na ordem: timeout com o primeiro já adquirido
	require.NoError(t, f.locks.Get("B").Lock(context.Background()))

	_, err := f.svc.Transfer(context.Background(), "A", "B", dec("10"))
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.False(t, errors.Is(err, domain.ErrInsufficientFunds))

	f.locks.Get("B").Unlock()

	// A foi liberado no caminho de erro
	assert.True(t, f.balance(t, "A").Equal(dec("1000")))
	assert.True(t, f.balance(t, "B").Equal(dec("1000")))
	assert.Equal(t, infra.Counters{}, f.notifier.Total())

	_, err = f.svc.Transfer(context.Background(), "A", "B", dec("10"))
	require.NoError(t, err)
}

func TestTransferService_Transfer_CanceledContext(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 1000, "B": 1000})
	require.NoError(t, f.locks.Get("A").Lock(context.Background()))
	defer f.locks.Get("A").Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Transfer(ctx, "A", "B", dec("10"))
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransferService_Transfer_NotifierFailureDoesNotFailTransfer(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	tests := []struct {
		name     string
		notifier domain.Notifier
	}{
		{
			name: "error",
			notifier: funcNotifier(func(context.Context, domain.Notification) error {
				return fmt.Errorf("smtp down")
			}),
		},
		{
			name: "panic",
			notifier: funcNotifier(func(context.Context, domain.Notification) error {
				panic("boom")
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]int64{"A": 100, "B": 0})
			f.svc.Notifier = tt.notifier
			f.svc.Logger = zap.New(core)
			before := logs.Len()

			_, err := f.svc.Transfer(context.Background(), "A", "B", dec("40"))
			require.NoError(t, err)

			assert.True(t, f.balance(t, "A").Equal(dec("60")))
			assert.True(t, f.balance(t, "B").Equal(dec("40")))
			assert.Equal(t, 2, logs.Len()-before, "one warning per failed notification")
		})
	}
}

func TestTransferService_Transfer_NotifiesAfterReleasingLocks(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 100, "B": 0})

	var lockErrs []error
	f.svc.Notifier = funcNotifier(func(_ context.Context, n domain.Notification) error {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		l := f.locks.Get(n.AccountID)
		err := l.Lock(ctx)
		if err == nil {
			l.Unlock()
		}
		lockErrs = append(lockErrs, err)
		return nil
	})

	_, err := f.svc.Transfer(context.Background(), "A", "B", dec("1"))
	require.NoError(t, err)
	require.Len(t, lockErrs, 2)
	for _, e := range lockErrs {
		assert.NoError(t, e, "account lock still held during notification")
	}
}

func TestTransferService_CreateAccount_DuplicateKeepsOriginal(t *testing.T) {
	f := newFixture(t, map[string]int64{"Id-123": 1000})

	_, err := f.svc.CreateAccount(context.Background(), "Id-123", dec("5"))
	require.ErrorIs(t, err, domain.ErrDuplicateAccount)
	assert.True(t, f.balance(t, "Id-123").Equal(dec("1000")))
}

func TestTransferService_CreateAccount_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateAccount(context.Background(), "", dec("5"))
	assert.ErrorIs(t, err, domain.ErrInvalidAccountID)

	_, err = f.svc.CreateAccount(context.Background(), "Id-1", dec("-5"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Equal(t, 0, f.store.Len())
}

func TestTransferService_DepositWithdraw(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 100})
	ctx := context.Background()

	acc, err := f.svc.Deposit(ctx, "A", dec("50.5"))
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("150.5")))

	acc, err = f.svc.Withdraw(ctx, "A", dec("0.5"))
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("150")))

	_, err = f.svc.Withdraw(ctx, "A", dec("151"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.svc.Deposit(ctx, "A", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Deposit(ctx, "nope", dec("1"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	assert.True(t, f.balance(t, "A").Equal(dec("150")))
}

func TestTransferService_Reset(t *testing.T) {
	f := newFixture(t, map[string]int64{"A": 100, "B": 0})
	f.svc.Reset()

	_, err := f.svc.GetAccount(context.Background(), "A")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = f.svc.CreateAccount(context.Background(), "A", dec("1"))
	assert.NoError(t, err)
}

// Rodar com -race: o retorno de CreateAccount não pode ler o saldo depois
// que a conta ficou visível para depósitos concorrentes.
func TestTransferService_CreateAccount_ConcurrentDepositOnNewID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("new-%d", i)
		created := make(chan domain.Account, 1)
		var deposited bool

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			acc, err := f.svc.CreateAccount(ctx, id, dec("10"))
			assert.NoError(t, err)
			created <- acc
		}()
		go func() {
			defer wg.Done()
			for {
				_, err := f.svc.Deposit(ctx, id, dec("5"))
				if err == nil {
					deposited = true
					return
				}
				if !errors.Is(err, domain.ErrAccountNotFound) {
					t.Errorf("deposit: %v", err)
					return
				}
			}
		}()
		wg.Wait()

		require.True(t, deposited)
		acc := <-created
		assert.True(t, acc.Balance.Equal(dec("10")), "create returned %s", acc.Balance)
		assert.True(t, f.balance(t, id).Equal(dec("15")))
	}
}
