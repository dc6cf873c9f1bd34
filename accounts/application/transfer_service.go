package application

import (
	"context"
	"fmt"
	"time"

	"bank-transfer/accounts/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferService concentra a regra de movimentação de saldo, sem saber nada
// sobre HTTP.
//
// Cada conta tem seu próprio lock (Locks). Transferências que não
// compartilham conta rodam em paralelo; as que compartilham são serializadas
// pelo lock da conta em comum.
type TransferService struct {
	Store    domain.AccountStore
	Locks    domain.AccountLocks
	Notifier domain.Notifier
	Logger   *zap.Logger

	// LockTimeout limita a espera pelos locks.
	// - Se `LockTimeout <= 0`, espera indefinidamente (até ctx cancelar).
	// - Se `LockTimeout > 0`, espera até o timeout e retorna ErrLockTimeout.
	LockTimeout time.Duration

	// Now e NewID podem ser trocados em testes.
	Now   func() time.Time
	NewID func() string
}

func (s *TransferService) CreateAccount(_ context.Context, id string, balance decimal.Decimal) (domain.Account, error) {
	acc, err := domain.NewAccount(id, balance)
	if err != nil {
		return domain.Account{}, err
	}
	// depois do Create a conta já é visível e só pode ser lida sob o lock dela
	snap := acc.Snapshot()
	if err := s.Store.Create(acc); err != nil {
		return domain.Account{}, err
	}
	s.logger().Debug("account created", zap.String("accountId", id), zap.String("balance", balance.String()))
	return snap, nil
}

// GetAccount devolve uma cópia da conta lida sob o lock dela, para nunca
// observar um saldo no meio de uma escrita.
func (s *TransferService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var out domain.Account
	err := s.withAccount(ctx, id, func(acc *domain.Account) error {
		out = acc.Snapshot()
		return nil
	})
	return out, err
}

func (s *TransferService) Deposit(ctx context.Context, id string, amount decimal.Decimal) (domain.Account, error) {
	if !amount.IsPositive() {
		return domain.Account{}, fmt.Errorf("%w: got %s", domain.ErrInvalidAmount, amount)
	}
	var out domain.Account
	err := s.withAccount(ctx, id, func(acc *domain.Account) error {
		if err := acc.Deposit(amount); err != nil {
			return err
		}
		out = acc.Snapshot()
		return nil
	})
	return out, err
}

func (s *TransferService) Withdraw(ctx context.Context, id string, amount decimal.Decimal) (domain.Account, error) {
	if !amount.IsPositive() {
		return domain.Account{}, fmt.Errorf("%w: got %s", domain.ErrInvalidAmount, amount)
	}
	var out domain.Account
	err := s.withAccount(ctx, id, func(acc *domain.Account) error {
		if err := acc.Withdraw(amount); err != nil {
			return err
		}
		out = acc.Snapshot()
		return nil
	})
	return out, err
}

// Reset remove todas as contas. Só para testes/ambiente local: não chamar com
// operações em andamento.
func (s *TransferService) Reset() {
	s.Store.ClearAll()
}

// Transfer move amount de debtorID para creditorID.
//
// Os dois locks são sempre adquiridos na mesma ordem global (id menor
// primeiro), então duas transferências que compartilham conta nunca formam
// ciclo de espera. Existência e saldo são revalidados com os locks seguros.
// Qualquer erro retorna sem alterar nenhum saldo e sem notificar.
func (s *TransferService) Transfer(ctx context.Context, debtorID, creditorID string, amount decimal.Decimal) (domain.TransferResult, error) {
	if !amount.IsPositive() {
		return domain.TransferResult{}, fmt.Errorf("%w: got %s", domain.ErrInvalidAmount, amount)
	}
	if debtorID == creditorID {
		return domain.TransferResult{}, fmt.Errorf("%w: %s", domain.ErrSelfTransfer, debtorID)
	}
	// falha rápida: não registra lock para id que não existe
	for _, id := range []string{debtorID, creditorID} {
		if _, ok := s.Store.Get(id); !ok {
			return domain.TransferResult{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
	}

	firstID, secondID := debtorID, creditorID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first := s.Locks.Get(firstID)
	second := s.Locks.Get(secondID)

	lockCtx, cancel := s.lockContext(ctx)
	defer cancel()

	if err := first.Lock(lockCtx); err != nil {
		return domain.TransferResult{}, err
	}
	res, err := func() (domain.TransferResult, error) {
		defer first.Unlock()

		if err := second.Lock(lockCtx); err != nil {
			return domain.TransferResult{}, err
		}
		defer second.Unlock()

		return s.applyTransfer(debtorID, creditorID, amount)
	}()
	if err != nil {
		s.logger().Debug("transfer rejected",
			zap.String("accountFrom", debtorID),
			zap.String("accountTo", creditorID),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return domain.TransferResult{}, err
	}

	// locks já liberados: notificação lenta não segura outras transferências
	s.notifyParties(ctx, res)
	return res, nil
}

// applyTransfer roda com os dois locks seguros.
func (s *TransferService) applyTransfer(debtorID, creditorID string, amount decimal.Decimal) (domain.TransferResult, error) {
	debtor, ok := s.Store.Get(debtorID)
	if !ok {
		return domain.TransferResult{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, debtorID)
	}
	creditor, ok := s.Store.Get(creditorID)
	if !ok {
		return domain.TransferResult{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, creditorID)
	}

	if err := debtor.Withdraw(amount); err != nil {
		return domain.TransferResult{}, err
	}
	// amount já validado como positivo: Deposit não falha aqui
	_ = creditor.Deposit(amount)

	return domain.TransferResult{
		ID:              s.newID(),
		DebtorID:        debtorID,
		CreditorID:      creditorID,
		Amount:          amount,
		DebtorBalance:   debtor.Balance,
		CreditorBalance: creditor.Balance,
		At:              s.now(),
	}, nil
}

func (s *TransferService) notifyParties(ctx context.Context, res domain.TransferResult) {
	if s.Notifier == nil {
		return
	}

	events := []domain.Notification{
		{
			TransferID:     res.ID,
			AccountID:      res.DebtorID,
			CounterpartyID: res.CreditorID,
			Direction:      domain.Debit,
			Amount:         res.Amount,
			Balance:        res.DebtorBalance,
			Message:        fmt.Sprintf("%s debited with %s, transferred to %s", res.DebtorID, res.Amount, res.CreditorID),
			At:             res.At,
		},
		{
			TransferID:     res.ID,
			AccountID:      res.CreditorID,
			CounterpartyID: res.DebtorID,
			Direction:      domain.Credit,
			Amount:         res.Amount,
			Balance:        res.CreditorBalance,
			Message:        fmt.Sprintf("%s credited with %s, received from %s", res.CreditorID, res.Amount, res.DebtorID),
			At:             res.At,
		},
	}

	for _, ev := range events {
		if err := domain.SafeNotify(ctx, s.Notifier, ev); err != nil {
			s.logger().Warn("transfer notification failed",
				zap.String("transferId", ev.TransferID),
				zap.String("accountId", ev.AccountID),
				zap.Error(err),
			)
		}
	}
}

// withAccount roda fn com o lock de uma única conta.
func (s *TransferService) withAccount(ctx context.Context, id string, fn func(*domain.Account) error) error {
	if _, ok := s.Store.Get(id); !ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	lockCtx, cancel := s.lockContext(ctx)
	defer cancel()

	l := s.Locks.Get(id)
	if err := l.Lock(lockCtx); err != nil {
		return err
	}
	defer l.Unlock()

	acc, ok := s.Store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return fn(acc)
}

func (s *TransferService) lockContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.LockTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.LockTimeout)
}

func (s *TransferService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *TransferService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *TransferService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
