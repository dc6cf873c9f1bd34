package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Account representa uma conta em memória.
//
// Não é thread-safe: quem altera o saldo precisa estar segurando o lock da
// conta (ver AccountLocks).
type Account struct {
	ID      string          `json:"accountId"`
	Balance decimal.Decimal `json:"balance"`
}

func NewAccount(id string, balance decimal.Decimal) (*Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidAccountID
	}
	if balance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance %s is negative", ErrInvalidAmount, balance)
	}
	return &Account{ID: id, Balance: balance}, nil
}

// Deposit soma amount ao saldo. amount deve ser positivo.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Withdraw subtrai amount do saldo.
// Se o saldo não cobre o valor, nada é alterado.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	if a.Balance.LessThan(amount) {
		return fmt.Errorf("%w: account %s has %s, needs %s", ErrInsufficientFunds, a.ID, a.Balance, amount)
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Snapshot devolve uma cópia por valor, segura para sair do lock.
func (a *Account) Snapshot() Account {
	return Account{ID: a.ID, Balance: a.Balance}
}
