package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Notification é o evento entregue a cada parte de uma transferência concluída.
//
// Message é texto livre; consumidores não devem depender do formato.
type Notification struct {
	TransferID     string          `json:"transferId"`
	AccountID      string          `json:"accountId"`
	CounterpartyID string          `json:"counterpartyId"`
	Direction      Direction       `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	Balance        decimal.Decimal `json:"balance"`
	Message        string          `json:"message"`
	At             time.Time       `json:"at"`
}

// Notifier recebe eventos pós-transferência.
//
// É best-effort: quem chama trata erro (e panic) como log, nunca desfaz a
// transferência por causa dele.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// SafeNotify chama n.Notify convertendo panic em erro. Notifier nil é no-op.
func SafeNotify(ctx context.Context, n Notifier, ev Notification) (err error) {
	if n == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return n.Notify(ctx, ev)
}

// TransferResult é o retorno de uma transferência aplicada.
type TransferResult struct {
	ID              string          `json:"id"`
	DebtorID        string          `json:"accountFrom"`
	CreditorID      string          `json:"accountTo"`
	Amount          decimal.Decimal `json:"amount"`
	DebtorBalance   decimal.Decimal `json:"accountFromBalance"`
	CreditorBalance decimal.Decimal `json:"accountToBalance"`
	At              time.Time       `json:"at"`
}
