package infra

import (
	"context"
	"errors"

	"bank-transfer/accounts/domain"

	"go.uber.org/zap"
)

// MultiNotifier entrega a mesma notificação a vários destinos.
// Falha em um destino não impede os demais.
type MultiNotifier []domain.Notifier

func (m MultiNotifier) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, next := range m {
		if err := domain.SafeNotify(ctx, next, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier escreve as notificações no log. Faz o papel do envio de e-mail
// em ambientes sem destino externo.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.Info(n.Message,
		zap.String("transferId", n.TransferID),
		zap.String("accountId", n.AccountID),
		zap.String("counterpartyId", n.CounterpartyID),
		zap.String("direction", string(n.Direction)),
		zap.String("amount", n.Amount.String()),
		zap.String("balance", n.Balance.String()),
	)
	return nil
}
