package domain

import "errors"

// Erros de negócio. Todos são recuperáveis e devem chegar ao chamador
// (via errors.Is), nunca derrubar o processo.
var (
	ErrDuplicateAccount  = errors.New("account already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAccountID  = errors.New("account id must not be empty")
	ErrInvalidAmount     = errors.New("amount must be > 0")
	ErrSelfTransfer      = errors.New("debtor and creditor are the same account")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLockTimeout indica que não foi possível adquirir o lock da conta
	// dentro do prazo (ctx/timeout). Não é um erro de saldo.
	ErrLockTimeout = errors.New("timed out waiting for account lock")
)
