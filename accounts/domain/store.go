package domain

import "context"

// AccountStore é o registro de contas por id.
//
// Garante no máximo uma conta por id. Get nunca bloqueia em locks de
// transferência: o store só protege o próprio mapa.
type AccountStore interface {
	Create(*Account) error
	Get(id string) (*Account, bool)
	// ClearAll é um hook de teste/reset. Não chamar com transferências em voo.
	ClearAll()
}

// AccountLock é o lock exclusivo de uma conta.
//
// Lock bloqueia até conseguir o lock ou até o ctx encerrar (nesse caso
// retorna erro e nada fica adquirido). Unlock deve ser chamado exatamente
// uma vez para cada Lock bem-sucedido.
type AccountLock interface {
	Lock(ctx context.Context) error
	Unlock()
}

// AccountLocks resolve o lock de uma conta, criando sob demanda.
// Para o mesmo id deve sempre devolver a mesma instância.
type AccountLocks interface {
	Get(id string) AccountLock
}
