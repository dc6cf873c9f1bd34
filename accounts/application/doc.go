// Package application contém os casos de uso de contas: criação, consulta,
// depósito, saque e transferência entre contas.
//
// Ele depende apenas do pacote domain e não conhece net/http nem Redis.
// Ex.: TransferService.Transfer(ctx, from, to, amount) aplica a transferência
// sob os locks das duas contas e notifica as partes depois de liberar os locks.
package application
