// Package accounts fornece o adapter HTTP (net/http) para contas e transferências.
//
// Visão geral (camadas):
//
//   - domain: entidade Account, erros e contratos (sem dependência de net/http)
//   - application: casos de uso (criar, consultar, depositar, sacar, transferir)
//   - infra: implementações concretas (store em memória, locks por conta, notifiers)
//   - accounts (este pacote): handlers HTTP + validação de payload + tradução de erro para status
//
// Fluxo de uma transferência:
//
//   1) Decodifica e valida o payload
//   2) Chama TransferService.Transfer
//   3) Traduz o erro de domínio para status (400/404/409/422/503)
//   4) Se ok, responde 200 com o TransferResult
//
// Variáveis de ambiente do binário bank-api (cmd/bank-api) controlam o comportamento,
// como LOCK_TIMEOUT, NOTIFY_REDIS_ENABLED e NOTIFY_RATE_RPS.
package accounts
