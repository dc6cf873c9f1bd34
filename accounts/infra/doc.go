// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryAccountStore: registro de contas em memória
//   - LockRegistry: lock por conta (semáforo de 1 vaga), criado sob demanda
//   - Notifiers: memória, Redis (stream + contadores), assíncrono, com throttle (x/time/rate), log
package infra
