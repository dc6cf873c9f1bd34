// Package domain define a entidade Account, os erros de negócio e os contratos
// (store, locks por conta, notificação) usados pela camada application.
//
// Este pacote não depende de net/http, Redis nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar a regra de
// transferência dos detalhes de infraestrutura.
package domain
