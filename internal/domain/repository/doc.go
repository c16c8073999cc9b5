// Package repository define las entidades del dominio y las interfaces de
// persistencia de mailplane. Los adapters concretos viven en internal/store.
//
// El único primitivo de concurrencia del sistema es el insert atómico bajo
// unique constraint del IdempotencyRepository: todo lo demás es append-only
// o read-only entre requests.
package repository
