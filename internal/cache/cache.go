// Package cache provee un cache chico de bytes con TTL, multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
package cache

import "time"

// Cache define las operaciones mínimas de cache.
type Cache interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
