// Package cache provee el almacén clave/valor de la aplicación con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, go-cache; para desarrollo/testing o despliegues de una sola instancia)
//   - Redis (distribuido, para producción)
//
// Todas las keys se namespacean con el prefijo configurado.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones del almacén.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key. Borrar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Take obtiene y elimina un valor de forma atómica (consumo único).
	// Dos llamadas concurrentes nunca obtienen el mismo valor.
	Take(ctx context.Context, key string) (string, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close() error

	// Driver identifica el backend ("memory" | "redis").
	Driver() string
}

// Config configuración para crear un cliente.
type Config struct {
	Driver          string // "memory" | "redis"
	Addr            string // host:port
	Password        string
	DB              int
	Prefix          string        // Prefijo para todas las keys
	CleanupInterval time.Duration // Solo memory
}

// ErrNotFound se retorna cuando la key no existe.
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un cliente según la configuración.
// Para redis abre una conexión nueva y verifica con PING.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		rdb, err := OpenRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewRedis(rdb, cfg.Prefix), nil
	default:
		return NewMemory(cfg.Prefix, cfg.CleanupInterval), nil
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
