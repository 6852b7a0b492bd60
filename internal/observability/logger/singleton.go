package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var instance atomic.Pointer[zap.Logger]

// Init construye el logger del proceso y lo publica también como zap.L().
// Se puede volver a llamar (cmd/atgate lo hace después de leer la config).
func Init(cfg Config) {
	l := build(cfg)
	instance.Store(l)
	zap.ReplaceGlobals(l)
}

// L retorna el logger del proceso. Sin Init usa dev/info.
func L() *zap.Logger {
	if l := instance.Load(); l != nil {
		return l
	}
	l := build(Config{Env: "dev", Level: "info"})
	if instance.CompareAndSwap(nil, l) {
		return l
	}
	return instance.Load()
}

// Sync flushea buffers pendientes (defer en main).
func Sync() error {
	if l := instance.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
