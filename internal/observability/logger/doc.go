// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una instancia de proceso publicada por Init() (también como zap.L()).
//   - Context Scoping: cada request lleva su propio logger "scoped" (request_id,
//     method, path) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Privacidad: DIDs, handles y emails se loguean siempre truncados via los
//     helpers DID(), Handle() y Email(). Nunca loguear el valor crudo con String().
//
// # Uso
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,   // "dev" o "prod"
//	    Level: cfg.Log.Level, // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En controllers/services:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofa.verify"))
//	log.Info("second factor accepted", logger.DID(did), logger.String("method", "totp"))
package logger
