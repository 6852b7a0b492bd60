package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/atgate/internal/app"
	"github.com/dropDatabas3/atgate/internal/config"
	httpserver "github.com/dropDatabas3/atgate/internal/http"
	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

// version se inyecta con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "atgate",
		Short:         "Gateway de login AT Protocol (OAuth + 2FA)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), genSecretCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// .env es opcional
			_ = godotenv.Load()
			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "ruta al YAML de configuración (env CONFIG_PATH)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "atgate",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	if cfg.UsesPlaceholderSecrets() {
		log.Warn("using development secrets; set SESSION_SECRET and CSRF_SECRET")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, version)
	if err != nil {
		return fmt.Errorf("wiring: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close failed", logger.Err(err))
		}
	}()

	srv := httpserver.NewServer(httpserver.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, a.Handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("public_url", cfg.App.PublicURL),
			logger.String("env", cfg.App.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

func genSecretCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Genera un secreto aleatorio para SESSION_SECRET / CSRF_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n < 32 {
				return fmt.Errorf("--bytes must be >= 32")
			}
			b := make([]byte, n)
			if _, err := rand.Read(b); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(b))
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "bytes", 32, "cantidad de bytes aleatorios")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
