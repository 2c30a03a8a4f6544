package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ebosacco/ussd-gateway/internal/config"
	"github.com/ebosacco/ussd-gateway/internal/logging"
	httpAdapter "github.com/ebosacco/ussd-gateway/pkg/adapters/http"
	redisAdapter "github.com/ebosacco/ussd-gateway/pkg/adapters/redis"
	"github.com/ebosacco/ussd-gateway/pkg/engine"
	"github.com/ebosacco/ussd-gateway/pkg/gateway"
	"github.com/ebosacco/ussd-gateway/pkg/menu"
	"github.com/ebosacco/ussd-gateway/pkg/session"
	"github.com/ebosacco/ussd-gateway/pkg/validate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the USSD callback server",
	Long:  `Starts the HTTP server that receives aggregator callbacks and drives dialogs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		validator := validate.New(
			validate.WithCountryCode(cfg.Validation.CountryCode),
			validate.WithNetworks(cfg.Validation.Networks),
			validate.WithAmountBounds(cfg.Validation.MinAmount, cfg.Validation.MaxAmount),
		)

		graph, err := menu.Load(cfg.MenuFile, validator)
		if err != nil {
			return err
		}

		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		store := redisAdapter.NewFromClient(client,
			redisAdapter.WithTTL(cfg.Redis.SessionTTL()),
			redisAdapter.WithMaxPinAttempts(cfg.Security.MaxPinAttempts),
		)
		sessions := session.NewManager(store,
			session.WithLocker(redisAdapter.NewLocker(client, "ussd:")),
			session.WithLogger(logger),
		)

		pin, err := gateway.NewPinCipher(cfg.Security.PinKey, cfg.Security.PinIV)
		if err != nil {
			return err
		}
		gw := gateway.New(
			gateway.Endpoints{
				Authenticate: cfg.Backend.AuthenticateURL,
				Bank:         cfg.Backend.BankURL,
				Purchase:     cfg.Backend.PurchaseURL,
				Validate:     cfg.Backend.ValidateURL,
				Other:        cfg.Backend.OtherURL,
			},
			gateway.AppIdentity{
				Name:     cfg.App.Name,
				Version:  cfg.App.Version,
				Codebase: cfg.App.Codebase,
				BankID:   cfg.App.BankID,
				Country:  cfg.App.Country,
			},
			pin,
			gateway.WithTimeout(cfg.Backend.Timeout()),
			gateway.WithLogger(logger),
		)

		eng := engine.New(graph, sessions, gw, validator, engine.WithLogger(logger))

		server := httpAdapter.NewServer(eng,
			httpAdapter.WithCleaner(sessions, cfg.CleanupAPIKey),
			httpAdapter.WithLogger(logger),
		)

		srv := &http.Server{
			Addr:    cfg.Listen,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", cfg.Listen, "menu_file", cfg.MenuFile, "nodes", len(graph.Nodes()))
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return err

		case sig := <-shutdown:
			logger.Info("shutdown started", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete, closing", "err", err)
				if err := srv.Close(); err != nil {
					return err
				}
			}
			logger.Info("server stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
