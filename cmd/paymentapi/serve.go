package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chr1sbest/payment-api/internal/config"
	"github.com/chr1sbest/payment-api/internal/logging"
	"github.com/chr1sbest/payment-api/internal/payment"
	"github.com/chr1sbest/payment-api/internal/server"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	srv, err := server.New(cfg, store, log)
	if err != nil {
		return err
	}

	log.Info("starting paymentapi",
		zap.String("version", Version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("auth", cfg.Auth.Enabled),
	)
	return srv.Run(ctx)
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (payment.Store, func(), error) {
	if cfg.Driver == "memory" {
		return payment.NewMemoryStore(), func() {}, nil
	}
	s, err := payment.OpenSQLStore(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
