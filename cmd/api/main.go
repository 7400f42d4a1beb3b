package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"agroguard/internal/config"
	"agroguard/internal/database"
	"agroguard/internal/repositories"
	"agroguard/internal/seed"
	"agroguard/internal/server"
	"agroguard/internal/services"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "agroguard",
		Short:         "Crop pest identification backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			setupLogger(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Replace the crop and pest catalog with the bundled starter data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), cfg, func(ctx context.Context, db database.Service) error {
				catalog, err := seed.Default()
				if err != nil {
					return err
				}
				sum, err := seed.Run(ctx, repositories.NewCropRepository(db), repositories.NewPestRepository(db), catalog)
				if err != nil {
					return err
				}
				fmt.Printf("Seeded %d crops and %d pests (%d links)\n", sum.Crops, sum.Pests, sum.Links)
				return nil
			})
		},
	})

	var email string
	promote := &cobra.Command{
		Use:   "promote",
		Short: "Grant the admin role to an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), cfg, func(ctx context.Context, db database.Service) error {
				user, err := services.NewUserService(repositories.NewUserRepository(db)).Promote(ctx, email)
				if errors.Is(err, services.ErrNotFound) {
					return fmt.Errorf("no user registered with email %q", email)
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s is now an admin\n", user.Email)
				return nil
			})
		},
	}
	promote.Flags().StringVar(&email, "email", "", "Email of the account to promote")
	_ = promote.MarkFlagRequired("email")
	root.AddCommand(promote)

	return root
}

func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	return withDB(ctx, cfg, func(ctx context.Context, db database.Service) error {
		s, err := server.NewServer(ctx, cfg, db)
		if err != nil {
			return err
		}
		return s.Run(ctx)
	})
}

func withDB(ctx context.Context, cfg config.Config, fn func(context.Context, database.Service) error) error {
	db, err := database.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Failed to close MongoDB connection")
		}
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		return err
	}
	return fn(ctx, db)
}
