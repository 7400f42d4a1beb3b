package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"agroguard/internal/aiclient"
	"agroguard/internal/config"
	"agroguard/internal/database"
	"agroguard/internal/handlers"
	"agroguard/internal/identification"
	"agroguard/internal/middlewares"
	"agroguard/internal/repositories"
	"agroguard/internal/services"
	"agroguard/internal/vocabulary"
)

// Services holds everything the routes dispatch to.
type Services struct {
	Auth       services.AuthService
	Users      services.UserService
	Catalog    services.CatalogService
	Feedback   services.FeedbackService
	Chat       services.ChatService
	Uploads    services.UploadService
	Identifier handlers.PestIdentifier
}

type Server struct {
	cfg        config.Config
	httpServer *http.Server
	db         database.Service
	svc        Services
	auth       *middlewares.Authenticator
	limiter    *middlewares.RateLimiter
	metrics    *middlewares.PrometheusMiddleware
	gatherer   prometheus.Gatherer
}

// NewServer wires repositories, services and the identification chain on
// top of db.
func NewServer(ctx context.Context, cfg config.Config, db database.Service) (*Server, error) {
	userRepo := repositories.NewUserRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	cropRepo := repositories.NewCropRepository(db)
	pestRepo := repositories.NewPestRepository(db)
	feedbackRepo := repositories.NewFeedbackRepository(db)

	uploads, err := services.NewUploadService(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		return nil, err
	}

	vocab := vocabulary.Default()
	client := aiclient.New(cfg.CropDoctor)
	catalog := services.NewCatalogService(cropRepo, pestRepo)

	svc := Services{
		Auth: services.NewAuthService(userRepo, otpRepo, services.NewEmailService(cfg.SMTP), services.AuthConfig{
			JWTSecret:   []byte(cfg.JWTSecret),
			TokenTTL:    cfg.TokenTTL,
			OTPTTL:      cfg.OTPTTL,
			Development: cfg.IsDevelopment(),
		}),
		Users:      services.NewUserService(userRepo),
		Catalog:    catalog,
		Feedback:   services.NewFeedbackService(feedbackRepo),
		Chat:       services.NewChatService(client, vocab),
		Uploads:    uploads,
		Identifier: identification.Build(ctx, cfg, client, catalog, vocab),
	}

	return New(cfg, db, svc, prometheus.DefaultRegisterer, prometheus.DefaultGatherer), nil
}

// New builds a server around already constructed services.
func New(cfg config.Config, db database.Service, svc Services, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Server {
	if len(cfg.JWTSecret) == 0 {
		log.Warn().Msg("JWT_SECRET is not set, token issuing and authentication will fail")
	}

	s := &Server{
		cfg:      cfg,
		db:       db,
		svc:      svc,
		auth:     middlewares.NewAuthenticator([]byte(cfg.JWTSecret)),
		limiter:  middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		metrics:  middlewares.NewPrometheusMiddleware(reg),
		gatherer: gatherer,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.limiter.Cleanup(ctx, time.Minute, 3*time.Minute)
	if s.svc.Users != nil {
		go s.svc.Users.TrackTotalUsers(ctx, time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.cfg.Port).Str("env", s.cfg.Env).Msg("Starting server")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
		return err
	}

	log.Info().Msg("Server exiting")
	return nil
}
