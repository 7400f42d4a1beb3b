package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"agroguard/internal/metrics"
	"agroguard/internal/models"
	"agroguard/internal/repositories"
	"agroguard/internal/utils"
)

const otpLength = 6

type AuthConfig struct {
	JWTSecret   []byte
	TokenTTL    time.Duration
	OTPTTL      time.Duration
	Development bool
}

// OTPDispatch reports what happened to a freshly issued code.
// DevelopmentOTP is only set when delivery failed in development mode.
type OTPDispatch struct {
	Email          string
	Delivered      bool
	DevelopmentOTP string
}

type AuthService interface {
	SendOTP(ctx context.Context, req models.SignupRequest) (*OTPDispatch, error)
	ResendOTP(ctx context.Context, req models.ResendOTPRequest) (*OTPDispatch, error)
	VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, creds models.Login) (*models.AuthResponse, error)
}

type authService struct {
	userRepo repositories.UserRepository
	otpRepo  repositories.OTPRepository
	mailer   EmailService
	cfg      AuthConfig
	now      func() time.Time
}

func NewAuthService(userRepo repositories.UserRepository, otpRepo repositories.OTPRepository, mailer EmailService, cfg AuthConfig) AuthService {
	return &authService{userRepo: userRepo, otpRepo: otpRepo, mailer: mailer, cfg: cfg, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) SendOTP(ctx context.Context, req models.SignupRequest) (*OTPDispatch, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	return s.issueOTP(ctx, normalizeEmail(req.Email))
}

func (s *authService) ResendOTP(ctx context.Context, req models.ResendOTPRequest) (*OTPDispatch, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	return s.issueOTP(ctx, normalizeEmail(req.Email))
}

// issueOTP replaces any pending code for email with a fresh one and tries
// to mail it.
func (s *authService) issueOTP(ctx context.Context, email string) (*OTPDispatch, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Warn().Str("email", email).Msg("Signup code requested for existing user")
		return nil, ErrUserExists
	}

	code, err := utils.GenerateSecureOTP(otpLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}

	now := s.now()
	if _, err := s.otpRepo.Replace(ctx, &models.OTP{
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.OTPTTL),
	}); err != nil {
		return nil, err
	}

	out := &OTPDispatch{Email: email}
	if err := s.mailer.SendOTPEmail(email, code); err != nil {
		metrics.OTPSentTotal.WithLabelValues("failed").Inc()
		if s.cfg.Development {
			log.Warn().Err(err).Str("email", email).Str("otp", code).Msg("OTP email not sent, development mode code")
			out.DevelopmentOTP = code
		} else {
			log.Error().Err(err).Str("email", email).Msg("Failed to send OTP email")
		}
		return out, nil
	}

	metrics.OTPSentTotal.WithLabelValues("sent").Inc()
	out.Delivered = true
	log.Info().Str("email", email).Msg("OTP sent")
	return out, nil
}

func (s *authService) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	otp, err := s.otpRepo.FindValid(ctx, email, req.OTP, s.now())
	if err != nil {
		return nil, err
	}
	if otp == nil {
		metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		log.Warn().Str("email", email).Msg("Invalid or expired OTP submitted")
		return nil, ErrInvalidOTP
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, &models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
	metrics.NewUsersTotal.Inc()

	if err := s.otpRepo.Delete(ctx, otp.ID); err != nil {
		log.Error().Err(err).Str("email", email).Msg("Failed to delete used OTP")
	}

	if err := s.mailer.SendWelcomeEmail(user.Email, user.Name); err != nil {
		log.Warn().Err(err).Str("email", user.Email).Msg("Failed to send welcome email")
	}

	token, err := s.token(user)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", user.ID.Hex()).Msg("User registered")
	return &models.AuthResponse{
		Token:   token,
		User:    user.Summary(),
		Message: "Registration successful! Welcome email sent.",
	}, nil
}

func (s *authService) Login(ctx context.Context, creds models.Login) (*models.AuthResponse, error) {
	if err := utils.ValidateStruct(creds); err != nil {
		return nil, err
	}
	email := normalizeEmail(creds.Email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		log.Warn().Str("email", email).Msg("Login attempt for unknown email")
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		log.Warn().Str("user_id", user.ID.Hex()).Msg("Login attempt with wrong password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.token(user)
	if err != nil {
		return nil, err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	log.Info().Str("user_id", user.ID.Hex()).Msg("User logged in")
	return &models.AuthResponse{Token: token, User: user.Summary()}, nil
}

func (s *authService) token(user *models.User) (string, error) {
	token, err := utils.GenerateJWT(s.cfg.JWTSecret, user.ID, string(user.Role), s.cfg.TokenTTL)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Could not generate token")
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return token, nil
}
