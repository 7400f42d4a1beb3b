package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agroguard/internal/metrics"
	"agroguard/internal/models"
	"agroguard/internal/repositories"
)

// UserService covers account lookups outside the signup flow.
type UserService interface {
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	Promote(ctx context.Context, email string) (*models.User, error)
	GetTotalUsers(ctx context.Context) (int64, error)
	TrackTotalUsers(ctx context.Context, interval time.Duration)
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Failed to fetch user profile")
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	user.Password = ""
	return user, nil
}

// Promote grants the admin role to an existing account.
func (s *userService) Promote(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.SetRole(ctx, normalizeEmail(email), models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to promote user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	log.Info().Str("user_id", user.ID.Hex()).Msg("User promoted to admin")
	user.Password = ""
	return user, nil
}

func (s *userService) GetTotalUsers(ctx context.Context) (int64, error) {
	return s.userRepo.CountAll(ctx)
}

// TrackTotalUsers refreshes the total users gauge every interval until ctx
// is cancelled.
func (s *userService) TrackTotalUsers(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.refreshTotal(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *userService) refreshTotal(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	count, err := s.GetTotalUsers(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Error updating total users gauge")
		}
		return
	}
	metrics.TotalUsers.Set(float64(count))
}
