package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"agroguard/internal/database"
	"agroguard/internal/models"
	"agroguard/internal/utils"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	SetRole(ctx context.Context, email string, role models.Role) (*models.User, error)
	CountAll(ctx context.Context) (int64, error)
}

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db database.Service) UserRepository {
	return &userRepository{collection: db.Collection(database.UsersCollection)}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (_ *models.User, err error) {
	done := utils.TrackQuery("create", "user")
	defer func() { done(err) }()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err = r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		log.Error().Err(err).Str("email", user.Email).Msg("Failed to insert user into database")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (user *models.User, err error) {
	done := utils.TrackQuery("findByEmail", "user")
	defer func() { done(err) }()

	return findOne[models.User](ctx, r.collection, bson.M{"email": email})
}

func (r *userRepository) FindByID(ctx context.Context, userID primitive.ObjectID) (user *models.User, err error) {
	done := utils.TrackQuery("findById", "user")
	defer func() { done(err) }()

	return findOne[models.User](ctx, r.collection, bson.M{"_id": userID})
}

func (r *userRepository) SetRole(ctx context.Context, email string, role models.Role) (user *models.User, err error) {
	done := utils.TrackQuery("setRole", "user")
	defer func() { done(err) }()

	update := bson.M{"$set": bson.M{"role": role, "updated_at": time.Now()}}
	return findOneAndUpdate[models.User](ctx, r.collection, bson.M{"email": email}, update)
}

func (r *userRepository) CountAll(ctx context.Context) (count int64, err error) {
	done := utils.TrackQuery("countAll", "user")
	defer func() { done(err) }()

	count, err = r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to count total users")
		return 0, fmt.Errorf("failed to count total users: %w", err)
	}
	return count, nil
}

// ErrDuplicate is returned when a unique index rejects a write.
var ErrDuplicate = errors.New("duplicate key")
