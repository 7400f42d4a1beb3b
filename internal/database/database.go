package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CropsCollection    = "crops"
	PestsCollection    = "pests"
	UsersCollection    = "users"
	OTPsCollection     = "otps"
	FeedbackCollection = "feedback"
)

type Service interface {
	Health() map[string]string
	Client() *mongo.Client
	Database() *mongo.Database
	Collection(name string) *mongo.Collection
	EnsureIndexes(ctx context.Context) error
	Close(ctx context.Context) error
}

type service struct {
	db     *mongo.Client
	dbName string
}

func New(ctx context.Context, uri, dbName string) (Service, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info().Str("database", dbName).Msg("Connected to MongoDB")
	return &service{db: client, dbName: dbName}, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := s.db.Ping(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("Database health check failed")
		return map[string]string{
			"status":  "down",
			"message": "db down",
			"error":   err.Error(),
		}
	}

	return map[string]string{
		"status":  "OK",
		"message": "It's healthy",
	}
}

func (s *service) Client() *mongo.Client {
	return s.db
}

func (s *service) Database() *mongo.Database {
	return s.db.Database(s.dbName)
}

func (s *service) Collection(name string) *mongo.Collection {
	return s.Database().Collection(name)
}

func (s *service) Close(ctx context.Context) error {
	return s.db.Disconnect(ctx)
}

// EnsureIndexes creates every index the repositories rely on. It is safe to
// call on each start; existing indexes with the same definition are left alone.
func (s *service) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		OTPsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		CropsCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}}},
		},
		PestsCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		FeedbackCollection: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "rating", Value: 1}}},
		},
	}

	for name, models := range specs {
		if _, err := s.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", name, err)
		}
		log.Debug().Str("collection", name).Int("count", len(models)).Msg("Indexes ensured")
	}
	return nil
}
