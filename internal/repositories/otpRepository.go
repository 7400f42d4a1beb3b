package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"agroguard/internal/database"
	"agroguard/internal/models"
	"agroguard/internal/utils"
)

type OTPRepository interface {
	// Replace removes every code issued for otp.Email and stores otp.
	Replace(ctx context.Context, otp *models.OTP) (*models.OTP, error)
	FindValid(ctx context.Context, email, code string, now time.Time) (*models.OTP, error)
	Delete(ctx context.Context, otpID primitive.ObjectID) error
	CountByEmail(ctx context.Context, email string) (int64, error)
}

type otpRepository struct {
	collection *mongo.Collection
}

func NewOTPRepository(db database.Service) OTPRepository {
	return &otpRepository{collection: db.Collection(database.OTPsCollection)}
}

func (r *otpRepository) Replace(ctx context.Context, otp *models.OTP) (_ *models.OTP, err error) {
	done := utils.TrackQuery("replace", "otp")
	defer func() { done(err) }()

	if _, err = r.collection.DeleteMany(ctx, bson.M{"email": otp.Email}); err != nil {
		return nil, fmt.Errorf("failed to clear previous otps: %w", err)
	}

	otp.ID = primitive.NewObjectID()
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now()
	}
	if _, err = r.collection.InsertOne(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}
	return otp, nil
}

func (r *otpRepository) FindValid(ctx context.Context, email, code string, now time.Time) (otp *models.OTP, err error) {
	done := utils.TrackQuery("findValid", "otp")
	defer func() { done(err) }()

	filter := bson.M{"email": email, "otp_code": code, "expires_at": bson.M{"$gt": now}}
	return findOne[models.OTP](ctx, r.collection, filter)
}

func (r *otpRepository) Delete(ctx context.Context, otpID primitive.ObjectID) (err error) {
	done := utils.TrackQuery("delete", "otp")
	defer func() { done(err) }()

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": otpID})
	return err
}

func (r *otpRepository) CountByEmail(ctx context.Context, email string) (n int64, err error) {
	done := utils.TrackQuery("countByEmail", "otp")
	defer func() { done(err) }()

	return r.collection.CountDocuments(ctx, bson.M{"email": email})
}
