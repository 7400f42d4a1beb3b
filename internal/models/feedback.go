package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FeedbackCategory string

const (
	CategoryGeneral        FeedbackCategory = "general"
	CategoryBugReport      FeedbackCategory = "bug-report"
	CategoryFeatureRequest FeedbackCategory = "feature-request"
	CategoryCropInfo       FeedbackCategory = "crop-info"
	CategoryPestInfo       FeedbackCategory = "pest-info"
	CategoryUIUX           FeedbackCategory = "ui-ux"
	CategoryOther          FeedbackCategory = "other"
)

type FeedbackStatus string

const (
	StatusPending  FeedbackStatus = "pending"
	StatusReviewed FeedbackStatus = "reviewed"
	StatusResolved FeedbackStatus = "resolved"
	StatusClosed   FeedbackStatus = "closed"
)

const (
	AnonymousName  = "Anonymous User"
	AnonymousEmail = "anonymous@agroguard.com"
)

type Feedback struct {
	ID            primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	Name          string              `json:"name" bson:"name"`
	Email         string              `json:"email" bson:"email"`
	Subject       string              `json:"subject" bson:"subject"`
	Message       string              `json:"message" bson:"message"`
	Rating        int                 `json:"rating" bson:"rating"`
	Category      FeedbackCategory    `json:"category" bson:"category"`
	Status        FeedbackStatus      `json:"status" bson:"status"`
	AdminResponse string              `json:"adminResponse,omitempty" bson:"admin_response,omitempty"`
	UserID        *primitive.ObjectID `json:"userId,omitempty" bson:"user_id,omitempty"`
	IsAnonymous   bool                `json:"isAnonymous" bson:"is_anonymous"`
	CreatedAt     time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time           `json:"updatedAt" bson:"updated_at"`
}

type FeedbackInput struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Email       string           `json:"email" validate:"required,email"`
	Subject     string           `json:"subject" validate:"required,max=200"`
	Message     string           `json:"message" validate:"required,max=1000"`
	Rating      int              `json:"rating" validate:"required,min=1,max=5"`
	Category    FeedbackCategory `json:"category" validate:"omitempty,oneof=general bug-report feature-request crop-info pest-info ui-ux other"`
	IsAnonymous bool             `json:"isAnonymous"`
}

type FeedbackUpdate struct {
	Status        FeedbackStatus `json:"status" validate:"omitempty,oneof=pending reviewed resolved closed"`
	AdminResponse *string        `json:"adminResponse" validate:"omitempty,max=1000"`
}

type FeedbackFilter struct {
	Status    FeedbackStatus
	Category  FeedbackCategory
	Rating    int
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

type FeedbackStatistics struct {
	TotalFeedback  int64            `json:"totalFeedback"`
	AverageRating  float64          `json:"averageRating"`
	StatusCounts   map[string]int64 `json:"statusCounts"`
	CategoryCounts map[string]int64 `json:"categoryCounts"`
	RatingCounts   map[string]int64 `json:"ratingCounts"`
}

type FeedbackPage struct {
	Feedback   []Feedback         `json:"feedback"`
	Pagination Pagination         `json:"pagination"`
	Statistics FeedbackStatistics `json:"statistics"`
}

type CountBucket struct {
	ID    interface{} `json:"_id" bson:"_id"`
	Count int64       `json:"count" bson:"count"`
}

type FeedbackSummary struct {
	Total          int64         `json:"total"`
	AverageRating  float64       `json:"averageRating"`
	StatusStats    []CountBucket `json:"statusStats"`
	CategoryStats  []CountBucket `json:"categoryStats"`
	RatingStats    []CountBucket `json:"ratingStats"`
	RecentFeedback []Feedback    `json:"recentFeedback"`
}
