package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agroguard/internal/metrics"
	"agroguard/internal/models"
	"agroguard/internal/repositories"
	"agroguard/internal/utils"
)

const (
	defaultFeedbackLimit = 10
	maxFeedbackLimit     = 100
	maxFeedbackPage      = 1_000_000

	msgRequiredFields = "Please fill in all required fields"
	msgRatingRange    = "Rating must be between 1 and 5"
)

type FeedbackService interface {
	Submit(ctx context.Context, in models.FeedbackInput, userID *primitive.ObjectID) (*models.Feedback, error)
	List(ctx context.Context, filter models.FeedbackFilter) (*models.FeedbackPage, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Feedback, error)
	Update(ctx context.Context, id primitive.ObjectID, upd models.FeedbackUpdate) (*models.Feedback, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	Summary(ctx context.Context) (*models.FeedbackSummary, error)
}

type feedbackService struct {
	repo repositories.FeedbackRepository
}

func NewFeedbackService(repo repositories.FeedbackRepository) FeedbackService {
	return &feedbackService{repo: repo}
}

func (s *feedbackService) Submit(ctx context.Context, in models.FeedbackInput, userID *primitive.ObjectID) (*models.Feedback, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validateFeedback(in); err != nil {
		return nil, err
	}

	fb := &models.Feedback{
		Name:        in.Name,
		Email:       strings.ToLower(in.Email),
		Subject:     in.Subject,
		Message:     in.Message,
		Rating:      in.Rating,
		Category:    in.Category,
		Status:      models.StatusPending,
		UserID:      userID,
		IsAnonymous: in.IsAnonymous,
	}
	if fb.Category == "" {
		fb.Category = models.CategoryGeneral
	}
	if in.IsAnonymous {
		fb.Name = models.AnonymousName
		fb.Email = models.AnonymousEmail
	}

	created, err := s.repo.Create(ctx, fb)
	if err != nil {
		return nil, err
	}
	metrics.FeedbackSubmittedTotal.WithLabelValues(string(created.Category)).Inc()
	log.Info().Str("feedback_id", created.ID.Hex()).Str("category", string(created.Category)).Int("rating", created.Rating).Msg("Feedback submitted")
	return created, nil
}

// validateFeedback runs the tag rules and picks the client summary: missing
// fields win over a bad rating, which wins over anything else.
func validateFeedback(in models.FeedbackInput) error {
	err := utils.ValidateStruct(in)
	if err == nil {
		return nil
	}
	var verr *utils.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	for _, f := range verr.Fields {
		if f.Tag == "required" {
			verr.Message = msgRequiredFields
			return verr
		}
	}
	if verr.HasTag("rating", "min") || verr.HasTag("rating", "max") {
		verr.Message = msgRatingRange
	}
	return verr
}

// NormalizeFilter applies paging defaults and bounds.
func NormalizeFilter(f models.FeedbackFilter) models.FeedbackFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > maxFeedbackPage {
		f.Page = maxFeedbackPage
	}
	if f.Limit < 1 {
		f.Limit = defaultFeedbackLimit
	}
	if f.Limit > maxFeedbackLimit {
		f.Limit = maxFeedbackLimit
	}
	if f.SortBy == "" {
		f.SortBy = "createdAt"
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
	return f
}

func (s *feedbackService) List(ctx context.Context, filter models.FeedbackFilter) (*models.FeedbackPage, error) {
	filter = NormalizeFilter(filter)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Statistics(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &models.FeedbackPage{
		Feedback: items,
		Pagination: models.Pagination{
			CurrentPage:  filter.Page,
			TotalPages:   int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
			TotalItems:   total,
			ItemsPerPage: filter.Limit,
		},
		Statistics: *stats,
	}, nil
}

func (s *feedbackService) Get(ctx context.Context, id primitive.ObjectID) (*models.Feedback, error) {
	fb, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, ErrNotFound
	}
	return fb, nil
}

func (s *feedbackService) Update(ctx context.Context, id primitive.ObjectID, upd models.FeedbackUpdate) (*models.Feedback, error) {
	if err := utils.ValidateStruct(upd); err != nil {
		return nil, err
	}

	fields := bson.M{}
	if upd.Status != "" {
		fields["status"] = upd.Status
	}
	if upd.AdminResponse != nil {
		fields["admin_response"] = *upd.AdminResponse
	}

	fb, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, ErrNotFound
	}
	log.Info().Str("feedback_id", id.Hex()).Str("status", string(fb.Status)).Msg("Feedback updated")
	return fb, nil
}

func (s *feedbackService) Delete(ctx context.Context, id primitive.ObjectID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	log.Info().Str("feedback_id", id.Hex()).Msg("Feedback deleted")
	return nil
}

func (s *feedbackService) Summary(ctx context.Context) (*models.FeedbackSummary, error) {
	return s.repo.Summary(ctx)
}
