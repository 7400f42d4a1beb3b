package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agroguard/internal/database"
	"agroguard/internal/models"
	"agroguard/internal/utils"
)

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) (*models.Feedback, error)
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int64, error)
	Statistics(ctx context.Context, filter models.FeedbackFilter) (*models.FeedbackStatistics, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Feedback, error)
	Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Feedback, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	Summary(ctx context.Context) (*models.FeedbackSummary, error)
}

type feedbackRepository struct {
	collection *mongo.Collection
}

func NewFeedbackRepository(db database.Service) FeedbackRepository {
	return &feedbackRepository{collection: db.Collection(database.FeedbackCollection)}
}

var feedbackSortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"rating":    "rating",
	"status":    "status",
	"category":  "category",
	"subject":   "subject",
}

func feedbackMatch(f models.FeedbackFilter) bson.M {
	match := bson.M{}
	if f.Status != "" {
		match["status"] = f.Status
	}
	if f.Category != "" {
		match["category"] = f.Category
	}
	if f.Rating != 0 {
		match["rating"] = f.Rating
	}
	return match
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) (_ *models.Feedback, err error) {
	done := utils.TrackQuery("create", "feedback")
	defer func() { done(err) }()

	now := time.Now()
	feedback.ID = primitive.NewObjectID()
	feedback.CreatedAt = now
	feedback.UpdatedAt = now
	if _, err = r.collection.InsertOne(ctx, feedback); err != nil {
		log.Error().Err(err).Msg("Failed to insert feedback")
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}
	return feedback, nil
}

func (r *feedbackRepository) List(ctx context.Context, f models.FeedbackFilter) (items []models.Feedback, total int64, err error) {
	done := utils.TrackQuery("list", "feedback")
	defer func() { done(err) }()

	match := feedbackMatch(f)

	sortField, ok := feedbackSortFields[f.SortBy]
	if !ok {
		sortField = "created_at"
	}
	direction := -1
	if f.SortOrder == "asc" {
		direction = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: direction}, {Key: "_id", Value: direction}}).
		SetSkip(int64(max(f.Page-1, 0)) * int64(f.Limit)).
		SetLimit(int64(f.Limit))

	items, err = findMany[models.Feedback](ctx, r.collection, match, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feedback: %w", err)
	}
	total, err = r.collection.CountDocuments(ctx, match)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return items, total, nil
}

type facetRow struct {
	Totals []struct {
		Count   int64   `bson:"count"`
		Average float64 `bson:"average"`
	} `bson:"totals"`
	Status   []models.CountBucket `bson:"status"`
	Category []models.CountBucket `bson:"category"`
	Rating   []models.CountBucket `bson:"rating"`
	Recent   []models.Feedback    `bson:"recent"`
}

func countFacets() bson.M {
	group := func(field string) bson.A {
		return bson.A{bson.M{"$group": bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}, bson.M{"$sort": bson.M{"_id": 1}}}
	}
	return bson.M{
		"totals":   bson.A{bson.M{"$group": bson.M{"_id": nil, "count": bson.M{"$sum": 1}, "average": bson.M{"$avg": "$rating"}}}},
		"status":   group("status"),
		"category": group("category"),
		"rating":   group("rating"),
	}
}

func (r *feedbackRepository) aggregateFacets(ctx context.Context, pipeline bson.A) (*facetRow, error) {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []facetRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &facetRow{}, nil
	}
	return &rows[0], nil
}

func (r *feedbackRepository) Statistics(ctx context.Context, f models.FeedbackFilter) (stats *models.FeedbackStatistics, err error) {
	done := utils.TrackQuery("statistics", "feedback")
	defer func() { done(err) }()

	row, err := r.aggregateFacets(ctx, bson.A{
		bson.M{"$match": feedbackMatch(f)},
		bson.M{"$facet": countFacets()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback statistics: %w", err)
	}

	stats = &models.FeedbackStatistics{
		StatusCounts:   bucketMap(row.Status),
		CategoryCounts: bucketMap(row.Category),
		RatingCounts:   bucketMap(row.Rating),
	}
	if len(row.Totals) > 0 {
		stats.TotalFeedback = row.Totals[0].Count
		stats.AverageRating = row.Totals[0].Average
	}
	return stats, nil
}

func (r *feedbackRepository) Summary(ctx context.Context) (summary *models.FeedbackSummary, err error) {
	done := utils.TrackQuery("summary", "feedback")
	defer func() { done(err) }()

	facets := countFacets()
	facets["recent"] = bson.A{
		bson.M{"$sort": bson.M{"created_at": -1}},
		bson.M{"$limit": 5},
		bson.M{"$project": bson.M{"name": 1, "subject": 1, "rating": 1, "category": 1, "created_at": 1}},
	}
	row, err := r.aggregateFacets(ctx, bson.A{bson.M{"$facet": facets}})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback summary: %w", err)
	}

	summary = &models.FeedbackSummary{
		StatusStats:    nonNilBuckets(row.Status),
		CategoryStats:  nonNilBuckets(row.Category),
		RatingStats:    nonNilBuckets(row.Rating),
		RecentFeedback: row.Recent,
	}
	if summary.RecentFeedback == nil {
		summary.RecentFeedback = []models.Feedback{}
	}
	if len(row.Totals) > 0 {
		summary.Total = row.Totals[0].Count
		summary.AverageRating = row.Totals[0].Average
	}
	return summary, nil
}

func (r *feedbackRepository) FindByID(ctx context.Context, id primitive.ObjectID) (fb *models.Feedback, err error) {
	done := utils.TrackQuery("findById", "feedback")
	defer func() { done(err) }()

	return findOne[models.Feedback](ctx, r.collection, bson.M{"_id": id})
}

// Update sets fields and always refreshes updated_at.
func (r *feedbackRepository) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (fb *models.Feedback, err error) {
	done := utils.TrackQuery("update", "feedback")
	defer func() { done(err) }()

	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set[k] = v
	}
	return findOneAndUpdate[models.Feedback](ctx, r.collection, bson.M{"_id": id}, bson.M{"$set": set})
}

func (r *feedbackRepository) Delete(ctx context.Context, id primitive.ObjectID) (deleted bool, err error) {
	done := utils.TrackQuery("delete", "feedback")
	defer func() { done(err) }()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete feedback: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func bucketMap(buckets []models.CountBucket) map[string]int64 {
	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		out[bucketKey(b.ID)] = b.Count
	}
	return out
}

func bucketKey(v interface{}) string {
	switch k := v.(type) {
	case string:
		return k
	case int32:
		return strconv.Itoa(int(k))
	case int64:
		return strconv.FormatInt(k, 10)
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case nil:
		return "unknown"
	default:
		return fmt.Sprint(k)
	}
}

func nonNilBuckets(b []models.CountBucket) []models.CountBucket {
	if b == nil {
		return []models.CountBucket{}
	}
	return b
}
