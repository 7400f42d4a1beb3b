package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"agroguard/internal/models"
	"agroguard/internal/services"
	"agroguard/internal/utils"
)

type FeedbackHandler struct {
	service services.FeedbackService
	dev     bool
}

func NewFeedbackHandler(service services.FeedbackService, dev bool) *FeedbackHandler {
	return &FeedbackHandler{service: service, dev: dev}
}

type feedbackReceipt struct {
	ID        primitive.ObjectID      `json:"id"`
	Subject   string                  `json:"subject"`
	Rating    int                     `json:"rating"`
	Category  models.FeedbackCategory `json:"category"`
	CreatedAt time.Time               `json:"createdAt"`
}

func (h *FeedbackHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var in models.FeedbackInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	var userID *primitive.ObjectID
	if id, ok := utils.UserFromContext(r.Context()); ok {
		userID = &id
	}

	fb, err := h.service.Submit(r.Context(), in, userID)
	if err != nil {
		var verr *utils.ValidationError
		if errors.As(err, &verr) {
			utils.RespondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"message": verr.Message,
				"errors":  verr.Fields,
			})
			return
		}
		h.fail(w, http.StatusInternalServerError, "Failed to submit feedback. Please try again.", err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Thank you for your feedback! We appreciate your input.",
		"feedback": feedbackReceipt{
			ID:        fb.ID,
			Subject:   fb.Subject,
			Rating:    fb.Rating,
			Category:  fb.Category,
			CreatedAt: fb.CreatedAt,
		},
	})
}

func (h *FeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.FeedbackFilter{
		Status:    models.FeedbackStatus(q.Get("status")),
		Category:  models.FeedbackCategory(q.Get("category")),
		Rating:    atoiOr(q.Get("rating"), 0),
		Page:      atoiOr(q.Get("page"), 1),
		Limit:     atoiOr(q.Get("limit"), 10),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "Failed to fetch feedback", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"feedback":   page.Feedback,
		"pagination": page.Pagination,
		"statistics": page.Statistics,
	})
}

func (h *FeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	fb, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.notFoundOr(w, err, "Failed to fetch feedback")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "feedback": fb})
}

func (h *FeedbackHandler) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var upd models.FeedbackUpdate
	if err := utils.DecodeJSON(r, &upd); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	fb, err := h.service.Update(r.Context(), id, upd)
	if err != nil {
		var verr *utils.ValidationError
		if errors.As(err, &verr) {
			h.fail(w, http.StatusBadRequest, verr.Message, nil)
			return
		}
		h.notFoundOr(w, err, "Failed to update feedback")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Feedback updated successfully",
		"feedback": fb,
	})
}

func (h *FeedbackHandler) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.notFoundOr(w, err, "Failed to delete feedback")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Feedback deleted successfully",
	})
}

func (h *FeedbackHandler) Summary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "Failed to fetch statistics", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "statistics": stats})
}

func (h *FeedbackHandler) notFoundOr(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, services.ErrNotFound) {
		h.fail(w, http.StatusNotFound, "Feedback not found", nil)
		return
	}
	h.fail(w, http.StatusInternalServerError, msg, err)
}

// fail writes {success:false, message}. A non-nil err is logged and, in
// development, echoed back.
func (h *FeedbackHandler) fail(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]interface{}{"success": false, "message": msg}
	if err != nil {
		logError(err, msg)
		if h.dev {
			body["error"] = err.Error()
		}
	}
	utils.RespondWithJSON(w, status, body)
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
