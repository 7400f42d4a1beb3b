package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"agroguard/internal/database"
	"agroguard/internal/utils"
)

var apiRoutes = []string{"/api/auth", "/api/crops", "/api/pests", "/api/upload", "/api/chatbot", "/api/feedback"}

type CommonHandler struct {
	db database.Service
}

func NewCommonHandler(db database.Service) *CommonHandler {
	return &CommonHandler{db: db}
}

func (h *CommonHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "AgroGuard API",
		"routes":  apiRoutes,
	})
}

func (h *CommonHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := h.db.Health()
	status := http.StatusOK
	if health["status"] == "down" {
		status = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, status, health)
}

// NotFoundHandler answers unmatched routes with JSON instead of the router's
// plain text page.
func (h *CommonHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	log.Warn().Str("method", r.Method).Str("url", r.URL.RequestURI()).Msg("Unmatched route")

	if strings.HasPrefix(r.URL.Path, "/api/") {
		utils.RespondWithJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":           "API endpoint not found",
			"method":          r.Method,
			"url":             r.URL.RequestURI(),
			"availableRoutes": apiRoutes,
		})
		return
	}
	utils.RespondWithJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":  "Route not found",
		"method": r.Method,
		"url":    r.URL.RequestURI(),
	})
}
