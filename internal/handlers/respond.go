package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"agroguard/internal/utils"
)

// respondValidation writes a 400 with field detail when err is a
// *utils.ValidationError and reports whether it did.
func respondValidation(w http.ResponseWriter, err error) bool {
	var verr *utils.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	utils.RespondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
		"message": verr.Message,
		"errors":  verr.Fields,
	})
	return true
}

// serverError logs err and writes a 500. The error text is only exposed in
// development.
func serverError(w http.ResponseWriter, dev bool, msg string, err error) {
	logError(err, msg)
	body := map[string]interface{}{"message": msg}
	if dev {
		body["error"] = err.Error()
	}
	utils.RespondWithJSON(w, http.StatusInternalServerError, body)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func logError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
}
