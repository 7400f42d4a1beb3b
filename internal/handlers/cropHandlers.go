package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"agroguard/internal/models"
	"agroguard/internal/services"
	"agroguard/internal/utils"
)

type CropHandler struct {
	catalog services.CatalogService
	dev     bool
}

func NewCropHandler(catalog services.CatalogService, dev bool) *CropHandler {
	return &CropHandler{catalog: catalog, dev: dev}
}

func (h *CropHandler) GetCrops(w http.ResponseWriter, r *http.Request) {
	crops, err := h.catalog.ListCrops(r.Context())
	if err != nil {
		serverError(w, h.dev, "Server error", err)
		return
	}
	log.Debug().Int("count", len(crops)).Msg("Crops retrieved")
	utils.RespondWithJSON(w, http.StatusOK, crops)
}

func (h *CropHandler) GetCropsByCategory(w http.ResponseWriter, r *http.Request) {
	crops, err := h.catalog.ListCropsByCategory(r.Context(), mux.Vars(r)["category"])
	if err != nil {
		serverError(w, h.dev, "Server error", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, crops)
}

func (h *CropHandler) GetCrop(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	crop, err := h.catalog.GetCrop(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, crop)
}

func (h *CropHandler) CreateCrop(w http.ResponseWriter, r *http.Request) {
	var in models.CropInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	crop, err := h.catalog.CreateCrop(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, crop)
}

func (h *CropHandler) UpdateCrop(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var upd models.CropUpdate
	if err := utils.DecodeJSON(r, &upd); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	crop, err := h.catalog.UpdateCrop(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, crop)
}

func (h *CropHandler) DeleteCrop(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	if err := h.catalog.DeleteCrop(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Crop deleted"})
}

func (h *CropHandler) writeError(w http.ResponseWriter, err error) {
	if respondValidation(w, err) {
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		utils.SendJSONError(w, "Crop not found", http.StatusNotFound)
		return
	}
	serverError(w, h.dev, "Server error", err)
}
