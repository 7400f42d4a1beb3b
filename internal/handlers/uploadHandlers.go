package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"agroguard/internal/identification"
	"agroguard/internal/services"
	"agroguard/internal/utils"
)

const multipartMemory = 32 << 20

// PestIdentifier is satisfied by *identification.Chain.
type PestIdentifier interface {
	Identify(ctx context.Context, img identification.Image) (*identification.Result, error)
	Providers() []string
}

type UploadHandler struct {
	uploads    services.UploadService
	identifier PestIdentifier
	dev        bool
}

func NewUploadHandler(uploads services.UploadService, identifier PestIdentifier, dev bool) *UploadHandler {
	return &UploadHandler{uploads: uploads, identifier: identifier, dev: dev}
}

type identifyResponse struct {
	Message   string `json:"message"`
	Filename  string `json:"filename"`
	ImagePath string `json:"imagePath"`
	*identification.Result
}

func (h *UploadHandler) Identify(w http.ResponseWriter, r *http.Request) {
	stored, ok := h.store(w, r)
	if !ok {
		return
	}

	res, err := h.identifier.Identify(r.Context(), identification.NewImage(stored.Path))
	if err != nil {
		serverError(w, h.dev, "Pest identification failed", err)
		return
	}

	log.Info().Str("file", stored.Filename).Str("provider", res.Provider).Str("error", res.Error).Msg("Identification finished")
	utils.RespondWithJSON(w, http.StatusOK, identifyResponse{
		Message:   "Image analyzed successfully",
		Filename:  stored.Filename,
		ImagePath: stored.URL,
		Result:    res,
	})
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	stored, ok := h.store(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message":  "Image uploaded successfully",
		"filename": stored.Filename,
		"imageUrl": stored.URL,
	})
}

// store saves the "image" form file and writes the error response itself
// when that fails.
func (h *UploadHandler) store(w http.ResponseWriter, r *http.Request) (*services.StoredFile, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		utils.SendJSONError(w, "Invalid upload", http.StatusBadRequest)
		return nil, false
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		utils.SendJSONError(w, "No image uploaded", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	stored, err := h.uploads.Save(file, header.Filename)
	switch {
	case errors.Is(err, services.ErrFileTooLarge), errors.Is(err, services.ErrUnsupportedImage):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	case err != nil:
		serverError(w, h.dev, "Image upload failed", err)
		return nil, false
	}
	return stored, true
}
