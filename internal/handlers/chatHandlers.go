package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"agroguard/internal/services"
	"agroguard/internal/utils"
)

var chatFeatures = []string{
	"Crop Management Advice",
	"Pest Identification Help",
	"Disease Management",
	"Farming Best Practices",
	"Seasonal Guidance",
}

type ChatHandler struct {
	chat          services.ChatService
	uploads       services.UploadService
	identifier    PestIdentifier
	maxImageBytes int64
	dev           bool
}

func NewChatHandler(chat services.ChatService, uploads services.UploadService, identifier PestIdentifier, maxImageBytes int64, dev bool) *ChatHandler {
	return &ChatHandler{chat: chat, uploads: uploads, identifier: identifier, maxImageBytes: maxImageBytes, dev: dev}
}

type chatRequest struct {
	Message             string              `json:"message"`
	ConversationHistory []services.ChatTurn `json:"conversationHistory"`
	Language            string              `json:"language"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	reply, err := h.chat.Chat(r.Context(), req.Message, req.ConversationHistory, req.Language)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			h.fail(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, services.ErrChatNotConfigured):
			h.fail(w, http.StatusInternalServerError, "Chatbot service not configured. Please contact administrator.", nil)
		default:
			h.fail(w, http.StatusInternalServerError, chatMessage(err), err)
		}
		return
	}
	h.reply(w, reply)
}

func (h *ChatHandler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.fail(w, http.StatusBadRequest, "No image file provided", nil)
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		h.fail(w, http.StatusBadRequest, "No image file provided", nil)
		return
	}
	defer file.Close()

	data, mime, err := h.uploads.ReadImage(file, h.maxImageBytes)
	switch {
	case errors.Is(err, services.ErrUnsupportedImage):
		h.fail(w, http.StatusBadRequest, "Please upload a valid image file (JPG, PNG, etc.)", nil)
		return
	case errors.Is(err, services.ErrFileTooLarge):
		h.fail(w, http.StatusBadRequest, "Image file is too large. Please use an image smaller than 5MB.", nil)
		return
	case err != nil:
		h.fail(w, http.StatusInternalServerError, "Failed to read image", err)
		return
	}

	var history []services.ChatTurn
	if raw := r.FormValue("conversationHistory"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			log.Debug().Err(err).Msg("Ignoring malformed conversation history")
			history = nil
		}
	}

	reply, err := h.chat.AnalyzeImage(r.Context(), data, mime, r.FormValue("message"), history, r.FormValue("language"))
	if err != nil {
		if errors.Is(err, services.ErrChatNotConfigured) {
			h.fail(w, http.StatusInternalServerError, "Image analysis service not configured. Please contact administrator.", nil)
			return
		}
		h.fail(w, http.StatusInternalServerError, chatMessage(err), err)
		return
	}
	h.reply(w, reply)
}

func (h *ChatHandler) Test(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	_ = utils.DecodeJSON(r, &body)
	if body.Message == "" {
		body.Message = "No message"
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"message":         "Chatbot backend is working!",
		"receivedMessage": body.Message,
		"timestamp":       timestamp(),
	})
}

func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	configured := h.chat.Configured()
	hosted := "Missing"
	if configured {
		hosted = "Configured"
	}
	var providers []string
	if h.identifier != nil {
		providers = h.identifier.Providers()
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":                  "online",
		"configured":              configured,
		"hostedFunction":          hosted,
		"identificationProviders": providers,
		"features":                chatFeatures,
		"timestamp":               timestamp(),
	})
}

func (h *ChatHandler) reply(w http.ResponseWriter, reply string) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"response":  reply,
		"timestamp": timestamp(),
	})
}

// fail writes {success:false, error}. In development a non-nil err adds a
// debug block with the underlying cause.
func (h *ChatHandler) fail(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]interface{}{
		"success":   false,
		"error":     msg,
		"timestamp": timestamp(),
	}
	if err != nil && h.dev {
		debug := map[string]interface{}{"originalError": err.Error()}
		var cerr *services.ChatError
		if errors.As(err, &cerr) {
			debug["kind"] = cerr.Kind.String()
			if cerr.Err != nil {
				debug["originalError"] = cerr.Err.Error()
			}
		}
		body["debug"] = debug
	}
	utils.RespondWithJSON(w, status, body)
}

func chatMessage(err error) string {
	var cerr *services.ChatError
	if errors.As(err, &cerr) {
		return cerr.Message
	}
	return err.Error()
}
