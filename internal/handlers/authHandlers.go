package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"agroguard/internal/models"
	"agroguard/internal/services"
	"agroguard/internal/utils"
)

type AuthHandler struct {
	auth  services.AuthService
	users services.UserService
	dev   bool
}

func NewAuthHandler(auth services.AuthService, users services.UserService, dev bool) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, dev: dev}
}

type otpResponse struct {
	Message        string `json:"message"`
	Email          string `json:"email"`
	DevelopmentOTP string `json:"developmentOTP,omitempty"`
}

func dispatchResponse(d *services.OTPDispatch, sent string) otpResponse {
	out := otpResponse{Message: sent, Email: d.Email, DevelopmentOTP: d.DevelopmentOTP}
	switch {
	case d.Delivered:
	case d.DevelopmentOTP != "":
		out.Message = "Email service not configured. OTP returned in development mode"
	default:
		out.Message = "OTP created but the email could not be delivered. Please try again."
	}
	return out
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	d, err := h.auth.SendOTP(r.Context(), req)
	if err != nil {
		h.authError(w, err, "Failed to send OTP")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dispatchResponse(d, "OTP sent successfully to your email"))
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.ResendOTPRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	d, err := h.auth.ResendOTP(r.Context(), req)
	if err != nil {
		h.authError(w, err, "Failed to resend OTP")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dispatchResponse(d, "New OTP sent successfully to your email"))
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.auth.VerifyOTP(r.Context(), req)
	if err != nil {
		h.authError(w, err, "Registration failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Login
	if err := utils.DecodeJSON(r, &creds); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.auth.Login(r.Context(), creds)
	if err != nil {
		h.authError(w, err, "Login failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	user, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		serverError(w, h.dev, "Failed to load profile", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) authError(w http.ResponseWriter, err error, msg string) {
	if respondValidation(w, err) {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrInvalidOTP),
		errors.Is(err, services.ErrInvalidCredentials):
		log.Debug().Err(err).Msg(msg)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		serverError(w, h.dev, msg, err)
	}
}
