package services

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUserExists         = errors.New("User already exists")
	ErrInvalidOTP         = errors.New("Invalid or expired OTP")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrEmailNotConfigured = errors.New("email service not configured")
)
