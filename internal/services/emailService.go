package services

import (
	"bytes"
	"html/template"

	"gopkg.in/gomail.v2"

	"agroguard/internal/config"
)

type EmailService interface {
	SendOTPEmail(to, otp string) error
	SendWelcomeEmail(to, name string) error
}

type emailService struct {
	cfg config.SMTPConfig
}

func NewEmailService(cfg config.SMTPConfig) EmailService {
	if cfg.From == "" {
		cfg.From = "noreply@agroguard.com"
	}
	return &emailService{cfg: cfg}
}

var (
	otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #2e7d32;">AgroGuard</h1>
  <h2>Email Verification Required</h2>
  <p>Thank you for registering with AgroGuard. To complete your registration, verify your email address using the code below:</p>
  <div style="font-size: 32px; font-weight: bold; letter-spacing: 5px; font-family: 'Courier New', monospace;">{{.OTP}}</div>
  <p>This code will expire in <strong>5 minutes</strong>.</p>
  <p><strong>Security Note:</strong> Never share this code with anyone.</p>
  <p style="color: #999; font-size: 12px;">If you didn't request this verification, please ignore this email.</p>
</div>`))

	welcomeTemplate = template.Must(template.New("welcome").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #2e7d32;">Welcome to AgroGuard, {{.Name}}!</h1>
  <p>Your account has been verified. You can now:</p>
  <ul>
    <li>Identify pests from photos of your crops</li>
    <li>Browse the crop and pest catalog</li>
    <li>Ask the crop assistant for management advice</li>
  </ul>
  <p style="color: #999; font-size: 12px;">This is an automated message, please do not reply to this email.</p>
</div>`))
)

func (e *emailService) SendOTPEmail(to, otp string) error {
	body, err := render(otpTemplate, map[string]string{"OTP": otp})
	if err != nil {
		return err
	}
	return e.send(to, "Verify Your Email - AgroGuard", body)
}

func (e *emailService) SendWelcomeEmail(to, name string) error {
	body, err := render(welcomeTemplate, map[string]string{"Name": name})
	if err != nil {
		return err
	}
	return e.send(to, "Welcome to AgroGuard!", body)
}

func (e *emailService) send(to, subject, body string) error {
	if e.cfg.Username == "" || e.cfg.Password == "" {
		return ErrEmailNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(e.cfg.Host, e.cfg.Port, e.cfg.Username, e.cfg.Password)
	return d.DialAndSend(m)
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
