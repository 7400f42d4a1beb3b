package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	MongoURI      string
	MongoDatabase string

	JWTSecret string
	TokenTTL  time.Duration
	OTPTTL    time.Duration

	SMTP SMTPConfig

	UploadDir         string
	UploadMaxBytes    int64
	ChatImageMaxBytes int64

	CropDoctor CropDoctorConfig
	LocalModel LocalModelConfig
	Detection  DetectionConfig
	Vision     VisionConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// CropDoctorConfig points at the hosted pest-identify function used by both
// identification and the chat assistant.
type CropDoctorConfig struct {
	BaseURL     string
	APIKey      string
	Path        string
	InsecureTLS bool
}

func (c CropDoctorConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

type LocalModelConfig struct {
	Interpreter string
	Script      string
	Dir         string
}

type DetectionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Version string
}

type VisionConfig struct {
	APIKey string
	Model  string
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	get := func(k, def string) string {
		if v := os.Getenv(k); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:           getInt(get("PORT", "5000"), 5000),
		Env:            get("APP_ENV", "production"),
		LogLevel:       get("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(get("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitRPS:   getFloat(get("RATE_LIMIT_RPS", "5"), 5),
		RateLimitBurst: getInt(get("RATE_LIMIT_BURST", "20"), 20),

		MongoURI:      get("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: get("MONGO_DATABASE", "agroguard"),

		JWTSecret: get("JWT_SECRET", ""),
		TokenTTL:  7 * 24 * time.Hour,
		OTPTTL:    5 * time.Minute,

		SMTP: SMTPConfig{
			Host:     get("SMTP_HOST", "smtp.gmail.com"),
			Port:     getInt(get("SMTP_PORT", "587"), 587),
			Username: get("SMTP_USERNAME", ""),
			Password: get("SMTP_PASSWORD", ""),
			From:     get("SMTP_FROM", get("SMTP_USERNAME", "")),
		},

		UploadDir:         get("UPLOAD_DIR", "uploads"),
		UploadMaxBytes:    int64(getInt(get("UPLOAD_MAX_BYTES", "10485760"), 10<<20)),
		ChatImageMaxBytes: int64(getInt(get("CHAT_IMAGE_MAX_BYTES", "5242880"), 5<<20)),

		CropDoctor: CropDoctorConfig{
			BaseURL:     strings.TrimRight(get("CROP_DOCTOR_URL", ""), "/"),
			APIKey:      get("CROP_DOCTOR_KEY", ""),
			Path:        get("CROP_DOCTOR_PATH", "/functions/v1/pest-identify"),
			InsecureTLS: get("CROP_DOCTOR_INSECURE_TLS", "false") == "true",
		},
		LocalModel: LocalModelConfig{
			Interpreter: get("LOCAL_MODEL_INTERPRETER", "python"),
			Script:      get("LOCAL_MODEL_SCRIPT", ""),
			Dir:         get("LOCAL_MODEL_DIR", ""),
		},
		Detection: DetectionConfig{
			APIKey:  get("DETECTION_API_KEY", ""),
			BaseURL: strings.TrimRight(get("DETECTION_BASE_URL", "https://detect.roboflow.com"), "/"),
			Model:   get("DETECTION_MODEL", "coco"),
			Version: get("DETECTION_VERSION", "9"),
		},
		Vision: VisionConfig{
			APIKey: get("VISION_API_KEY", ""),
			Model:  get("VISION_MODEL", "gemini-2.5-flash"),
		},
	}

	log.Info().
		Int("port", cfg.Port).
		Str("env", cfg.Env).
		Str("mongo_database", cfg.MongoDatabase).
		Bool("crop_doctor", cfg.CropDoctor.Enabled()).
		Bool("local_model", cfg.LocalModel.Script != "").
		Bool("detection", cfg.Detection.APIKey != "").
		Bool("vision", cfg.Vision.APIKey != "").
		Msg("Configuration loaded")
	return cfg
}

func getInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("value", v).Int("default", def).Msg("Invalid integer in configuration, using default")
		return def
	}
	return n
}

func getFloat(v string, def float64) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("value", v).Float64("default", def).Msg("Invalid number in configuration, using default")
		return def
	}
	return f
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
