package server

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agroguard/internal/handlers"
	"agroguard/internal/middlewares"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.RequestLogger)
	r.Use(middlewares.CORS(s.cfg.AllowedOrigins))
	r.Use(s.auth.Optional)
	r.Use(s.limiter.Limit)
	r.Use(s.metrics.Instrument)

	ch := handlers.NewCommonHandler(s.db)
	r.HandleFunc("/", ch.RootHandler).Methods("GET")
	r.HandleFunc("/api/health", ch.HealthHandler).Methods("GET", "OPTIONS")
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(filesOnly{http.Dir(s.cfg.UploadDir)}))).Methods("GET")

	s.registerAuthRoutes(r)
	s.registerCropRoutes(r)
	s.registerPestRoutes(r)
	s.registerUploadRoutes(r)
	s.registerChatRoutes(r)
	s.registerFeedbackRoutes(r)

	r.NotFoundHandler = http.HandlerFunc(ch.NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(ch.NotFoundHandler)

	return r
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	ah := handlers.NewAuthHandler(s.svc.Auth, s.svc.Users, s.cfg.IsDevelopment())

	r.HandleFunc("/api/auth/send-otp", ah.SendOTP).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/verify-otp", ah.VerifyOTP).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/resend-otp", ah.ResendOTP).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/login", ah.Login).Methods("POST", "OPTIONS")
	r.Handle("/api/auth/me", s.auth.Required(http.HandlerFunc(ah.Me))).Methods("GET", "OPTIONS")
}

func (s *Server) registerCropRoutes(r *mux.Router) {
	ch := handlers.NewCropHandler(s.svc.Catalog, s.cfg.IsDevelopment())

	r.Handle("/api/crops", s.auth.Required(http.HandlerFunc(ch.GetCrops))).Methods("GET", "OPTIONS")
	r.Handle("/api/crops", s.auth.Admin(http.HandlerFunc(ch.CreateCrop))).Methods("POST", "OPTIONS")
	r.Handle("/api/crops/category/{category}", s.auth.Required(http.HandlerFunc(ch.GetCropsByCategory))).Methods("GET", "OPTIONS")
	r.Handle("/api/crops/{id}", s.auth.Required(http.HandlerFunc(ch.GetCrop))).Methods("GET", "OPTIONS")
	r.Handle("/api/crops/{id}", s.auth.Admin(http.HandlerFunc(ch.UpdateCrop))).Methods("PUT", "OPTIONS")
	r.Handle("/api/crops/{id}", s.auth.Admin(http.HandlerFunc(ch.DeleteCrop))).Methods("DELETE", "OPTIONS")
}

func (s *Server) registerPestRoutes(r *mux.Router) {
	ph := handlers.NewPestHandler(s.svc.Catalog, s.cfg.IsDevelopment())

	r.Handle("/api/pests", s.auth.Required(http.HandlerFunc(ph.GetPests))).Methods("GET", "OPTIONS")
	r.Handle("/api/pests", s.auth.Admin(http.HandlerFunc(ph.CreatePest))).Methods("POST", "OPTIONS")
	r.Handle("/api/pests/{id}", s.auth.Required(http.HandlerFunc(ph.GetPest))).Methods("GET", "OPTIONS")
	r.Handle("/api/pests/{id}", s.auth.Admin(http.HandlerFunc(ph.UpdatePest))).Methods("PUT", "OPTIONS")
	r.Handle("/api/pests/{id}", s.auth.Admin(http.HandlerFunc(ph.DeletePest))).Methods("DELETE", "OPTIONS")
}

func (s *Server) registerUploadRoutes(r *mux.Router) {
	uh := handlers.NewUploadHandler(s.svc.Uploads, s.svc.Identifier, s.cfg.IsDevelopment())

	r.Handle("/api/upload/identify", s.auth.Required(http.HandlerFunc(uh.Identify))).Methods("POST", "OPTIONS")
	r.Handle("/api/upload", s.auth.Admin(http.HandlerFunc(uh.Upload))).Methods("POST", "OPTIONS")
}

func (s *Server) registerChatRoutes(r *mux.Router) {
	ch := handlers.NewChatHandler(s.svc.Chat, s.svc.Uploads, s.svc.Identifier, s.cfg.ChatImageMaxBytes, s.cfg.IsDevelopment())

	r.HandleFunc("/api/chatbot/chat", ch.Chat).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/chatbot/analyze-image", ch.AnalyzeImage).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/chatbot/test", ch.Test).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/chatbot/status", ch.Status).Methods("GET", "OPTIONS")
}

func (s *Server) registerFeedbackRoutes(r *mux.Router) {
	fh := handlers.NewFeedbackHandler(s.svc.Feedback, s.cfg.IsDevelopment())

	r.Handle("/api/feedback", s.auth.Optional(http.HandlerFunc(fh.SubmitFeedback))).Methods("POST", "OPTIONS")
	r.Handle("/api/feedback", s.auth.Admin(http.HandlerFunc(fh.ListFeedback))).Methods("GET", "OPTIONS")
	r.Handle("/api/feedback/stats/summary", s.auth.Admin(http.HandlerFunc(fh.Summary))).Methods("GET", "OPTIONS")
	r.Handle("/api/feedback/{id}", s.auth.Admin(http.HandlerFunc(fh.GetFeedback))).Methods("GET", "OPTIONS")
	r.Handle("/api/feedback/{id}", s.auth.Admin(http.HandlerFunc(fh.UpdateFeedback))).Methods("PUT", "OPTIONS")
	r.Handle("/api/feedback/{id}", s.auth.Admin(http.HandlerFunc(fh.DeleteFeedback))).Methods("DELETE", "OPTIONS")
}

// filesOnly hides directories so uploads cannot be listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
