package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nzaccagnino/notesync/internal/content"
	"github.com/nzaccagnino/notesync/internal/db"
)

type Options struct {
	DB     *db.DB
	Logger *log.Logger
	// PublicURL prefixes attachment links in server-rendered HTML.
	PublicURL string
	// RateLimit is the number of API requests allowed per client per
	// minute. Zero disables limiting.
	RateLimit int
}

type Server struct {
	db       *db.DB
	broker   *Broker
	pipeline *content.Pipeline
	limiter  *RateLimiter
	logger   *log.Logger
	router   *chi.Mux
}

func New(opts Options) *Server {
	s := &Server{
		db:       opts.DB,
		broker:   NewBroker(opts.Logger),
		pipeline: content.New(opts.PublicURL),
		logger:   opts.Logger.WithPrefix("http"),
		router:   chi.NewRouter(),
	}
	if opts.RateLimit > 0 {
		s.limiter = NewRateLimiter(opts.RateLimit, time.Minute)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.healthHandler)

	// Push channel; long lived, so outside the request timeout.
	s.router.Get("/ws", s.broker.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Route("/api/notes", func(r chi.Router) {
			r.Get("/", s.listNotesHandler)
			r.Post("/", s.createNoteHandler)
			r.Get("/collection/{title}", s.listCollectionHandler)
			r.Get("/{id}", s.getNoteHandler)
			r.Put("/{id}", s.updateNoteHandler)
			r.Delete("/{id}", s.deleteNoteHandler)
		})

		r.Route("/api/files/{noteID}", func(r chi.Router) {
			r.Get("/", s.listFilesHandler)
			r.Post("/upload", s.uploadFileHandler)
			r.Delete("/all", s.deleteAllFilesHandler)
			r.Get("/{filename}", s.downloadFileHandler)
			r.Put("/{filename}/rename", s.renameFileHandler)
			r.Delete("/{filename}", s.deleteFileHandler)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Broker() *Broker {
	return s.broker
}

// Close stops background work and drops push sessions.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.broker.Close()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration,
		)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]interface{}{
		"status":   "ok",
		"sessions": s.broker.Sessions(),
	}, http.StatusOK)
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}
