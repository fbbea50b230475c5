package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taiwoajasa245/verse-collections-api/internal/auth"
	"github.com/taiwoajasa245/verse-collections-api/internal/collection"
	"github.com/taiwoajasa245/verse-collections-api/pkg/response"
)

const apiPrefix = "/verse-collections-api/v1"

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.ServerIsWorking)
	r.Get("/health", s.HealthHandler)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/", s.ServerIsWorking)
		s.loadCollectionRoutes(r)
	})

	return r
}

func (s *Server) ServerIsWorking(w http.ResponseWriter, r *http.Request) {
	resp := make(map[string]string)
	resp["message"] = "Welcome to Verse collections api"
	response.Success(w, resp, "Success")
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.db.Health()
	if stats["status"] != "up" {
		response.Error(w, http.StatusServiceUnavailable, "Database unavailable", stats)
		return
	}
	response.Success(w, stats, "Success")
}

func (s *Server) loadCollectionRoutes(router chi.Router) {
	h := collection.NewCollectionHandler(s.service, s.logger.Named("http"))

	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware)
		r.Get("/collections", h.ListCollectionsHandler)
		r.Post("/collections", h.CreateCollectionHandler)
		r.Get("/collections/{id}", h.GetCollectionHandler)
		r.Post("/collections/{id}/verses", h.AddVersesHandler)
		r.Post("/collections/{id}/notes", h.AddNoteHandler)
		r.Delete("/collections/{id}/notes/{noteID}", h.DeleteNoteHandler)
		r.Put("/collections/{id}/order", h.SaveOrderHandler)
		r.Post("/collections/{id}/publish", h.PublishHandler)
		r.Post("/collections/{id}/import", h.ImportHandler)
	})
}
