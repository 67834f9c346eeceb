package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: s.cfg.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))

	r.Post("/chat", s.handleChat)
	r.Post("/busqueda-rapida", s.handleQuickSearch)
	r.Post("/ejemplo-agente", s.handleAgentExample)
	r.Post("/agente-general", s.handleAgentDemo)

	r.Get("/models", s.handleModels)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, s.cfg.MetricsPath, s.metricsHandler())

	return r
}
