package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(c.corsMw())

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Get("/api/whiteboards", c.listWhiteboards)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Get("/ws", c.serveWS)
		r.Get("/whiteboards", c.listWhiteboards)
	})

	return r
}

func (c controller) corsMw() func(http.Handler) http.Handler {
	if len(c.cfg.AllowedOrigins) == 0 {
		return cors.AllowAll().Handler
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: c.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
}
