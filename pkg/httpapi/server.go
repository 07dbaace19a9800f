package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/iota-uz/orgledger/pkg/application"
	"github.com/iota-uz/orgledger/pkg/configuration"
	"github.com/iota-uz/orgledger/pkg/middleware"
)

type Server struct {
	srv *http.Server
}

func NewServer(app *application.Application, server configuration.ServerOptions, prom configuration.PrometheusOptions) *Server {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(app.Logger()))
	if prom.Enabled {
		r.Handle(prom.Path, promhttp.Handler()).Methods(http.MethodGet)
	}
	NewController(app).Register(r)

	c := cors.New(cors.Options{
		AllowedOrigins: server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", TenantHeader},
	})

	return &Server{
		srv: &http.Server{
			Addr:         server.Addr,
			Handler:      c.Handler(r),
			ReadTimeout:  server.ReadTimeout,
			WriteTimeout: server.WriteTimeout,
		},
	}
}

// Handler exposes the composed router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
