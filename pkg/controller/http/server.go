package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slack_controller "github.com/secmon-lab/bastion/pkg/controller/slack"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

type Server struct {
	router    *chi.Mux
	slackCtrl *slack_controller.Controller
	verifier  PayloadVerifier
	metrics   bool
}

type Options func(*Server)

func WithSlackVerifier(verifier PayloadVerifier) Options {
	return func(s *Server) {
		s.verifier = verifier
	}
}

func WithSlackController(ctrl *slack_controller.Controller) Options {
	return func(s *Server) {
		s.slackCtrl = ctrl
	}
}

// WithMetrics exposes the prometheus collectors on /metrics.
func WithMetrics(enabled bool) Options {
	return func(s *Server) {
		s.metrics = enabled
	}
}

func New(uc interfaces.EventUsecases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:    r,
		slackCtrl: slack_controller.New(uc),
		metrics:   true,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(loggingMiddleware)
	r.Use(panicRecoveryMiddleware)

	r.Get("/health", healthHandler)
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/hooks", func(r chi.Router) {
		r.Route("/slack", func(r chi.Router) {
			r.Use(verifySlackRequest(s.verifier))
			r.Post("/interaction", slackInteractionHandler(s.slackCtrl))
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		logging.From(r.Context()).Error("failed to write health response", logging.ErrAttr(err))
	}
}
