// File: internal/infra/web/server.go
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/imagerestore/controlplane/internal/config"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"
	"github.com/imagerestore/controlplane/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Prober is the narrow health-check surface a hard dependency exposes.
type Prober interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP API front of spec.md §4.1/§6 to the use cases built
// underneath it, the way the teacher's internal/infra/web.Server wires
// admin handlers to its use cases.
type Server struct {
	admission *usecase.AdmissionUseCase
	status    *usecase.StatusUseCase
	replay    *usecase.ReplayUseCase
	ledger    *usecase.CreditLedgerUseCase

	verifier adapter.TokenVerifier
	cfg      config.ServerConfig

	dbProbe    Prober
	redisProbe Prober

	purchaseSecret string

	log *zerolog.Logger
}

func NewServer(
	admission *usecase.AdmissionUseCase,
	status *usecase.StatusUseCase,
	replay *usecase.ReplayUseCase,
	ledger *usecase.CreditLedgerUseCase,
	verifier adapter.TokenVerifier,
	cfg config.ServerConfig,
	dbProbe, redisProbe Prober,
	purchaseSecret string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		admission: admission, status: status, replay: replay, ledger: ledger,
		verifier: verifier, cfg: cfg,
		dbProbe: dbProbe, redisProbe: redisProbe,
		purchaseSecret: purchaseSecret,
		log:            logger,
	}
}

// Routes builds the chi router: request id, panic recovery, per-request
// timeout, then otelhttp for traceparent propagation (spec.md §4.7), matching
// the teacher's middleware.Chain ordering generalized onto chi.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/health/live", s.handleHealthLive)
	r.Get("/health/ready", s.handleHealthReady)

	r.Post("/webhooks/purchase", s.handlePurchaseWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/uploads/signed-url", s.handleIssueUploadTarget)
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/stream", s.handleStreamJob)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.adminMiddleware)
		r.Get("/admin/dead-letters", s.handleListDeadLetters)
		r.Get("/admin/dead-letters/stats", s.handleDeadLetterStats)
		r.Post("/admin/dead-letters/{id}/replay", s.handleReplayDeadLetter)
		r.Post("/admin/dead-letters/replay-all", s.handleReplayAll)
	})

	return otelhttp.NewHandler(r, "controlplane")
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}
