// Package httptransport is the HTTP surface voting machines and operators
// talk to. Handlers decode, delegate to a service and encode; decisions live
// in the services.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fortis/internal/audit"
	"fortis/internal/nullifier"
	"fortis/internal/platform/metrics"
	"fortis/internal/votesync"
	"fortis/internal/voting"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/platform/httputil"
	"fortis/pkg/platform/middleware/admin"
	authmw "fortis/pkg/platform/middleware/auth"
	"fortis/pkg/platform/middleware/metadata"
	"fortis/pkg/platform/middleware/request"
	"fortis/pkg/platform/middleware/requesttime"
)

const maxBodyBytes = 1 << 20

type VoteService interface {
	CastVote(ctx context.Context, req voting.CastVoteRequest) (*voting.CastVoteResult, error)
}

type SyncService interface {
	StartSync(ctx context.Context, machineID string, syncType votesync.SyncType, forceFull bool) (votesync.StartResult, error)
	Status(ctx context.Context, syncID uuid.UUID) (votesync.SyncJob, error)
	PendingCount(ctx context.Context, machineID string) (int, error)
	RetryFailedSyncs(ctx context.Context) (votesync.RetryReport, error)
	CleanupCompletedSyncs(ctx context.Context, retention time.Duration) (int, error)
}

type NullifierService interface {
	CheckAndRegister(ctx context.Context, n nullifier.Nullifier, electionID string) (nullifier.Decision, error)
	IsRegistered(ctx context.Context, n nullifier.Nullifier, electionID string) (bool, error)
}

type AuditService interface {
	Export(ctx context.Context, format audit.Format, filter audit.Filter) ([]byte, error)
	VerifyIntegrity(ctx context.Context, r audit.Range) (audit.IntegrityResult, error)
	IntegrityReport(ctx context.Context) (audit.IntegrityReport, error)
	Halted() bool
}

type Handler struct {
	votes      VoteService
	sync       SyncService
	nullifiers NullifierService
	audit      AuditService
	sessions   authmw.SessionValidator

	logger           *slog.Logger
	metrics          *metrics.Metrics
	adminToken       string
	cleanupRetention time.Duration
	requestTimeout   time.Duration
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithAdminToken enables the /admin routes. Without it they answer 401.
func WithAdminToken(token string) Option {
	return func(h *Handler) { h.adminToken = token }
}

func WithCleanupRetention(d time.Duration) Option {
	return func(h *Handler) { h.cleanupRetention = d }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.requestTimeout = d }
}

func New(votes VoteService, sync SyncService, nullifiers NullifierService, auditSvc AuditService, sessions authmw.SessionValidator, opts ...Option) (*Handler, error) {
	switch {
	case votes == nil:
		return nil, errors.New("vote service is required")
	case sync == nil:
		return nil, errors.New("sync service is required")
	case nullifiers == nil:
		return nil, errors.New("nullifier service is required")
	case auditSvc == nil:
		return nil, errors.New("audit service is required")
	case sessions == nil:
		return nil, errors.New("session validator is required")
	}
	h := &Handler{
		votes:            votes,
		sync:             sync,
		nullifiers:       nullifiers,
		audit:            auditSvc,
		sessions:         sessions,
		logger:           slog.Default(),
		cleanupRetention: 24 * time.Hour,
		requestTimeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Router wires every route. All /v1 routes need a machine session; /admin
// routes need the operator token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(h.logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(h.logger))
	r.Use(h.latency)

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(chimw.Timeout(h.requestTimeout))
		v1.Use(authmw.RequireMachineSession(h.sessions, h.logger))

		v1.Post("/votes", h.handleCastVote)

		v1.Post("/sync", h.handleStartSync)
		v1.Get("/sync/pending", h.handlePendingCount)
		v1.Get("/sync/{id}", h.handleSyncStatus)

		v1.Post("/nullifiers", h.handleRegisterNullifier)
		v1.Get("/nullifiers/{election}/{nullifier}", h.handleCheckNullifier)

		v1.Get("/audit/export", h.handleAuditExport)
		v1.Get("/audit/verify", h.handleAuditVerify)
		v1.Get("/audit/report", h.handleAuditReport)
	})

	r.Route("/admin", func(a chi.Router) {
		a.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		a.Post("/sync/retry", h.handleRetryFailed)
		a.Post("/sync/cleanup", h.handleCleanup)
	})
	return r
}

func (h *Handler) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		h.metrics.ObserveRequest(route, r.Method, ww.Status(), time.Since(start))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if h.audit.Halted() {
		status = "audit_halted"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

// decodeJSON reads at most maxBodyBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid request body")
	}
	return nil
}
