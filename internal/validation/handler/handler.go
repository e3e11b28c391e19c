// Package handler exposes validation over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	lqmodels "mailguard/internal/logqueue/models"
	rlmiddleware "mailguard/internal/ratelimit/middleware"
	"mailguard/internal/validation/models"
	"mailguard/internal/validation/service"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/platform/httputil"
	"mailguard/pkg/platform/middleware/admin"
	"mailguard/pkg/platform/middleware/identity"
	"mailguard/pkg/requestcontext"
)

// Service is the validation use case.
type Service interface {
	Admit(ctx context.Context, tenantID id.TenantID, keyType id.KeyType) (*service.Admission, error)
	Validate(ctx context.Context, a *service.Admission, req service.Request) (*models.Response, error)
	RecordDevice(ctx context.Context, tenantID id.TenantID, hash id.FingerprintHash, address, ip string) error
}

// LogFlusher drains validation log queues on operator request.
type LogFlusher interface {
	Flush(ctx context.Context, tenantID id.TenantID) (lqmodels.FlushResult, error)
	Sweep(ctx context.Context) error
	Tenants() []id.TenantID
	Depth(tenantID id.TenantID) int
}

// Handler handles the validation API.
type Handler struct {
	service    Service
	logs       LogFlusher
	adminToken string
	logger     *slog.Logger
}

// New creates a new validation Handler.
func New(svc Service, logs LogFlusher, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		service:    svc,
		logs:       logs,
		adminToken: adminToken,
		logger:     logger,
	}
}

// Register mounts the tenant-facing and operator routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(identity.RequireTenant(h.logger))
		r.Post("/v1/validate", h.handleValidate)
		r.Post("/v1/fingerprint/record", h.handleRecordFingerprint)
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/v1/logs/flush", h.handleFlushLogs)
	})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenantID := requestcontext.TenantID(ctx)

	req, ok := httputil.DecodeAndPrepare[ValidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	admission, err := h.service.Admit(ctx, tenantID, requestcontext.KeyType(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "admission failed")
		return
	}
	rlmiddleware.AddRateLimitHeaders(w, admission.RateLimit)
	if !admission.RateLimit.Allowed {
		rlmiddleware.WriteRateLimitExceeded(w, admission.RateLimit)
		return
	}
	if !admission.Quota.Allowed {
		rlmiddleware.WriteQuotaExceeded(w, admission.Quota)
		return
	}

	resp, err := h.service.Validate(ctx, admission, req.toService())
	if err != nil {
		h.writeError(ctx, w, err, "validation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRecordFingerprint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RecordFingerprintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	ip := req.IP
	if ip == "" {
		ip = requestcontext.ClientIP(ctx)
	}
	if err := h.service.RecordDevice(ctx, requestcontext.TenantID(ctx), req.hash, req.Email, ip); err != nil {
		h.writeError(ctx, w, err, "fingerprint record failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"fingerprint_id": req.hash.String()})
}

func (h *Handler) handleFlushLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req := &FlushLogsRequest{}
	if r.ContentLength != 0 {
		var ok bool
		if req, ok = httputil.DecodeAndPrepare[FlushLogsRequest](w, r, h.logger, ctx, requestID); !ok {
			return
		}
	}

	if !req.tenantID.IsNil() {
		res, err := h.logs.Flush(ctx, req.tenantID)
		if err != nil {
			h.writeError(ctx, w, err, "log flush failed")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FlushLogsResponse{
			Tenants:        1,
			Flushed:        res.Flushed,
			RemainingQueue: res.RemainingQueue,
		})
		return
	}

	err := h.logs.Sweep(ctx)
	tenants := h.logs.Tenants()
	resp := FlushLogsResponse{Tenants: len(tenants)}
	for _, t := range tenants {
		resp.RemainingQueue += h.logs.Depth(t)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "log sweep incomplete",
			"request_id", requestID,
			"remaining_queue", resp.RemainingQueue,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", requestcontext.TenantID(ctx).String(),
		"error", err,
	}
	if code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
