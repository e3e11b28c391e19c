package handler

//go:generate mockgen -destination=mocks/mocks.go -package=mocks mailguard/internal/validation/handler Service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	lqmodels "mailguard/internal/logqueue/models"
	rlmodels "mailguard/internal/ratelimit/models"
	tmodels "mailguard/internal/tenant/models"
	"mailguard/internal/validation/handler/mocks"
	"mailguard/internal/validation/models"
	"mailguard/internal/validation/service"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/requestcontext"
	"mailguard/pkg/testutil"
)

const adminToken = "op-secret"

type fakeLogs struct {
	depth   map[id.TenantID]int
	flushed []id.TenantID
	err     error
}

func (f *fakeLogs) Flush(_ context.Context, tenantID id.TenantID) (lqmodels.FlushResult, error) {
	f.flushed = append(f.flushed, tenantID)
	n := f.depth[tenantID]
	f.depth[tenantID] = 0
	return lqmodels.FlushResult{Flushed: n}, f.err
}

func (f *fakeLogs) Sweep(ctx context.Context) error {
	for t := range f.depth {
		if _, err := f.Flush(ctx, t); err != nil {
			f.depth[t] = 7
			return err
		}
	}
	return nil
}

func (f *fakeLogs) Tenants() []id.TenantID {
	out := make([]id.TenantID, 0, len(f.depth))
	for t := range f.depth {
		out = append(out, t)
	}
	return out
}

func (f *fakeLogs) Depth(tenantID id.TenantID) int { return f.depth[tenantID] }

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	logs    *fakeLogs
	router  http.Handler
	reset   time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.logs = &fakeLogs{depth: map[id.TenantID]int{"acme": 3}}
	s.reset = time.Date(2025, 6, 14, 10, 1, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(s.service, s.logs, adminToken, logger).Register(r)
	s.router = r
}

// post sends body as tenant acme with a client key.
func (s *HandlerSuite) post(path, body string) *httptest.ResponseRecorder {
	req := testutil.AsTenant(testutil.NewJSONRequest(s.T(), http.MethodPost, path, body), "acme", "client")
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) postAdmin(body, token string) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/logs/flush", body)
	if token != "" {
		testutil.AsAdmin(req, token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) admission(rateOK, quotaOK bool) *service.Admission {
	return &service.Admission{
		Tenant:  &tmodels.TenantConfig{ID: "acme"},
		KeyType: id.KeyTypeClient,
		RateLimit: &rlmodels.RateLimitResult{
			Allowed: rateOK, Limit: 60, Remaining: 59, ResetAt: s.reset, RetryAfter: 45,
		},
		Quota: &rlmodels.QuotaResult{Allowed: quotaOK, Current: 10, Limit: 1000, ResetAt: s.reset},
	}
}

func (s *HandlerSuite) TestValidate() {
	s.Run("allowed request returns verdict and headers", func() {
		a := s.admission(true, true)
		s.service.EXPECT().Admit(gomock.Any(), id.TenantID("acme"), id.KeyTypeClient).Return(a, nil)
		s.service.EXPECT().Validate(gomock.Any(), a, gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ *service.Admission, req service.Request) (*models.Response, error) {
				s.Equal("test@mailinator.com", req.Email)
				s.Equal("NL", req.Country)
				s.Equal(models.Toggles{models.CheckSMTP: true}, req.Validations)
				s.Equal(id.TenantID("acme"), requestcontext.TenantID(ctx))
				return &models.Response{
					Email:          "test@mailinator.com",
					Recommendation: models.RecommendationAllow,
					Score:          40,
					Signals:        []models.Signal{models.SignalDisposableEmail},
					Checks:         map[models.CheckName]models.CheckResult{models.CheckDisposable: {Pass: false}},
				}, nil
			})

		rec := s.post("/v1/validate", `{"email":" test@mailinator.com ","country":"nl","validations":{"smtp":true}}`)

		s.Equal(http.StatusOK, rec.Code)
		s.Equal("60", rec.Header().Get("X-RateLimit-Limit"))
		s.Equal("59", rec.Header().Get("X-RateLimit-Remaining"))
		s.Equal("1749895260", rec.Header().Get("X-RateLimit-Reset"))
		body := testutil.DecodeJSON(s.T(), rec)
		s.Equal("ALLOW", body["recommendation"])
		s.Equal([]any{"disposable_email"}, body["signals"])
	})

	s.Run("rate limited", func() {
		s.service.EXPECT().Admit(gomock.Any(), gomock.Any(), gomock.Any()).Return(s.admission(false, true), nil)

		rec := s.post("/v1/validate", `{"email":"jane@example.com"}`)
		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Equal("45", rec.Header().Get("Retry-After"))
		s.Equal("rate_limit_exceeded", testutil.DecodeJSON(s.T(), rec)["error"])
	})

	s.Run("quota exhausted", func() {
		s.service.EXPECT().Admit(gomock.Any(), gomock.Any(), gomock.Any()).Return(s.admission(true, false), nil)

		rec := s.post("/v1/validate", `{"email":"jane@example.com"}`)
		s.Equal(http.StatusTooManyRequests, rec.Code)
		body := testutil.DecodeJSON(s.T(), rec)
		s.Equal("quota_exceeded", body["error"])
		s.EqualValues(1000, body["limit"])
		s.EqualValues(1749895260, body["reset_at"], "epoch seconds, same clock as X-RateLimit-Reset")
	})

	s.Run("unknown tenant", func() {
		s.service.EXPECT().Admit(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeTenantNotFound, "unknown tenant"))

		rec := s.post("/v1/validate", `{"email":"jane@example.com"}`)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "tenant_not_found")
	})

	s.Run("internal error hides description", func() {
		s.service.EXPECT().Admit(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "redis exploded"))

		rec := s.post("/v1/validate", `{"email":"jane@example.com"}`)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "redis")
	})
}

func (s *HandlerSuite) TestValidateRejectsBadInput() {
	s.Run("missing tenant header", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/validate", `{"email":"a@b.com"}`)
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	for name, body := range map[string]string{
		"not json":           `{"email":`,
		"no email":           `{"ip":"192.0.2.1"}`,
		"bad ip":             `{"email":"a@b.com","ip":"300.1.1.1"}`,
		"bad hash":           `{"email":"a@b.com","fingerprint_hash":"zz"}`,
		"unknown validation": `{"email":"a@b.com","validations":{"telepathy":true}}`,
		"bad country":        `{"email":"a@b.com","country":"NLD"}`,
	} {
		s.Run(name, func() {
			rec := s.post("/v1/validate", body)
			s.Equal(http.StatusBadRequest, rec.Code)
		})
	}
}

func (s *HandlerSuite) TestRecordFingerprint() {
	s.Run("explicit hash", func() {
		s.service.EXPECT().
			RecordDevice(gomock.Any(), id.TenantID("acme"), id.FingerprintHash("0123456789abcdef0123456789abcdef"), "jane@example.com", "192.0.2.9").
			Return(nil)

		rec := s.post("/v1/fingerprint/record",
			`{"email":"jane@example.com","fingerprint_hash":"0123456789ABCDEF0123456789ABCDEF","ip":"192.0.2.9"}`)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("0123456789abcdef0123456789abcdef", testutil.DecodeJSON(s.T(), rec)["fingerprint_id"])
	})

	s.Run("descriptor is hashed", func() {
		s.service.EXPECT().RecordDevice(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.TenantID, hash id.FingerprintHash, _, _ string) error {
				s.Len(hash.String(), id.FingerprintHashLength)
				return nil
			})

		rec := s.post("/v1/fingerprint/record",
			`{"email":"jane@example.com","fingerprint":{"user_agent":"Mozilla/5.0","screen":"1920x1080"}}`)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("needs a fingerprint", func() {
		rec := s.post("/v1/fingerprint/record", `{"email":"jane@example.com"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestFlushLogs() {
	s.Run("requires admin token", func() {
		rec := s.postAdmin("", "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("single tenant", func() {
		rec := s.postAdmin(`{"tenant_id":"acme"}`, adminToken)
		s.Equal(http.StatusOK, rec.Code)
		body := testutil.DecodeJSON(s.T(), rec)
		s.EqualValues(3, body["flushed"])
		s.EqualValues(0, body["remaining_queue"])
	})

	s.Run("sweep all", func() {
		s.logs.depth["globex"] = 2
		rec := s.postAdmin("", adminToken)
		s.Equal(http.StatusOK, rec.Code)
		s.EqualValues(2, testutil.DecodeJSON(s.T(), rec)["tenants"])
	})

	s.Run("sweep failure", func() {
		s.logs.err = dErrors.New(dErrors.CodeUnavailable, "sink down")
		rec := s.postAdmin("", adminToken)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.EqualValues(7, testutil.DecodeJSON(s.T(), rec)["remaining_queue"])
	})
}
