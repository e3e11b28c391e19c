// Package identity reads the caller identity asserted by the upstream auth layer.
//
// Credential verification happens before requests reach this service; the
// gateway forwards the authenticated tenant and key type as headers.
package identity

import (
	"log/slog"
	"net/http"

	id "mailguard/pkg/domain"
	"mailguard/pkg/platform/httputil"
	"mailguard/pkg/requestcontext"
)

const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderKeyType  = "X-Key-Type"
)

// RequireTenant parses the tenant and key type headers into the request context.
// Requests without a valid tenant are rejected with 400.
func RequireTenant(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tenantID, err := id.ParseTenantID(r.Header.Get(HeaderTenantID))
			if err != nil {
				logger.WarnContext(ctx, "missing or invalid tenant header",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			keyType, err := id.ParseKeyType(r.Header.Get(HeaderKeyType))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithTenantID(ctx, tenantID)
			ctx = requestcontext.WithKeyType(ctx, keyType)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
