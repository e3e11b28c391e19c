// Package testutil provides common test utilities for handler and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Identity headers asserted by the upstream gateway.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderKeyType    = "X-Key-Type"
	HeaderAdminToken = "X-Admin-Token"
)

// NewJSONRequest creates an HTTP request with a raw JSON body.
// An empty body leaves ContentLength at zero.
func NewJSONRequest(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AsTenant sets the identity headers a gateway would forward for tenantID.
func AsTenant(req *http.Request, tenantID, keyType string) *http.Request {
	req.Header.Set(HeaderTenantID, tenantID)
	if keyType != "" {
		req.Header.Set(HeaderKeyType, keyType)
	}
	return req
}

// AsAdmin sets the operator token header.
func AsAdmin(req *http.Request, token string) *http.Request {
	req.Header.Set(HeaderAdminToken, token)
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// DecodeJSON unmarshals the response body into a generic map.
func DecodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "failed to unmarshal response")
	return result
}

// AssertStatusAndError asserts both the status code and the error identifier.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	assert.Equal(t, expectedStatus, rr.Code, "unexpected status code")
	assert.Equal(t, expectedCode, DecodeJSON(t, rr)["error"], "unexpected error code")
}
