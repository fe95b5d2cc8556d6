package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(allowed []string, method, origin string) *httptest.ResponseRecorder {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = allowed

	req := httptest.NewRequest(method, "/api/auth/session", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	CORS(cfg)(okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantStatus int
		wantOrigin string
	}{
		{"nothing configured", nil, "https://wallet.keyport.dev", http.MethodGet, http.StatusOK, ""},
		{"exact match", []string{"https://wallet.keyport.dev"}, "https://wallet.keyport.dev", http.MethodGet, http.StatusOK, "https://wallet.keyport.dev"},
		{"configured with trailing slash", []string{"https://wallet.keyport.dev/"}, "https://wallet.keyport.dev", http.MethodGet, http.StatusOK, "https://wallet.keyport.dev"},
		{"case folded", []string{"HTTPS://WALLET.KEYPORT.DEV"}, "https://wallet.keyport.dev", http.MethodPost, http.StatusOK, "https://wallet.keyport.dev"},
		{"unknown origin still served", []string{"https://wallet.keyport.dev"}, "https://phish.example", http.MethodPost, http.StatusOK, ""},
		{"unknown origin preflight refused", []string{"https://wallet.keyport.dev"}, "https://phish.example", http.MethodOptions, http.StatusForbidden, ""},
		{"preflight", []string{"https://wallet.keyport.dev"}, "https://wallet.keyport.dev", http.MethodOptions, http.StatusNoContent, "https://wallet.keyport.dev"},
		{"wildcard subdomain", []string{"*.keyport.dev"}, "https://preview-42.keyport.dev", http.MethodGet, http.StatusOK, "https://preview-42.keyport.dev"},
		{"wildcard over http", []string{"*.keyport.dev"}, "http://local.keyport.dev", http.MethodGet, http.StatusOK, "http://local.keyport.dev"},
		{"wildcard lookalike", []string{"*.keyport.dev"}, "https://evilkeyport.dev", http.MethodGet, http.StatusOK, ""},
		{"wildcard needs a subdomain", []string{"*.keyport.dev"}, "https://.keyport.dev", http.MethodGet, http.StatusOK, ""},
		{"same origin request", []string{"https://wallet.keyport.dev"}, "", http.MethodGet, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := corsRequest(tt.allowed, tt.method, tt.origin)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	rec := corsRequest([]string{"https://wallet.keyport.dev"}, http.MethodOptions, "https://wallet.keyport.dev")

	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "HX-Request")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_ExposedHeaders(t *testing.T) {
	rec := corsRequest([]string{"https://wallet.keyport.dev"}, http.MethodPost, "https://wallet.keyport.dev")

	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, "X-RateLimit-Remaining")
	assert.Contains(t, exposed, "HX-Redirect")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"), "only preflights list methods")
}

func TestCORS_Credentials(t *testing.T) {
	tests := []struct {
		name      string
		allowed   []string
		origin    string
		wantCreds string
	}{
		{"exact origin carries the session cookie", []string{"https://wallet.keyport.dev"}, "https://wallet.keyport.dev", "true"},
		{"wildcard origin never does", []string{"*.keyport.dev"}, "https://preview-42.keyport.dev", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := corsRequest(tt.allowed, http.MethodGet, tt.origin)
			assert.Equal(t, tt.wantCreds, rec.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, "Origin", rec.Header().Get("Vary"))
		})
	}
}
