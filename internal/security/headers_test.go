package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serve(cfg *SecurityConfig, r *http.Request) *httptest.ResponseRecorder {
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestDefaultHeaders(t *testing.T) {
	w := serve(nil, httptest.NewRequest(http.MethodGet, "/", nil))

	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "script-src 'self'")
	assert.NotContains(t, csp, "script-src 'self' 'unsafe-inline'")
	assert.Contains(t, csp, "connect-src 'self' ws: wss:")
	assert.Contains(t, csp, "frame-ancestors 'none'")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))

	// HSTS is only sent over TLS.
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	w = serve(nil, r)
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}

func TestEmptyConfig(t *testing.T) {
	w := serve(&SecurityConfig{}, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("X-Frame-Options"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBuildHeaders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "csp order",
			got: buildCSPHeader(&CSPConfig{
				DefaultSrc: []string{"'self'"},
				ImgSrc:     []string{"data:"},
				ReportURI:  "/csp",
			}),
			want: "default-src 'self'; img-src data:; report-uri /csp",
		},
		{
			name: "hsts preload",
			got:  buildHSTSHeader(&HSTSConfig{MaxAge: 60, Preload: true}),
			want: "max-age=60; preload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
