package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	c := &Chain{}
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	c.Add(tag("outer"))
	c.Add(tag("inner"))
	assert.Equal(t, 2, c.Len())

	h := c.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecovery(t *testing.T) {
	c := NewChain(nil, nil)
	h := c.Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	c := NewChain(nil, NewOriginValidator([]string{"https://example.com"}))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := c.Apply(ok)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{name: "listed origin", method: http.MethodGet, origin: "https://example.com", wantOrigin: "https://example.com", wantStatus: http.StatusTeapot},
		{name: "same host", method: http.MethodGet, origin: "http://example.org", wantOrigin: "http://example.org", wantStatus: http.StatusTeapot},
		{name: "foreign origin", method: http.MethodGet, origin: "https://evil.test", wantStatus: http.StatusTeapot},
		{name: "preflight", method: http.MethodOptions, origin: "https://example.com", wantOrigin: "https://example.com", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://example.org/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestOriginValidator(t *testing.T) {
	v := NewOriginValidator([]string{"https://Example.com/", "http://localhost:3000"})

	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"https://example.com", "localhost:8080", true},
		{"http://localhost:3000", "localhost:8080", true},
		{"http://localhost:8080", "localhost:8080", true},
		{"http://localhost:9090", "localhost:8080", false},
		{"file://local", "local", false},
		{"javascript:alert(1)", "localhost:8080", false},
		{"", "localhost:8080", false},
		{"not a url", "localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Allowed(tt.origin, tt.host))
		})
	}

	assert.ElementsMatch(t, []string{"example.com", "localhost:3000"}, v.Patterns())
}
