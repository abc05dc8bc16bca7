package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodPost, "/summary", nil)
	r.RemoteAddr = "203.0.113.7:5555"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "203.0.113.7", d.ClientIP(r), "untrusted peer cannot spoof")

	r.RemoteAddr = "10.0.0.2:80"
	assert.Equal(t, "198.51.100.1", d.ClientIP(r))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", d.ClientIP(r))

	r.Header.Set("X-Real-IP", "garbage")
	assert.Equal(t, "10.0.0.2", d.ClientIP(r))

	assert.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))
	assert.Error(t, d.AddTrustedProxy("nope"))
}

func TestIsSuspicious(t *testing.T) {
	d := NewDetector()
	assert.True(t, d.IsSuspicious(httptest.NewRequest(http.MethodGet, "/../.env", nil)))
	assert.True(t, d.IsSuspicious(httptest.NewRequest(http.MethodGet, "/?q=union+select", nil)))

	r := httptest.NewRequest(http.MethodPost, "/summary", nil)
	assert.False(t, d.IsSuspicious(r))
	r.Header.Set("User-Agent", "sqlmap/1.7")
	assert.True(t, d.IsSuspicious(r))

	assert.Equal(t, int64(3), d.SuspiciousRequests())
}

func TestHeaders(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "https://telegram.org")
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, rr.Header().Get("X-Frame-Options"), "the page is framed by Telegram")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
}

func TestStaticAssetMiddleware(t *testing.T) {
	h := StaticAssetMiddleware(3600)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}
