package http

import (
	"crypto/tls"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.7:5123", "", "", "203.0.113.7"},
		{"untrusted peer ignores forwarding", "203.0.113.7:5123", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy uses first forwarded", "10.0.0.2:80", "198.51.100.1, 10.0.0.3", "", "198.51.100.1"},
		{"trusted proxy falls back to real ip", "127.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"trusted proxy with garbage headers", "192.168.1.1:80", "not-an-ip", "also-bad", "192.168.1.1"},
		{"ipv6 loopback proxy", "[::1]:80", "2001:db8::1", "", "2001:db8::1"},
		{"no port", "203.0.113.7", "", "", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/dashboard", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetector_Inspect(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"normal", "GET", "/api/transactions?month=2026-10", "Mozilla/5.0", false},
		{"path traversal", "GET", "/api/../../etc/passwd", "", true},
		{"dotenv probe", "GET", "/.env", "", true},
		{"eval in query", "GET", "/api/transactions?type=eval(1)", "", true},
		{"scanner agent", "GET", "/healthz", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
		{"long url", "GET", "/api/transactions?q=" + strings.Repeat("a", 2100), "", true},
	}

	d := &detector{}
	flagged := int64(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "http://example.com"+tt.target, nil)
			if tt.agent != "" {
				r.Header.Set("User-Agent", tt.agent)
			}
			if got := d.inspect(r); got != tt.want {
				t.Errorf("inspect() = %v, want %v", got, tt.want)
			}
			if tt.want {
				flagged++
			}
		})
	}
	if d.count() != flagged {
		t.Errorf("count() = %d, want %d", d.count(), flagged)
	}
}

func TestSetSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/profile", nil)
	setSecurityHeaders(w, r)

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for name, value := range want {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP request")
	}

	w = httptest.NewRecorder()
	r.TLS = &tls.ConnectionState{}
	setSecurityHeaders(w, r)
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing on TLS request")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()

	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if !rl.allow("198.51.100.1", start.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("request %d rejected under the limit", i+1)
		}
	}
	if rl.allow("198.51.100.1", start.Add(5*time.Second)) {
		t.Error("fourth request in the window allowed")
	}
	if !rl.allow("198.51.100.2", start.Add(5*time.Second)) {
		t.Error("other client rejected")
	}
	if !rl.allow("198.51.100.1", start.Add(61*time.Second)) {
		t.Error("request after the window rejected")
	}
	if rl.rejected() != 1 {
		t.Errorf("rejected() = %d, want 1", rl.rejected())
	}

	if rl.activeClients() != 2 {
		t.Errorf("activeClients() = %d, want 2", rl.activeClients())
	}
	rl.cleanupStaleEntries(start.Add(11 * time.Minute))
	if rl.activeClients() != 1 {
		t.Errorf("activeClients() after cleanup = %d, want 1", rl.activeClients())
	}
}

func TestRateLimiter_DefaultLimit(t *testing.T) {
	rl := newRateLimiter(0)
	defer rl.stop()
	if rl.limit != defaultRequestsPerMinute {
		t.Errorf("limit = %d, want %d", rl.limit, defaultRequestsPerMinute)
	}
}
