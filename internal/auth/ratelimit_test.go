package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLimiter(t *testing.T, max int, window time.Duration) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		MaxFailedAttempts: max,
		Window:            window,
		CleanupInterval:   time.Hour, // never sweeps during a test
	})
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_ThresholdAndReset(t *testing.T) {
	rl := testLimiter(t, 3, time.Minute)
	ip := "203.0.113.7"

	if rl.IsLimited(ip) {
		t.Error("IsLimited() = true with no failures")
	}

	rl.RecordFailure(ip)
	rl.RecordFailure(ip)
	if rl.IsLimited(ip) {
		t.Error("IsLimited() = true below the cap")
	}

	rl.RecordFailure(ip)
	if !rl.IsLimited(ip) {
		t.Error("IsLimited() = false at the cap")
	}

	rl.Reset(ip)
	if rl.IsLimited(ip) {
		t.Error("IsLimited() = true after Reset()")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl := testLimiter(t, 1, 40*time.Millisecond)
	ip := "203.0.113.7"

	rl.RecordFailure(ip)
	if !rl.IsLimited(ip) {
		t.Fatal("IsLimited() = false right after hitting the cap")
	}

	time.Sleep(50 * time.Millisecond)
	if rl.IsLimited(ip) {
		t.Error("IsLimited() = true after the window lapsed")
	}

	// A failure after the lapse starts a fresh count, not a carried-over one.
	rl.RecordFailure(ip)
	if !rl.IsLimited(ip) {
		t.Error("IsLimited() = false after a fresh failure with cap 1")
	}
}

func TestRateLimiter_AddressesAreIndependent(t *testing.T) {
	rl := testLimiter(t, 1, time.Minute)

	rl.RecordFailure("203.0.113.7")
	if rl.IsLimited("203.0.113.8") {
		t.Error("IsLimited() = true for an address with no failures")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded-for", "198.51.100.4", "", "10.0.0.1:9999", "198.51.100.4"},
		{"forwarded-for chain keeps first hop", "198.51.100.4, 10.0.0.2, 10.0.0.3", "", "10.0.0.1:9999", "198.51.100.4"},
		{"forwarded-for beats real-ip", "198.51.100.4", "198.51.100.5", "10.0.0.1:9999", "198.51.100.4"},
		{"real-ip", "", "198.51.100.5", "10.0.0.1:9999", "198.51.100.5"},
		{"remote addr strips port", "", "", "198.51.100.6:51515", "198.51.100.6"},
		{"remote addr without port", "", "", "198.51.100.6", "198.51.100.6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/login", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
