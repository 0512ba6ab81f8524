package profile

import (
	"testing"
	"time"
)

func TestKeyedLimiterIsPerKey(t *testing.T) {
	l := newKeyedLimiter(1)
	if !l.Allow("a") {
		t.Fatal("first request for a denied")
	}
	if l.Allow("a") {
		t.Error("second request for a allowed")
	}
	if !l.Allow("b") {
		t.Error("first request for b denied")
	}
}

func TestKeyedLimiterForgetsIdleKeys(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := newKeyedLimiter(1)
	l.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.Allow(ip)
	}
	if l.size() != 3 {
		t.Fatalf("size = %d", l.size())
	}

	now = now.Add(2 * time.Minute)
	if !l.Allow("10.0.0.1") {
		t.Error("refilled key denied")
	}
	if l.size() != 1 {
		t.Errorf("size after sweep = %d, want 1", l.size())
	}
}
