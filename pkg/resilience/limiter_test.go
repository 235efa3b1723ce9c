package resilience

import (
	"testing"
	"time"
)

func TestKeyedLimiterPerKey(t *testing.T) {
	now := time.Unix(100, 0)
	l := NewKeyedLimiter(LimiterOpts{Rate: 1, Burst: 2})
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatal("third call should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("other keys have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatal("token should refill after a second")
	}
}

func TestKeyedLimiterSweepsIdle(t *testing.T) {
	now := time.Unix(100, 0)
	l := NewKeyedLimiter(LimiterOpts{Rate: 1, Burst: 1, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("len = %d", l.Len())
	}
	now = now.Add(2 * time.Minute)
	l.Allow("c")
	if l.Len() != 1 {
		t.Fatalf("len = %d, want idle keys swept", l.Len())
	}
}
