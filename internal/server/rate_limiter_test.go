package server

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limiter := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("u1") {
			t.Fatalf("request %d denied within limit", i+1)
		}
	}
	if limiter.Allow("u1") {
		t.Fatal("request over limit allowed")
	}
}

func TestRateLimiterIsPerKey(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)

	if !limiter.Allow("u1") {
		t.Fatal("first key denied")
	}
	if !limiter.Allow("u2") {
		t.Fatal("second key denied")
	}
	if limiter.Allow("u1") {
		t.Fatal("exhausted key allowed")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	limiter := newRateLimiter(1, 10*time.Millisecond)

	if !limiter.Allow("u1") {
		t.Fatal("first request denied")
	}
	if limiter.Allow("u1") {
		t.Fatal("second request allowed within window")
	}

	time.Sleep(20 * time.Millisecond)
	if !limiter.Allow("u1") {
		t.Fatal("request denied after window elapsed")
	}
}

func TestRateLimiterRejectsEmptyKey(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	if limiter.Allow("") {
		t.Fatal("empty key allowed")
	}
}
