package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestUserLimiterBurstAndRefill(t *testing.T) {
	l := newUserLimiter(RateLimitOptions{Interval: time.Second, Burst: 2})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if !l.allow(1, now) || !l.allow(1, now) {
		t.Fatal("burst of two should pass")
	}
	if l.allow(1, now) {
		t.Fatal("third event within the same instant must be limited")
	}
	if !l.allow(2, now) {
		t.Fatal("buckets are per user")
	}
	if !l.allow(1, now.Add(time.Second)) {
		t.Fatal("one token refills after the interval")
	}
}

func TestUserLimiterForgetsIdleUsers(t *testing.T) {
	l := newUserLimiter(RateLimitOptions{Interval: time.Second, IdleTTL: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.allow(1, now)
	l.allow(2, now.Add(2*time.Minute))
	if _, ok := l.buckets[1]; ok {
		t.Fatal("idle bucket should be collected")
	}
	if len(l.buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(l.buckets))
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback":     {Callback: &tele.Callback{}},
		"message":      {Message: &tele.Message{}},
		"inline_query": {Query: &tele.Query{}},
		"other":        {},
	}
	for want, upd := range cases {
		if got := UpdateKind(upd); got != want {
			t.Errorf("UpdateKind = %q, want %q", got, want)
		}
	}
}
