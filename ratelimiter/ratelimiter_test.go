package ratelimiter

import (
	"testing"

	"github.com/vulbsti/loanmatchmaker/model"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if err := l.Allow(ClassMatching, "sess-1"); err != nil {
			t.Fatalf("Allow() call %d: %v", i, err)
		}
	}
}

func TestAllowExceedsLimit(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if err := l.Allow(ClassMatching, "sess-1"); err != nil {
			t.Fatalf("Allow() call %d: %v", i, err)
		}
	}
	err := l.Allow(ClassMatching, "sess-1")
	if err == nil {
		t.Fatalf("expected rate limit error on 4th matching call")
	}
	if model.KindOf(err) != model.KindRateLimited {
		t.Fatalf("KindOf(err) = %v, want RateLimited", model.KindOf(err))
	}
}

func TestAllowDifferentKeysIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if err := l.Allow(ClassMatching, "sess-a"); err != nil {
			t.Fatalf("sess-a call %d: %v", i, err)
		}
	}
	if err := l.Allow(ClassMatching, "sess-b"); err != nil {
		t.Fatalf("sess-b first call should not be rate limited: %v", err)
	}
}

func TestAllowDifferentClassesIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if err := l.Allow(ClassMatching, "sess-1"); err != nil {
			t.Fatalf("matching call %d: %v", i, err)
		}
	}
	if err := l.Allow(ClassChat, "sess-1"); err != nil {
		t.Fatalf("chat bucket should be independent of matching bucket: %v", err)
	}
}
