package auth

import (
	"context"
	"testing"
	"time"
)

func TestSessionCache_CachesActiveSessions(t *testing.T) {
	next := &stubSessions{active: map[string]bool{"s-1": true}}
	cache := NewSessionCache(next, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := cache.SessionActive(ctx, "s-1")
		if err != nil || !ok {
			t.Fatalf("expected active session, got %v %v", ok, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 lookup, got %d", next.calls)
	}
}

func TestSessionCache_DoesNotCacheEndedSessions(t *testing.T) {
	next := &stubSessions{active: map[string]bool{}}
	cache := NewSessionCache(next, 16, time.Minute)

	cache.SessionActive(context.Background(), "s-2")
	cache.SessionActive(context.Background(), "s-2")
	if next.calls != 2 {
		t.Errorf("expected every lookup to reach the store, got %d", next.calls)
	}
}

func TestSessionCache_Evict(t *testing.T) {
	next := &stubSessions{active: map[string]bool{"s-1": true}}
	cache := NewSessionCache(next, 16, time.Minute)
	ctx := context.Background()

	cache.SessionActive(ctx, "s-1")
	next.active["s-1"] = false
	cache.Evict("s-1")

	ok, _ := cache.SessionActive(ctx, "s-1")
	if ok {
		t.Error("expected evicted session to be re-checked and found inactive")
	}
}

func TestSessionCache_EmptyID(t *testing.T) {
	next := &stubSessions{}
	ok, err := NewSessionCache(next, 16, time.Minute).SessionActive(context.Background(), "")
	if ok || err != nil || next.calls != 0 {
		t.Errorf("expected empty id to be inactive without lookup")
	}
}
