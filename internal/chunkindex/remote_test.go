package chunkindex

import (
	"context"
	"testing"
	"time"
)

// These cover the parts of RemoteIndex that don't require a live Redis
// endpoint — a miniredis-backed suite is not wired since no fake-Redis
// library is in the dependency set this service draws from. The
// conditional-write guarantee itself is exercised against MemoryIndex in
// memory_test.go; what's unique to RemoteIndex (hashing, config
// defaulting, graceful startup against an unreachable Redis) is covered
// here instead.

func TestHashKey_NamespacesBySession(t *testing.T) {
	if got := hashKey("sess-1"); got != "chunkindex:sess-1" {
		t.Errorf("hashKey(sess-1) = %q, want %q", got, "chunkindex:sess-1")
	}
}

func TestField_StringifiesIndex(t *testing.T) {
	if got := field(3); got != "3" {
		t.Errorf("field(3) = %q, want %q", got, "3")
	}
}

func TestNewRemoteIndex_UnreachableRedisDegradesGracefully(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ri := NewRemoteIndex(ctx, RemoteConfig{
		Address:     "127.0.0.1:1", // nothing listens here
		DialTimeout: 50 * time.Millisecond,
	}, nil)
	defer ri.Close()

	if ri.breaker.Failures() != 1 {
		t.Fatalf("Failures() = %d, want 1 after a failed initial ping", ri.breaker.Failures())
	}
	if !ri.breaker.Allow() {
		t.Fatal("one failed ping should not trip the breaker open (threshold is 3)")
	}
}

func TestNewRemoteIndex_DialTimeoutDefaults(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ri := NewRemoteIndex(ctx, RemoteConfig{Address: "127.0.0.1:1"}, nil)
	defer ri.Close()

	if ri.client == nil {
		t.Fatal("expected a configured redis client even when DialTimeout is unset")
	}
}

func TestRemoteIndex_SatisfiesIndexInterface(t *testing.T) {
	var _ Index = (*RemoteIndex)(nil)
}
