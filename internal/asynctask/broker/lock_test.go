package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestAcquireAndRelease(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	lock, ok, err := Acquire(ctx, client, "/tmp/ws1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected to acquire lock")
	}

	held, err := Holder(ctx, client, "/tmp/ws1")
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if !held {
		t.Fatal("expected lock to be held")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	held, err = Holder(ctx, client, "/tmp/ws1")
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if held {
		t.Fatal("expected lock to be released")
	}
}

func TestAcquireFailsWhenAlreadyHeld(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, ok, err := Acquire(ctx, client, "/tmp/ws2", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}

	_, ok, err = Acquire(ctx, client, "/tmp/ws2", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to fail")
	}
}

func TestReleaseDoesNotStealReacquiredLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	lock1, _, _ := Acquire(ctx, client, "/tmp/ws3", time.Minute)
	_ = client.Del(ctx, keyPrefix+"/tmp/ws3")
	lock2, ok, err := Acquire(ctx, client, "/tmp/ws3", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected reacquire to succeed, ok=%v err=%v", ok, err)
	}

	if err := lock1.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	held, err := Holder(ctx, client, "/tmp/ws3")
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if !held {
		t.Fatal("expected lock2's hold to survive lock1's stale release")
	}
	_ = lock2
}
