// Package broker provides the Redis-backed advisory lock used to
// deduplicate concurrent submissions against the same workspace, grounded
// on the original Celery broker-inspection dedup and the teacher's
// go-redis usage for queue-adjacent coordination.
package broker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "autoscorer:lock:"

// releaseScript performs a compare-and-delete: the lock is only removed if
// the caller still holds the token it was acquired with, so a lock another
// holder has since re-acquired (after expiry) is never stolen.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Lock is a single-key advisory lock held by this process.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// New returns a broker backed by the given Redis connection string
// (e.g. "redis://localhost:6379/0").
func New(addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis address: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Acquire attempts to take the advisory lock for workspace, keyed on its
// normalized path, holding it for at most ttl. It returns ok=false without
// error when another holder already has the lock.
func Acquire(ctx context.Context, client *redis.Client, workspace string, ttl time.Duration) (*Lock, bool, error) {
	token, err := randomToken()
	if err != nil {
		return nil, false, err
	}
	key := keyPrefix + normalizeWorkspace(workspace)
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock for %s: %w", workspace, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{client: client, key: key, token: token}, true, nil
}

// Release drops the lock if it is still held by this token.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// Holder reports whether workspace's lock is currently held, used to answer
// "is this workspace in flight" without a round trip through the task store.
func Holder(ctx context.Context, client *redis.Client, workspace string) (bool, error) {
	n, err := client.Exists(ctx, keyPrefix+normalizeWorkspace(workspace)).Result()
	if err != nil {
		return false, fmt.Errorf("check lock for %s: %w", workspace, err)
	}
	return n > 0, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// normalizeWorkspace canonicalizes a workspace path for use as a lock key,
// so "/w", "/w/", and a relative path to the same directory all dedupe
// against one lock.
func normalizeWorkspace(workspace string) string {
	if abs, err := filepath.Abs(workspace); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(workspace)
}
