package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrUnavailable marks failures of the lock machinery itself (redis down,
// context cancelled while queued). Callers can treat it as a signal to proceed
// without the lock rather than fail the request.
var ErrUnavailable = errors.New("lock unavailable")

// Locker serialises expensive rebuilds across instances, such as refilling
// the active-campaign cache after an invalidation. One holder per key; other
// callers wait with backoff until the holder releases or the TTL expires.
type Locker struct {
	Client  *redis.Client
	Backoff time.Duration
}

// WithLock runs fn while holding the lock for key. Errors returned by fn pass
// through unchanged; acquisition failures are wrapped in ErrUnavailable.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.Client == nil {
		return fmt.Errorf("%w: redis client not configured", ErrUnavailable)
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	backoff := l.Backoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	token := uuid.NewString()

	for {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if ok {
			defer l.release(context.Background(), key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
}

// release deletes the key only if this holder still owns it, so a lock that
// outlived its TTL cannot delete a successor's hold.
func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.Client.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.Client.Del(ctx, key).Err()
		}
	}
}
