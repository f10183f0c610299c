package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockLost indicates the lock expired or was taken over before release.
var ErrLockLost = errors.New("platform/cache: lock no longer held")

// Locker provides best-effort mutual exclusion across workers.
type Locker struct {
	client redis.UniversalClient
}

// NewLocker wraps a redis client.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// TryLock sets key if absent. ok is false when another holder has it. The
// returned release func only removes the key while this caller still owns it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("platform/cache: lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("platform/cache: unlock %s: %w", key, err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}
	return release, true, nil
}
