package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SyncLock is a per-student lock shared by every worker replica.
type SyncLock struct {
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewSyncLock creates a lock with the given TTL (TTLSyncLock when zero).
func NewSyncLock(cache *Cache, ttl time.Duration, logger *slog.Logger) *SyncLock {
	if ttl <= 0 {
		ttl = TTLSyncLock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncLock{cache: cache, ttl: ttl, logger: logger}
}

// TryAcquire takes the lock of studentID. It returns ok=false when another
// holder owns it. The returned release func is never nil.
func (l *SyncLock) TryAcquire(ctx context.Context, studentID string) (func(), bool, error) {
	key := LockKey("sync:" + studentID)
	token := uuid.New().String()

	ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}

	release := func() {
		// The sync context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.cache.Client(), []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release sync lock", "student_id", studentID, "error", err)
		}
	}
	return release, true, nil
}
