package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyFmt = "session:%d"

// SessionTTL is the inactivity window; every authenticated request renews it.
const SessionTTL = 30 * time.Minute

var ErrNoSession = errors.New("no session")

// Sessions keeps one live token per user.
type Sessions interface {
	Set(ctx context.Context, userID uint, token string, ttl time.Duration) error
	Get(ctx context.Context, userID uint) (string, error)
	Delete(ctx context.Context, userID uint) error
}

type RedisSessions struct {
	rdb *redis.Client
}

func NewRedisSessions(rdb *redis.Client) *RedisSessions {
	return &RedisSessions{rdb: rdb}
}

func (s *RedisSessions) Set(ctx context.Context, userID uint, token string, ttl time.Duration) error {
	return s.rdb.Set(ctx, fmt.Sprintf(sessionKeyFmt, userID), token, ttl).Err()
}

func (s *RedisSessions) Get(ctx context.Context, userID uint) (string, error) {
	tok, err := s.rdb.Get(ctx, fmt.Sprintf(sessionKeyFmt, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	return tok, err
}

func (s *RedisSessions) Delete(ctx context.Context, userID uint) error {
	return s.rdb.Del(ctx, fmt.Sprintf(sessionKeyFmt, userID)).Err()
}

// OnlineUserCount returns the number of unique users with active sessions.
func (s *RedisSessions) OnlineUserCount(ctx context.Context) (int, error) {
	var cursor uint64
	userIds := make(map[string]struct{})
	for {
		keys, newCursor, err := s.rdb.Scan(ctx, cursor, "session:*", 100).Result()
		if err != nil {
			return 0, err
		}
		for _, key := range keys {
			parts := strings.Split(key, ":")
			if len(parts) == 2 && parts[0] == "session" && parts[1] != "" {
				userIds[parts[1]] = struct{}{}
			}
		}
		if newCursor == 0 {
			break
		}
		cursor = newCursor
	}
	return len(userIds), nil
}

// MemorySessions is the single-process fallback used when no Redis address
// is configured.
type MemorySessions struct {
	mu      sync.Mutex
	entries map[uint]memorySession
	now     func() time.Time
}

type memorySession struct {
	token   string
	expires time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{entries: make(map[uint]memorySession), now: time.Now}
}

func (s *MemorySessions) Set(_ context.Context, userID uint, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = memorySession{token: token, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessions) Get(_ context.Context, userID uint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok || !s.now().Before(e.expires) {
		delete(s.entries, userID)
		return "", ErrNoSession
	}
	return e.token, nil
}

func (s *MemorySessions) Delete(_ context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}
