package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"callcore/internal/presence"

	"github.com/redis/go-redis/v9"
)

// PresenceStore persists the status each account publishes.
type PresenceStore interface {
	Save(ctx context.Context, accountID string, s presence.Status, message string) error
	Load(ctx context.Context, accountID string) (presence.Status, bool, error)
}

// PresenceChannel carries every published status as JSON.
const PresenceChannel = "callcore:presence"

func presenceKey(accountID string) string {
	return "callcore:presence:" + accountID
}

// PresenceUpdate is the payload sent on PresenceChannel.
type PresenceUpdate struct {
	AccountID string    `json:"account_id"`
	Status    string    `json:"status"`
	Level     int       `json:"level"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// savePresenceScript stores the status and announces it atomically, so a
// subscriber that reads the hash after the message never sees an older value.
var savePresenceScript = redis.NewScript(`
-- KEYS[1] = presence hash key
-- ARGV[1] = channel
-- ARGV[2] = status name
-- ARGV[3] = level
-- ARGV[4] = message
-- ARGV[5] = updated_at (unix ms)
-- ARGV[6] = update payload (json)
redis.call('HSET', KEYS[1], 'name', ARGV[2], 'level', ARGV[3], 'message', ARGV[4], 'updated_at', ARGV[5])
return redis.call('PUBLISH', ARGV[1], ARGV[6])
`)

// RedisPresenceStore keeps statuses in a hash per account.
type RedisPresenceStore struct {
	rdb   *redis.Client
	clock func() time.Time
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb, clock: time.Now}
}

func (s *RedisPresenceStore) Save(ctx context.Context, accountID string, st presence.Status, message string) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	now := s.clock().UTC()
	payload, err := json.Marshal(PresenceUpdate{
		AccountID: accountID,
		Status:    st.Name,
		Level:     st.Level,
		Message:   message,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("encode presence: %w", err)
	}
	return savePresenceScript.Run(ctx, s.rdb, []string{presenceKey(accountID)},
		PresenceChannel, st.Name, st.Level, message, now.UnixMilli(), payload,
	).Err()
}

func (s *RedisPresenceStore) Load(ctx context.Context, accountID string) (presence.Status, bool, error) {
	if s.rdb == nil {
		return presence.Status{}, false, fmt.Errorf("redis client is nil")
	}
	m, err := s.rdb.HGetAll(ctx, presenceKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return presence.Status{}, false, nil
		}
		return presence.Status{}, false, err
	}
	return statusFromHash(m)
}

func statusFromHash(m map[string]string) (presence.Status, bool, error) {
	name, ok := m["name"]
	if !ok {
		return presence.Status{}, false, nil
	}
	level, err := strconv.Atoi(m["level"])
	if err != nil {
		return presence.Status{}, false, fmt.Errorf("presence level %q: %w", m["level"], err)
	}
	return presence.Status{Name: name, Level: level}, true, nil
}

// MemoryPresenceStore is an in-memory PresenceStore.
type MemoryPresenceStore struct {
	mu       sync.Mutex
	statuses map[string]presence.Status
	Err      error
}

func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{statuses: make(map[string]presence.Status)}
}

func (s *MemoryPresenceStore) Save(ctx context.Context, accountID string, st presence.Status, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.statuses[accountID] = st
	return nil
}

func (s *MemoryPresenceStore) Load(ctx context.Context, accountID string) (presence.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[accountID]
	return st, ok, nil
}
