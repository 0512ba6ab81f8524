package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionInfo struct {
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps login sessions in Redis so they survive restarts and
// can be shared by several server processes.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new session store with the given Redis client
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func userSessionsKey(userID int64) string {
	return fmt.Sprintf("user:%d:sessions", userID)
}

// Create stores a session that Redis expires after ttl.
func (s *SessionStore) Create(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error {
	now := time.Now().UTC()
	info := SessionInfo{UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// The per-user index lives as long as the newest session.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sessionID), infoJSON, ttl)
		pipe.SAdd(ctx, userSessionsKey(userID), sessionID)
		pipe.Expire(ctx, userSessionsKey(userID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Lookup returns the user id owning the session.
func (s *SessionStore) Lookup(ctx context.Context, sessionID string) (int64, error) {
	infoJSON, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to get session: %w", err)
	}

	var info SessionInfo
	if err := json.Unmarshal(infoJSON, &info); err != nil {
		return 0, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return info.UserID, nil
}

// Delete removes the session
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

// DeleteUser removes all sessions of userID except the one named by except.
func (s *SessionStore) DeleteUser(ctx context.Context, userID int64, except string) error {
	key := userSessionsKey(userID)
	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			if id == except {
				continue
			}
			pipe.Del(ctx, sessionKey(id))
			pipe.SRem(ctx, key, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}
