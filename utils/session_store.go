package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/furnifit/furnifit-server/models"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no session record exists for an id,
// either because it expired or because the user logged out.
var ErrSessionNotFound = errors.New("session not found")

const sessionKeyPrefix = "session:"

// SessionStore is the single owner of session records. Everything that
// reads or mutates a session (auth middleware, token ledger, the balance
// refresher) goes through it rather than touching Redis keys directly.
type SessionStore struct {
	Redis *redis.Client
}

func NewSessionStore(redisClient *redis.Client) *SessionStore {
	return &SessionStore{Redis: redisClient}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *SessionStore) Save(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.Redis.Set(ctx, sessionKey(session.ID), raw, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.Redis.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.Redis.Del(ctx, sessionKey(id)).Err()
}

// SetTokenBalance overwrites the cached balance on an existing session.
// Missing sessions are not an error; the record may have expired between
// the read that triggered the write and the write itself.
func (s *SessionStore) SetTokenBalance(ctx context.Context, id string, tokens int) error {
	session, err := s.Get(ctx, id)
	if err == ErrSessionNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	session.TokenBalance = &tokens
	return s.Save(ctx, session)
}

// ScanIDs walks every live session id. Used by the background balance
// refresher; SCAN keeps Redis responsive while it iterates.
func (s *SessionStore) ScanIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)

	for {
		keys, next, err := s.Redis.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, key[len(sessionKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return ids, nil
}

// Touch extends the session TTL on activity. Best effort; a failed renewal
// just lets the session expire on its original schedule.
func (s *SessionStore) Touch(ctx context.Context, id string) {
	s.Redis.Expire(ctx, sessionKey(id), sessionTTL)
}
