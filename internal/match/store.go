package match

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store owns the Redis layout for sessions:
//
//	cc:session:<id>     JSON session record
//	cc:invite:<token>   token -> session id, deleted on join
//	cc:index:user:<id>  set of session ids the user participates in
//	cc:active:<id>      the user's active-session pointer
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string { return "cc:session:" + strings.TrimSpace(id) }

func inviteKey(token string) string { return "cc:invite:" + strings.TrimSpace(token) }

func userIdxKey(userID string) string { return "cc:index:user:" + strings.TrimSpace(userID) }

func activeKey(userID string) string { return "cc:active:" + strings.TrimSpace(userID) }

func (s *Store) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Load returns nil, nil when the session does not exist.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) IndexParticipant(ctx context.Context, sessionID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	key := userIdxKey(userID)
	if err := s.rdb.SAdd(ctx, key, sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	// keep the index from outliving its sessions
	_ = s.rdb.Expire(ctx, key, s.ttl).Err()
	return nil
}

func (s *Store) SessionIDsByUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, userIdxKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return ids, nil
}

// AllocateInvite reserves a fresh invite token mapping to sessionID. Collisions
// are retried a bounded number of times.
func (s *Store) AllocateInvite(ctx context.Context, sessionID string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		token, err := tokenGen()
		if err != nil {
			return "", err
		}
		ok, err := s.rdb.SetNX(ctx, inviteKey(token), sessionID, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if ok {
			return token, nil
		}
	}
	return "", fmt.Errorf("invite token space exhausted")
}

// ResolveInvite maps a token to its session id; empty when unknown.
func (s *Store) ResolveInvite(ctx context.Context, token string) (string, error) {
	id, err := s.rdb.Get(ctx, inviteKey(token)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return id, nil
}

func (s *Store) SetActive(ctx context.Context, userID, sessionID string) error {
	if err := s.rdb.Set(ctx, activeKey(userID), sessionID, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) ActivePointer(ctx context.Context, userID string) (string, error) {
	id, err := s.rdb.Get(ctx, activeKey(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return id, nil
}

func (s *Store) ClearActive(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, activeKey(userID)).Err()
}

// tokenGen returns 12 upper alnum characters for invite links.
func tokenGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}
