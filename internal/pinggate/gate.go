// Package pinggate rate-limits opponent reminders. Each (session, player)
// pair gets one ping per cooldown window, reserved atomically in Redis so
// concurrent attempts cannot double-send.
package pinggate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCooldown is returned while the sender's window has not elapsed yet.
var ErrCooldown = errors.New("ping cooldown active")

type Gate struct {
	rdb      *redis.Client
	cooldown time.Duration
}

func New(rdb *redis.Client, cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	return &Gate{rdb: rdb, cooldown: cooldown}
}

func (g *Gate) Cooldown() time.Duration { return g.cooldown }

// Receipt identifies a successful reservation so a failed delivery can be
// rolled back without waiting out the window.
type Receipt struct {
	key string
}

func pingKey(sessionID, userID string) string {
	return "cc:ping:" + strings.TrimSpace(sessionID) + ":" + strings.TrimSpace(userID)
}

// Allow reserves the sender's ping slot. On success the slot stays taken for
// the full cooldown. When the slot is already taken, ErrCooldown is returned
// together with the remaining wait.
func (g *Gate) Allow(ctx context.Context, sessionID, userID string) (*Receipt, time.Duration, error) {
	key := pingKey(sessionID, userID)
	ok, err := g.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.cooldown).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("ping reserve: %w", err)
	}
	if ok {
		return &Receipt{key: key}, 0, nil
	}
	remaining, err := g.rdb.PTTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		remaining = g.cooldown
	}
	return nil, remaining, ErrCooldown
}

// Rollback releases a reservation after a failed delivery, so the sender may
// retry immediately instead of burning the window on a message nobody got.
func (g *Gate) Rollback(ctx context.Context, r *Receipt) error {
	if r == nil || r.key == "" {
		return nil
	}
	return g.rdb.Del(ctx, r.key).Err()
}
