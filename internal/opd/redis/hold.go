package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const holdPrefix = "opd_issue_hold:"

// IssueHold keeps one patient from running two issuance requests for the
// same session at the same time. The database stays the source of truth;
// the hold only short-circuits duplicate clicks.
type IssueHold struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewIssueHold(client *redis.Client, ttl time.Duration) *IssueHold {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &IssueHold{Client: client, TTL: ttl}
}

func holdKey(sessionID, patientEmail string) string {
	return fmt.Sprintf("%s%s:%s", holdPrefix, sessionID, patientEmail)
}

// Acquire returns false when another request already holds the key.
func (h *IssueHold) Acquire(ctx context.Context, sessionID, patientEmail, token string) (bool, error) {
	return h.Client.SetNX(ctx, holdKey(sessionID, patientEmail), token, h.TTL).Result()
}

// Release drops the hold only if token still owns it.
func (h *IssueHold) Release(ctx context.Context, sessionID, patientEmail, token string) error {
	key := holdKey(sessionID, patientEmail)
	val, err := h.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val != token {
		return nil
	}
	return h.Client.Del(ctx, key).Err()
}
