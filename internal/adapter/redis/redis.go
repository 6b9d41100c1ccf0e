// Package redis stores sessions in Redis so several API instances can share
// them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"darim/internal/domain"

	"github.com/redis/go-redis/v9"
)

var _ domain.SessionRepository = (*SessionRepo)(nil)

const (
	sessionKeyPrefix     = "darim:session:"
	userSessionKeyPrefix = "darim:user-sessions:"
	maxWatchRetries      = 5
)

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and pings the server.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// SessionRepo keeps each session under its own key with a TTL and indexes
// session ids per user in a set.
type SessionRepo struct {
	rdb redis.UniversalClient
	now func() time.Time
}

// NewSessionRepo creates a session repository on rdb.
func NewSessionRepo(rdb redis.UniversalClient) *SessionRepo {
	return &SessionRepo{rdb: rdb, now: time.Now}
}

type sessionRecord struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Version   int64     `json:"version"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func userSessionsKey(userID int64) string {
	return userSessionKeyPrefix + strconv.FormatInt(userID, 10)
}

// Create stores the session until it expires.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(sessionRecord(*s))
	if err != nil {
		return err
	}
	idx := userSessionsKey(s.UserID)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(s.ID), b, ttl)
		p.SAdd(ctx, idx, s.ID)
		p.Expire(ctx, idx, ttl)
		return nil
	})
	return err
}

// Get returns the session, or nil when it is absent or expired.
func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	rec, err := r.load(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if !r.now().Before(rec.ExpiresAt) {
		return nil, nil
	}
	s := domain.Session(*rec)
	return &s, nil
}

func (r *SessionRepo) load(ctx context.Context, id string) (*sessionRecord, error) {
	b, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec sessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes a session and its index entry.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	rec, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(id))
		if rec != nil {
			p.SRem(ctx, userSessionsKey(rec.UserID), id)
		}
		return nil
	})
	return err
}

// DeleteByUser removes every session in the user's index. The index is
// watched so a concurrent Create retries the removal.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID int64) error {
	idx := userSessionsKey(userID)
	txf := func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, idx).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, id := range ids {
				p.Del(ctx, sessionKey(id))
			}
			p.Del(ctx, idx)
			return nil
		})
		return err
	}
	for range maxWatchRetries {
		err := r.rdb.Watch(ctx, txf, idx)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("delete sessions of user %d: %w", userID, redis.TxFailedErr)
}

// DeleteExpired is a no-op: session keys expire on their own.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	return nil
}
