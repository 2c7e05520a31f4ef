package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const sessionKeyPrefix = "radar:session:"

// ErrStaleSession means the incoming log does not extend the stored one:
// another request for the same session already moved it forward.
var ErrStaleSession = errors.New("conversation: session log is ahead of the request")

// Store keeps a copy of each session's turn log in Redis so out-of-order
// requests can be detected. It is optional; the caller-held log stays the
// source of truth.
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Store{
		redis:  redisClient,
		tracer: otel.Tracer("radar.internal.conversation.store"),
		ttl:    ttl,
	}
}

// Load returns the stored log, or nil when the session is unknown.
func (s *Store) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	if s == nil {
		return nil, nil
	}
	ctx, span := s.tracer.Start(ctx, "conversation.session.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	return turns, nil
}

// Save stores turns if they extend the stored log. The read and write run
// under WATCH, so a concurrent writer makes this call fail with
// ErrStaleSession instead of silently overwriting.
func (s *Store) Save(ctx context.Context, sessionID string, turns []Turn) error {
	if s == nil {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "conversation.session.save")
	defer span.End()

	key := sessionKey(sessionID)
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("conversation: marshal session: %w", err)
	}

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var stored []Turn
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			if !isPrefix(stored, turns) {
				return ErrStaleSession
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleSession), errors.Is(err, redis.TxFailedErr):
		span.RecordError(ErrStaleSession)
		return ErrStaleSession
	default:
		span.RecordError(err)
		return fmt.Errorf("conversation: save session: %w", err)
	}
}

// Clear removes the session, used once the report has been accepted.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if s == nil {
		return nil
	}
	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("conversation: clear session: %w", err)
	}
	return nil
}

func isPrefix(prefix, turns []Turn) bool {
	if len(prefix) > len(turns) {
		return false
	}
	for i := range prefix {
		if prefix[i] != turns[i] {
			return false
		}
	}
	return true
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
