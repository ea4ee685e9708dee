package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const transcriptKeyPrefix = "chat_transcript:"

// transcriptTTL keeps recent transcripts around long enough for an agent to
// pick up a handoff with context; the Postgres log is the durable record.
const transcriptTTL = 72 * time.Hour

// TranscriptEntry is one message in the Redis-cached recent transcript.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore caches the tail of each conversation in Redis so agent
// screens load without hitting Postgres. All methods are no-ops on a nil
// store; Redis being down never blocks message handling.
type TranscriptStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	maxMessages int64
}

// NewTranscriptStore creates a transcript cache, or nil when Redis is not
// configured.
func NewTranscriptStore(redisClient *redis.Client) *TranscriptStore {
	if redisClient == nil {
		return nil
	}
	return &TranscriptStore{
		redis:       redisClient,
		tracer:      otel.Tracer("chatplatform/conversation-transcript"),
		maxMessages: 200,
	}
}

// Append adds one entry to the conversation tail, trimming to the window.
func (s *TranscriptStore) Append(ctx context.Context, conversationID string, entry TranscriptEntry) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if conversationID == "" {
		return errors.New("conversation: transcript conversationID required")
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("conversation: marshal transcript entry: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.transcript.append")
	defer span.End()

	key := transcriptKey(conversationID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, transcriptTTL)
	pipe.LTrim(ctx, key, -s.maxMessages, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append transcript entry: %w", err)
	}
	return nil
}

// List returns up to limit recent entries in chronological order; limit <= 0
// returns the whole cached window.
func (s *TranscriptStore) List(ctx context.Context, conversationID string, limit int64) ([]TranscriptEntry, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if conversationID == "" {
		return nil, errors.New("conversation: transcript conversationID required")
	}

	ctx, span := s.tracer.Start(ctx, "conversation.transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, transcriptKey(conversationID), start, -1).Result()
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, redis.Nil) {
			return []TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("conversation: list transcript: %w", err)
	}

	out := make([]TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func transcriptKey(conversationID string) string {
	return transcriptKeyPrefix + conversationID
}
