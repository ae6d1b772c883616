package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps each party document in a Redis hash, one entry per
// document field, and publishes every update on the party's channel so
// listeners on other instances can apply it.
type RedisStore struct {
	rdb    *redis.Client
	origin string
	log    zerolog.Logger
}

// NewRedisStore builds a store bound to an origin token. Updates published
// by this store carry the token; sessions drop updates whose origin matches
// their own store to avoid write loops.
func NewRedisStore(rdb *redis.Client, origin string, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		origin: origin,
		log:    log.With().Str("component", "remote").Logger(),
	}
}

// Origin returns this store's writer token.
func (s *RedisStore) Origin() string { return s.origin }

func docKey(partyID string) string     { return "party:" + partyID }
func updateChan(partyID string) string { return "party:" + partyID + ":updates" }

func (s *RedisStore) CreateDocument(ctx context.Context, partyID string, fields map[string]any) error {
	enc, err := encodeFields(fields)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, docKey(partyID), enc).Err(); err != nil {
		return fmt.Errorf("remote: create %s: %w", partyID, err)
	}
	return nil
}

func (s *RedisStore) UpdateDocument(ctx context.Context, partyID string, fields map[string]any) error {
	enc, err := encodeFields(fields)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, docKey(partyID), enc).Err(); err != nil {
		return fmt.Errorf("remote: update %s: %w", partyID, err)
	}

	raw := make(map[string]json.RawMessage, len(enc))
	for k, v := range enc {
		raw[k] = json.RawMessage(v)
	}
	payload, err := json.Marshal(Update{PartyID: partyID, Origin: s.origin, Fields: raw})
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, updateChan(partyID), string(payload)).Err(); err != nil {
		// The write itself landed; listeners reconcile on the next update.
		s.log.Warn().Err(err).Str("partyId", partyID).Msg("publish update failed")
	}
	return nil
}

func (s *RedisStore) GetDocument(ctx context.Context, partyID string) (map[string]json.RawMessage, error) {
	vals, err := s.rdb.HGetAll(ctx, docKey(partyID)).Result()
	if err != nil {
		return nil, fmt.Errorf("remote: get %s: %w", partyID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(vals))
	for k, v := range vals {
		out[k] = json.RawMessage(v)
	}
	return out, nil
}

// Subscribe streams updates for one party until ctx is cancelled. Malformed
// payloads are logged and skipped rather than tearing the stream down.
func (s *RedisStore) Subscribe(ctx context.Context, partyID string) (<-chan Update, error) {
	sub := s.rdb.Subscribe(ctx, updateChan(partyID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("remote: subscribe %s: %w", partyID, err)
	}

	out := make(chan Update, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					s.log.Warn().Err(err).Str("partyId", partyID).Msg("bad update payload")
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func encodeFields(fields map[string]any) (map[string]string, error) {
	enc := make(map[string]string, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("remote: encode field %s: %w", k, err)
		}
		enc[k] = string(b)
	}
	return enc, nil
}
