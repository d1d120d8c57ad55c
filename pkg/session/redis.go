package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so engagements survive gateway
// restarts. The per-identifier critical section is a process-local keyed
// mutex: a single gateway instance owns its session keys. Running multiple
// gateway replicas against one Redis requires sticky routing by session id.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	keys      *keyedMutex
	prefix    string
	opTimeout time.Duration
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &RedisStore{
		client:    client,
		ttl:       ttl,
		keys:      newKeyedMutex(),
		prefix:    "trapwire:session:",
		opTimeout: 5 * time.Second,
	}, nil
}

// Update implements Store: load-modify-save under the key's local mutex.
func (s *RedisStore) Update(id string, fn func(*Session) error) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	unlock := s.keys.lock(id)
	defer unlock()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), s.opTimeout)
	sess, err := s.load(loadCtx, id)
	cancelLoad()
	if err != nil {
		return err
	}
	if sess == nil {
		sess = newSession(id)
	}

	if err := fn(sess); err != nil {
		return err
	}

	// fn can hold the critical section far longer than one Redis op (the
	// pipeline's generative call runs inside it), so the save gets its own
	// deadline rather than inheriting one that started before fn.
	saveCtx, cancelSave := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancelSave()
	return s.save(saveCtx, sess)
}

// Get implements Store.
func (s *RedisStore) Get(id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()
	return s.load(ctx, id)
}

// Stats implements Store. Counts keys only; per-session counters would need
// a scan of every value, which the stats endpoint does not justify.
func (s *RedisStore) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	var count int
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return Stats{SessionCount: count}
}

// Close releases the Redis connection.
func (s *RedisStore) Close() {
	_ = s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", id, err)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, s.prefix+sess.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", sess.ID, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
