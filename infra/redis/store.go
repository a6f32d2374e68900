package redis

import (
	"catalog/internal/querycache"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// setIfNewer keeps the sequence next to the value so the comparison and the
// write happen atomically on the server.
var setIfNewer = goredis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'seq') or '-1')
if current > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'seq', ARGV[1], 'value', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

const seqKeySuffix = ":seq"

type Store struct {
	client *goredis.Client
}

func NewStore(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.HGet(ctx, key, "value").Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, querycache.ErrMiss
	}
	return value, err
}

func (s *Store) SetIfNewer(ctx context.Context, key string, seq uint64, value []byte, ttl time.Duration) (bool, error) {
	res, err := setIfNewer.Run(ctx, s.client, []string{key}, seq, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *Store) NextSeq(ctx context.Context, key string) (uint64, error) {
	seq, err := s.client.Incr(ctx, key+seqKeySuffix).Uint64()
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, seqKeySuffix) {
			continue
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
