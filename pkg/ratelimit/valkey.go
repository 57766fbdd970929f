package ratelimit

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

// slidingWindowScript performs evict, count, conditional insert and expiry
// refresh in one server-side step. Scores are unix milliseconds and travel
// as strings so Lua never reformats them.
//
// KEYS[1] window key
// ARGV[1] now, ARGV[2] eviction cutoff, ARGV[3] limit, ARGV[4] member,
// ARGV[5] ttl ms
const slidingWindowScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])

local count = redis.call('ZCARD', KEYS[1])
local admitted = 0
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
	count = count + 1
	admitted = 1
end

redis.call('PEXPIRE', KEYS[1], ARGV[5])

local oldest = tonumber(ARGV[1])
local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end

return {admitted, count, oldest}
`

// ValkeyConfig holds connection settings for the shared store.
type ValkeyConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// DialValkey connects to a Valkey or Redis server. Client-side caching is
// disabled; every limiter read must observe the server state.
func DialValkey(cfg ValkeyConfig) (valkey.Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{cfg.Addr},
		Password:         cfg.Password,
		SelectDB:         cfg.DB,
		DisableCache:     true,
		Dialer:           net.Dialer{Timeout: cfg.DialTimeout},
		ConnWriteTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// ValkeyStore keeps windows as sorted sets in Valkey.
type ValkeyStore struct {
	client valkey.Client
	script *valkey.Lua
}

func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{
		client: client,
		script: valkey.NewLuaScript(slidingWindowScript),
	}
}

func (s *ValkeyStore) Hit(
	ctx context.Context,
	key string,
	now time.Time,
	window time.Duration,
	limit int,
	member string,
) (HitResult, error) {
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	vals, err := s.script.Exec(ctx, s.client, []string{key}, []string{
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(-window).UnixMilli(), 10),
		strconv.Itoa(limit),
		member,
		strconv.FormatInt(ttl, 10),
	}).ToArray()
	if err != nil {
		return HitResult{}, err
	}
	if len(vals) != 3 {
		return HitResult{}, fmt.Errorf("ratelimit: unexpected script reply length %d", len(vals))
	}

	var out [3]int64
	for i, v := range vals {
		if out[i], err = v.AsInt64(); err != nil {
			return HitResult{}, fmt.Errorf("ratelimit: script reply %d: %w", i, err)
		}
	}

	return HitResult{
		Admitted: out[0] == 1,
		Count:    int(out[1]),
		Oldest:   time.UnixMilli(out[2]),
	}, nil
}

func (s *ValkeyStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	lower := "(" + strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	n, err := s.client.Do(ctx, s.client.B().Zcount().Key(key).Min(lower).Max("+inf").Build()).AsInt64()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *ValkeyStore) Close() {
	s.client.Close()
}
