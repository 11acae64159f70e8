// Package counter implements interfaces.CounterStore on Redis and in memory.
package counter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
)

const keyPrefix = "bastion:"

// tokenBucketScript refills lazily from the elapsed time and debits n tokens
// in one step. Timestamps are milliseconds supplied by the caller.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local n = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end

if now > ts then
	tokens = math.min(capacity, tokens + (now - ts) * refill / interval)
	ts = now
end

local allowed = 0
if tokens >= n then
	tokens = tokens - n
	allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('PEXPIRE', key, math.ceil(interval * capacity / refill) + interval)
return allowed
`)

type Redis struct {
	client redis.UniversalClient
}

var _ interfaces.CounterStore = &Redis{}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Dial parses a redis:// URL, connects and pings the server.
func Dial(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid redis URL")
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to connect redis", goerr.T(errs.TagDatabase), goerr.V("addr", opt.Addr))
	}
	return NewRedis(client), nil
}

func (x *Redis) Close() error {
	return x.client.Close()
}

func (x *Redis) RecordInWindow(ctx context.Context, key, member string, at time.Time, window time.Duration) (int64, error) {
	key = keyPrefix + key
	cutoff := at.Add(-window).UnixMilli()

	var card *redis.IntCmd
	_, err := x.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		card = pipe.ZCard(ctx, key)
		pipe.PExpire(ctx, key, 2*window)
		return nil
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to record window entry", goerr.T(errs.TagDatabase), goerr.V("key", key))
	}
	return card.Val(), nil
}

func (x *Redis) RangeWindow(ctx context.Context, key string, since time.Time) ([]string, error) {
	members, err := x.client.ZRangeByScore(ctx, keyPrefix+key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to range window", goerr.T(errs.TagDatabase), goerr.V("key", key))
	}
	return members, nil
}

func (x *Redis) TakeTokens(ctx context.Context, key string, n, capacity, refill int, interval time.Duration) (bool, error) {
	if refill < 1 || interval <= 0 {
		return false, goerr.New("invalid token bucket parameters", goerr.V("refill", refill), goerr.V("interval", interval))
	}

	now := clock.Now(ctx).UnixMilli()
	res, err := tokenBucketScript.Run(ctx, x.client, []string{keyPrefix + key},
		n, capacity, refill, interval.Milliseconds(), now).Int()
	if err != nil {
		return false, goerr.Wrap(err, "failed to take tokens", goerr.T(errs.TagDatabase), goerr.V("key", key))
	}
	return res == 1, nil
}

func (x *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := x.client.SetNX(ctx, keyPrefix+key, value, ttl).Result()
	if err != nil {
		return false, goerr.Wrap(err, "failed to set key", goerr.T(errs.TagDatabase), goerr.V("key", key))
	}
	return ok, nil
}

func (x *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := x.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get key", goerr.T(errs.TagDatabase), goerr.V("key", key))
	}
	return v, true, nil
}

func (x *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := x.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return goerr.Wrap(err, "failed to set key", goerr.T(errs.TagDatabase), goerr.V("key", key))
	}
	return nil
}
