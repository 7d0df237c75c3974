package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments each counter and starts its window on the
// first hit. It returns {count, ttl_ms} pairs.
const fixedWindowScript = `
local results = {}
local window_ms = tonumber(ARGV[1])
for i = 1, #KEYS do
    local count = redis.call('INCR', KEYS[i])
    if count == 1 then
        redis.call('PEXPIRE', KEYS[i], window_ms)
    end
    local ttl = redis.call('PTTL', KEYS[i])
    if ttl < 0 then
        redis.call('PEXPIRE', KEYS[i], window_ms)
        ttl = window_ms
    end
    table.insert(results, count)
    table.insert(results, ttl)
end
return results
`

// RedisLimiter implements DistributedLimiter with fixed windows in Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	script *redis.Script
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a new RedisLimiter. Keys are stored under prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		prefix: prefix,
		now:    time.Now,
	}
}

// CheckAllow implements DistributedLimiter. All descriptors in one call
// share the window of the first descriptor.
func (r *RedisLimiter) CheckAllow(ctx context.Context, descriptors []Descriptor) ([]LimitResult, error) {
	if len(descriptors) == 0 {
		return nil, nil
	}

	window := descriptors[0].Window
	if window <= 0 {
		window = time.Minute
	}

	keys := make([]string, len(descriptors))
	for i, d := range descriptors {
		// Hash tag keeps a key on one cluster slot.
		keys[i] = fmt.Sprintf("%s:{%s}", r.prefix, d.Key)
	}

	val, err := r.script.Run(ctx, r.client, keys, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run rate limit script: %w", err)
	}
	if len(val) != len(descriptors)*2 {
		return nil, fmt.Errorf("unexpected result length: got %d, want %d", len(val), len(descriptors)*2)
	}

	now := r.now()
	results := make([]LimitResult, len(descriptors))
	for i, d := range descriptors {
		current, ttl := val[i*2], val[i*2+1]
		remaining := d.Limit - current
		if remaining < 0 {
			remaining = 0
		}
		results[i] = LimitResult{
			Allowed:   current <= d.Limit,
			Current:   current,
			Remaining: remaining,
			ResetAt:   now.Add(time.Duration(ttl) * time.Millisecond),
		}
	}
	return results, nil
}
