package repo

import (
	"github.com/redis/go-redis/v9"
)

// ScriptSliding prunes, counts and conditionally records in one round trip.
// The timestamp comes from the Redis server clock so every app instance
// agrees on where the window starts. Denied attempts are not added, so
// retries against a full window cannot push it further out.
// Needs Redis 5+ (effects replication of TIME inside scripts).
var ScriptSliding = redis.NewScript(`
-- KEYS[1] = zset key
-- ARGV[1] = window_ms
-- ARGV[2] = limit
-- ARGV[3] = unique member
-- ARGV[4] = ttl_ms

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local cutoff = now - tonumber(ARGV[1])

-- entries with score <= cutoff are outside the window
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)

local cnt = redis.call('ZCARD', KEYS[1])
local admitted = 0
if cnt < tonumber(ARGV[2]) then
  redis.call('ZADD', KEYS[1], now, ARGV[3])
  cnt = cnt + 1
  admitted = 1
end

-- idle identities expire on their own
redis.call('PEXPIRE', KEYS[1], ARGV[4])

local oldest = 0
local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end

return {admitted, cnt, oldest, now}
`)
