package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultIngestWindow = time.Minute

// IngestLimiter caps postback traffic per source address over a sliding
// window. Postbacks arrive per-conversion rather than in per-second
// bursts, so the window is minutes-scale and configurable. State is a
// Redis sorted set per source; one Lua round trip prunes the window,
// checks the count, and records the request atomically.
type IngestLimiter struct {
	client *redis.Client
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Scores are request timestamps in milliseconds; members only need to
// be unique within the window.
var ingestWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)

if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
    return 0
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return 1
`)

func NewIngestLimiter(client *redis.Client, window time.Duration, logger *slog.Logger) *IngestLimiter {
	if window <= 0 {
		window = defaultIngestWindow
	}
	return &IngestLimiter{
		client: client,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Allow reports whether a postback from this source fits within limit
// requests per window. A non-positive limit disables limiting, and
// Redis failures fail open: ingestion is never blocked by limiter
// infrastructure.
func (l *IngestLimiter) Allow(ctx context.Context, source string, limit int) bool {
	if limit <= 0 {
		return true
	}

	key := "postback:rl:" + source
	allowed, err := ingestWindowScript.Run(ctx, l.client, []string{key},
		l.now().UnixMilli(), l.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		l.logger.Error("ingest limiter unavailable, allowing request", "error", err, "source", source)
		return true
	}

	if allowed == 0 {
		l.logger.Warn("postback rate limited",
			"source", source,
			"limit", limit,
			"window", l.window,
		)
		return false
	}

	return true
}
