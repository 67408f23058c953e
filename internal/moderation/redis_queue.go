package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxPending = 10000
	defaultDedupeTTL  = 24 * time.Hour
)

// RedisQueue keeps pending reports in a capped Redis list, newest first.
type RedisQueue struct {
	client     *redis.Client
	prefix     string
	maxPending int64
	dedupeTTL  time.Duration
}

// NewRedisQueue connects to redisURL and verifies the connection.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisQueueWithClient(client), nil
}

func NewRedisQueueWithClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:     client,
		prefix:     "reports:",
		maxPending: defaultMaxPending,
		dedupeTTL:  defaultDedupeTTL,
	}
}

func (q *RedisQueue) pendingKey() string {
	return q.prefix + "pending"
}

func (q *RedisQueue) seenKey(report Report) string {
	return q.prefix + "seen:" + report.Target() + ":" + report.ReporterID
}

// enqueueScript marks the reporter as seen and pushes the report in one step.
// A failed push releases the seen marker so the report can be retried.
//
// KEYS[1] seen key, KEYS[2] pending list.
// ARGV[1] "1" to de-duplicate, ARGV[2] report id, ARGV[3] ttl in ms,
// ARGV[4] payload, ARGV[5] last index kept by LTRIM.
var enqueueScript = redis.NewScript(`
if ARGV[1] == "1" then
	if not redis.call("SET", KEYS[1], ARGV[2], "NX", "PX", ARGV[3]) then
		return 0
	end
end
local pushed = redis.pcall("LPUSH", KEYS[2], ARGV[4])
if type(pushed) == "table" and pushed.err then
	if ARGV[1] == "1" then
		redis.call("DEL", KEYS[1])
	end
	return redis.error_reply(pushed.err)
end
redis.call("LTRIM", KEYS[2], 0, tonumber(ARGV[5]))
return 1
`)

// Enqueue pushes report onto the pending list. A signed-in reporter may flag
// a given target once per de-duplication window; anonymous reports are never
// merged.
func (q *RedisQueue) Enqueue(ctx context.Context, report Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	dedupe := "0"
	if report.ReporterID != "" {
		dedupe = "1"
	}
	queued, err := enqueueScript.Run(ctx, q.client,
		[]string{q.seenKey(report), q.pendingKey()},
		dedupe, report.ID, q.dedupeTTL.Milliseconds(), payload, q.maxPending-1,
	).Int()
	if err != nil {
		return fmt.Errorf("enqueue report: %w", err)
	}
	if queued == 0 {
		return ErrDuplicateReport
	}
	return nil
}

// Pending returns up to limit queued reports, newest first.
func (q *RedisQueue) Pending(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := q.client.LRange(ctx, q.pendingKey(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	reports := make([]Report, 0, len(raw))
	for _, item := range raw {
		var report Report
		if err := json.Unmarshal([]byte(item), &report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
