package scheduler

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Queue hands job IDs from submission to the run loop.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue blocks until an ID is available or ctx is done.
	Dequeue(ctx context.Context) (string, error)
}

// ChannelQueue is the in-process Queue for single-binary deployments and
// tests.
type ChannelQueue struct {
	ch chan string
}

func NewChannelQueue(capacity int) *ChannelQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &ChannelQueue{ch: make(chan string, capacity)}
}

func (q *ChannelQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case id := <-q.ch:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RedisQueue carries job IDs across processes for the split api/worker
// deployment. LPUSH on submit, BRPOP in the run loop.
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = "motif:jobs"
	}
	return &RedisQueue{rdb: rdb, name: name}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.name, jobID).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	res, err := q.rdb.BRPop(ctx, 0, q.name).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}
