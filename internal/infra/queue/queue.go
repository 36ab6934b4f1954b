// Package queue carries scrape jobs between the enqueue command and workers
// over a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LouYuanbo1/komprice/param"
)

const (
	DefaultKey         = "komprice:jobs"
	DefaultPollTimeout = 5 * time.Second
)

// Message is the JSON payload stored for each job.
type Message struct {
	SiteID       string    `json:"site"`
	CategorySlug string    `json:"category"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

func (m Message) Job() param.Job {
	return param.Job{SiteID: m.SiteID, CategorySlug: m.CategorySlug}
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type Producer struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

func NewProducer(client redis.Cmdable, key string) *Producer {
	if key == "" {
		key = DefaultKey
	}
	return &Producer{client: client, key: key, now: time.Now}
}

// Enqueue appends jobs to the tail of the queue and returns the new length.
func (p *Producer) Enqueue(ctx context.Context, jobs ...param.Job) (int64, error) {
	if len(jobs) == 0 {
		return p.client.LLen(ctx, p.key).Result()
	}
	values := make([]any, 0, len(jobs))
	for _, j := range jobs {
		data, err := json.Marshal(Message{
			SiteID:       j.SiteID,
			CategorySlug: j.CategorySlug,
			EnqueuedAt:   p.now().UTC(),
		})
		if err != nil {
			return 0, fmt.Errorf("failed to serialize job: %w", err)
		}
		values = append(values, string(data))
	}
	n, err := p.client.RPush(ctx, p.key, values...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue jobs: %w", err)
	}
	return n, nil
}

type Consumer struct {
	client  redis.Cmdable
	key     string
	timeout time.Duration
}

func NewConsumer(client redis.Cmdable, key string, pollTimeout time.Duration) *Consumer {
	if key == "" {
		key = DefaultKey
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Consumer{client: client, key: key, timeout: pollTimeout}
}

// Dequeue blocks up to the poll timeout for the next message. ok is false
// when the queue stayed empty.
func (c *Consumer) Dequeue(ctx context.Context) (msg Message, ok bool, err error) {
	res, err := c.client.BLPop(ctx, c.timeout, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("failed to dequeue job: %w", err)
	}
	// BLPOP replies with [key, value]
	if len(res) != 2 {
		return Message{}, false, fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return Message{}, false, fmt.Errorf("failed to decode job %q: %w", res[1], err)
	}
	return msg, true, nil
}

func (c *Consumer) Len(ctx context.Context) (int64, error) {
	return c.client.LLen(ctx, c.key).Result()
}
