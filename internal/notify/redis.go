package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
)

const defaultStream = "rem:events"

type Options struct {
	Addr   string
	Stream string
	MaxLen int64 // approximate stream cap; 0 keeps everything
}

// RedisPublisher appends REM events to a redis stream so other processes
// (the mobile backend, dashboards) can follow a night as it happens.
type RedisPublisher struct {
	rdb    *goredis.Client
	stream string
	maxLen int64
	log    *logger.Logger
}

// NewRedisPublisher connects and pings the server.
func NewRedisPublisher(opts Options, log *logger.Logger) (*RedisPublisher, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, opts.Stream, opts.MaxLen, log), nil
}

func NewWithClient(rdb *goredis.Client, stream string, maxLen int64, log *logger.Logger) *RedisPublisher {
	if stream == "" {
		stream = defaultStream
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisPublisher{
		rdb:    rdb,
		stream: stream,
		maxLen: maxLen,
		log:    log.With("service", "RedisEventPublisher"),
	}
}

// Publish XADDs the event: type, device_id and the JSON encoded event under data.
func (p *RedisPublisher) Publish(ctx context.Context, e models.RemEvent) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	args := &goredis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":      e.Type,
			"device_id": e.DeviceID,
			"data":      string(raw),
			"timestamp": e.OccurredAt.Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	p.log.Debugw("event_published", "stream", p.stream, "id", id, "type", e.Type)
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
