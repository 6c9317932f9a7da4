package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/wire"
)

// DefaultTimeout is the per-publish timeout for a Redis-backed Transport,
// mirroring the teacher's redis adapter default (adapter/redis/redis.go).
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the number of retry attempts on a failed publish.
const DefaultRetries = 3

// channelPrefix namespaces rank channels from any other use of the same
// Redis instance.
const channelPrefix = "derp:rank:"

// wireFrame is the msgpack-serializable form of a Frame (idset.Rank and
// Direction round-trip as plain integers).
type wireFrame struct {
	From      uint32         `msgpack:"from"`
	To        uint32         `msgpack:"to"`
	Direction int            `msgpack:"direction"`
	Type      wire.Type      `msgpack:"type"`
	Idset     idset.Set      `msgpack:"idset"`
	Data      map[string]any `msgpack:"data"`
}

// RedisConfig configures a Redis pub/sub Transport.
type RedisConfig struct {
	// URL is the Redis connection URL (required). Format:
	// redis://[:password@]host:port[/db].
	URL string
	// Timeout is the per-publish timeout (default DefaultTimeout).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default
	// DefaultRetries).
	Retries int
}

// RedisTransport implements Transport over Redis PUBLISH/SUBSCRIBE, one
// channel per rank, grounded on the teacher's redis pub/sub adapter
// (adapter/redis/redis.go) and generalized from a single completion-event
// channel to one channel per overlay rank with retrying publish.
type RedisTransport struct {
	cfg    RedisConfig
	client *goredis.Client
	sub    *goredis.PubSub
}

// NewRedis creates a Redis-backed Transport from cfg.
func NewRedis(cfg RedisConfig) (*RedisTransport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("transport: redis URL required")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid redis URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("transport: retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}
	return &RedisTransport{cfg: cfg, client: goredis.NewClient(opts)}, nil
}

func rankChannel(r idset.Rank) string {
	return fmt.Sprintf("%s%d", channelPrefix, r)
}

// Subscribe implements Transport.
func (t *RedisTransport) Subscribe(self idset.Rank) (<-chan Frame, error) {
	ctx := context.Background()
	t.sub = t.client.Subscribe(ctx, rankChannel(self))
	if _, err := t.sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("transport: subscribe rank %d: %w", self, err)
	}

	out := make(chan Frame, 256)
	go func() {
		defer close(out)
		for msg := range t.sub.Channel() {
			var wf wireFrame
			if err := msgpack.Unmarshal([]byte(msg.Payload), &wf); err != nil {
				continue
			}
			out <- Frame{
				From:      idset.Rank(wf.From),
				To:        idset.Rank(wf.To),
				Direction: Direction(wf.Direction),
				Type:      wf.Type,
				Idset:     wf.Idset,
				Data:      wf.Data,
			}
		}
	}()
	return out, nil
}

// SendDown implements Transport.
func (t *RedisTransport) SendDown(to idset.Rank, typ wire.Type, ranks idset.Set, data map[string]any) error {
	return t.publish(Frame{To: to, Direction: Action, Type: typ, Idset: ranks, Data: data})
}

// SendUp implements Transport.
func (t *RedisTransport) SendUp(to idset.Rank, typ wire.Type, ranks idset.Set, data map[string]any) error {
	return t.publish(Frame{To: to, Direction: Notify, Type: typ, Idset: ranks, Data: data})
}

func (t *RedisTransport) publish(f Frame) error {
	body, err := msgpack.Marshal(wireFrame{
		From:      uint32(f.From),
		To:        uint32(f.To),
		Direction: int(f.Direction),
		Type:      f.Type,
		Idset:     f.Idset,
		Data:      f.Data,
	})
	if err != nil {
		return fmt.Errorf("transport: marshal frame: %w", err)
	}

	ctx := context.Background()
	attempts := 1 + t.cfg.Retries
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * 100 * time.Millisecond)
		}
		pubCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
		lastErr = t.client.Publish(pubCtx, rankChannel(f.To), body).Err()
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("transport: publish failed after %d attempts: %w", attempts, lastErr)
}

// Close implements Transport.
func (t *RedisTransport) Close() error {
	if t.sub != nil {
		_ = t.sub.Close()
	}
	return t.client.Close()
}

var _ Transport = (*RedisTransport)(nil)
var _ Transport = (*Inproc)(nil)
