package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/streamkit/logger"
)

// DefaultRelayPrefix namespaces relay channels in Redis.
const DefaultRelayPrefix = "streamkit:broadcast:"

// RelayConfig connects broadcasts to Redis pub/sub so that several mock
// servers share them. An empty Addr disables the relay.
type RelayConfig struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db" validate:"min=0"`
	Prefix   string `json:"prefix" mapstructure:"prefix"`
}

// Enabled reports whether an address is configured.
func (c RelayConfig) Enabled() bool { return c.Addr != "" }

type relayMessage struct {
	Pattern string `json:"pattern"`
	Event   Event  `json:"event"`
}

// Relay publishes broadcasts to Redis and replays every relayed broadcast,
// its own included, into the local hub.
type Relay struct {
	rdb    *goredis.Client
	local  Publisher
	prefix string
	log    *logger.Logger

	mu     sync.Mutex
	pubsub *goredis.PubSub
	done   chan struct{}
}

var _ Publisher = (*Relay)(nil)

// NewRelay creates a relay delivering into local. Call Start to subscribe.
func NewRelay(cfg RelayConfig, local Publisher, log *logger.Logger) *Relay {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRelayPrefix
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		local:  local,
		prefix: cfg.Prefix,
		log:    log.WithComponent("relay"),
	}
}

// Start subscribes to the relay channels and returns once Redis confirms.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return nil
	}

	ps := r.rdb.PSubscribe(ctx, r.prefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("relay subscribe: %w", err)
	}
	r.pubsub = ps
	r.done = make(chan struct{})
	go r.run(ps.Channel(), r.done)

	r.log.Info("relay subscribed", logger.Fields("pattern", r.prefix+"*"))
	return nil
}

func (r *Relay) run(ch <-chan *goredis.Message, done chan struct{}) {
	defer close(done)
	for msg := range ch {
		var m relayMessage
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			r.log.Warn("dropping relay message", logger.Fields(
				"channel", msg.Channel,
				logger.FieldError, err.Error(),
			))
			continue
		}
		r.local.Publish(m.Pattern, m.Event)
	}
}

// Publish implements Publisher. It returns the number of relay
// subscribers, one per running server, or zero when Redis is unreachable.
func (r *Relay) Publish(pattern string, ev Event) int {
	payload, err := json.Marshal(relayMessage{Pattern: pattern, Event: ev})
	if err != nil {
		r.log.Warn("encode relay message", logger.Fields(logger.FieldError, err.Error()))
		return 0
	}
	n, err := r.rdb.Publish(context.Background(), r.prefix+pattern, payload).Result()
	if err != nil {
		r.log.Warn("relay publish failed", logger.Fields(logger.FieldError, err.Error()))
		return 0
	}
	return int(n)
}

// Ping checks the Redis connection.
func (r *Relay) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close unsubscribes, waits for the replay loop and closes the client.
func (r *Relay) Close() error {
	r.mu.Lock()
	ps, done := r.pubsub, r.done
	r.pubsub, r.done = nil, nil
	r.mu.Unlock()

	if ps != nil {
		_ = ps.Close()
		<-done
	}
	return r.rdb.Close()
}
