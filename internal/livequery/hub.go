// Package livequery turns Redis pub/sub change notifications into live query
// results. A subscription re-runs its query on every notification of one of
// its topics and delivers the full result; it never delivers diffs.
package livequery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Hub fans Redis notifications out to the subscriptions of this process.
type Hub struct {
	rdb *redis.Client
	log zerolog.Logger

	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{} // topic -> notify channels

	pubsub *redis.PubSub
	done   chan struct{}
}

func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		rdb:      rdb,
		log:      log,
		watchers: make(map[string]map[chan struct{}]struct{}),
		done:     make(chan struct{}),
	}
}

// Start subscribes to every whisper topic and dispatches notifications until
// Close. It returns once the subscription is confirmed by Redis.
func (h *Hub) Start(ctx context.Context) error {
	ps := h.rdb.PSubscribe(ctx, topicPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("failed to subscribe to change notifications: %w", err)
	}
	h.pubsub = ps

	go func() {
		defer close(h.done)
		// Слухаємо всі повідомлення, поки pubsub не закрито
		for msg := range ps.Channel() {
			h.dispatch(msg.Channel)
		}
	}()
	return nil
}

func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	err := h.pubsub.Close()
	<-h.done
	return err
}

// Publish announces that data behind the topics changed. Failures are logged:
// the writer has already committed and must not fail because of them.
func (h *Hub) Publish(ctx context.Context, topics ...string) {
	for _, topic := range topics {
		if err := h.rdb.Publish(ctx, topic, "changed").Err(); err != nil {
			h.log.Warn().Err(err).Str("topic", topic).Msg("failed to publish change notification")
		}
	}
}

func (h *Hub) dispatch(topic string) {
	if !strings.HasPrefix(topic, topicPrefix) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for notify := range h.watchers[topic] {
		// буфер 1: кілька сповіщень поспіль зливаються в одне перезавантаження
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) watch(topics []string, notify chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		set, ok := h.watchers[t]
		if !ok {
			set = make(map[chan struct{}]struct{})
			h.watchers[t] = set
		}
		set[notify] = struct{}{}
	}
}

func (h *Hub) unwatch(topics []string, notify chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		delete(h.watchers[t], notify)
		if len(h.watchers[t]) == 0 {
			delete(h.watchers, t)
		}
	}
}

// Watching returns how many subscriptions listen on topic.
func (h *Hub) Watching(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[topic])
}
