// Package presence tracks who is currently viewing which channel.
//
// Entries live in Redis: a sorted set per channel whose scores are expiry
// times, plus a hash with the entry details. Members are per visit
// (userID:visitID), so two visits of one user never touch each other's entry;
// counts are over distinct users. A visit refreshes its expiry on a heartbeat,
// so entries of crashed processes age out on their own.
package presence

import (
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Conn is the connection a visit belongs to. The hook must run once when the
// connection drops, or right away if it already has. remove unregisters it.
type Conn interface {
	OnDisconnect(fn func()) (remove func())
}

type Publisher interface {
	Publish(ctx context.Context, topics ...string)
}

type Tracker struct {
	rdb       *redis.Client
	pub       Publisher
	ttl       time.Duration
	heartbeat time.Duration
	log       zerolog.Logger

	now func() time.Time
}

func NewTracker(rdb *redis.Client, pub Publisher, ttl, heartbeat time.Duration, log zerolog.Logger) *Tracker {
	return &Tracker{
		rdb:       rdb,
		pub:       pub,
		ttl:       ttl,
		heartbeat: heartbeat,
		log:       log,
		now:       time.Now,
	}
}

func setKey(channelID string) string  { return "presence:" + channelID }
func metaKey(channelID string) string { return "presence:" + channelID + ":meta" }

func member(userID, visitID string) string { return userID + ":" + visitID }

func userOf(m string) string {
	if i := strings.LastIndexByte(m, ':'); i >= 0 {
		return m[:i]
	}
	return m
}

// Visit is one presence entry. Leave removes it exactly once, whether called
// directly or by the connection's disconnect hook.
type Visit struct {
	tracker   *Tracker
	ChannelID string
	UserID    string
	member    string

	once sync.Once
	stop chan struct{}

	mu     sync.Mutex
	left   bool
	unhook func()
}

// Enter writes the entry and arms its removal on conn's disconnect.
func (t *Tracker) Enter(ctx context.Context, conn Conn, channelID, userID, nickname string) (*Visit, error) {
	entry := models.PresenceEntry{
		UserID:    userID,
		Nickname:  nickname,
		EnteredAt: t.now(),
		Status:    models.PresenceOnline,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	m := member(userID, uuid.NewString())
	_, err = t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, setKey(channelID), redis.Z{Score: t.expiry(), Member: m})
		pipe.HSet(ctx, metaKey(channelID), m, data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enter channel %s: %w", channelID, err)
	}

	v := &Visit{tracker: t, ChannelID: channelID, UserID: userID, member: m, stop: make(chan struct{})}
	go v.keepAlive()
	v.setUnhook(conn.OnDisconnect(v.Leave))

	t.publish(channelID)
	return v, nil
}

// setUnhook keeps the hook removal for Leave. If the hook already ran there
// is nothing left to remove.
func (v *Visit) setUnhook(remove func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.left {
		return
	}
	v.unhook = remove
}

// Leave removes the entry and its disconnect hook. Safe to call any number
// of times.
func (v *Visit) Leave() {
	v.once.Do(func() {
		close(v.stop)
		t := v.tracker

		v.mu.Lock()
		v.left = true
		unhook := v.unhook
		v.unhook = nil
		v.mu.Unlock()
		if unhook != nil {
			unhook()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, setKey(v.ChannelID), v.member)
			pipe.HDel(ctx, metaKey(v.ChannelID), v.member)
			return nil
		})
		if err != nil {
			// the entry expires on its own
			t.log.Warn().Err(err).Str("channelId", v.ChannelID).Msg("failed to leave channel")
		}
		t.publish(v.ChannelID)
	})
}

func (v *Visit) keepAlive() {
	ticker := time.NewTicker(v.tracker.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			v.refresh()
		}
	}
}

func (v *Visit) refresh() {
	t := v.tracker
	ctx, cancel := context.WithTimeout(context.Background(), t.heartbeat)
	defer cancel()
	// XX: не воскрешаємо запис, який вже видалено
	err := t.rdb.ZAddXX(ctx, setKey(v.ChannelID), redis.Z{Score: t.expiry(), Member: v.member}).Err()
	if err != nil {
		t.log.Warn().Err(err).Str("channelId", v.ChannelID).Msg("presence heartbeat failed")
		return
	}
	// entries of crashed peers age out here even when nobody enters or leaves
	if err := t.purge(ctx, v.ChannelID); err != nil {
		t.log.Warn().Err(err).Str("channelId", v.ChannelID).Msg("presence purge failed")
	}
}

// Count returns the number of distinct users with a live entry in a channel.
// Expired entries are purged first.
func (t *Tracker) Count(ctx context.Context, channelID string) (int, error) {
	if err := t.purge(ctx, channelID); err != nil {
		return 0, err
	}
	members, err := t.rdb.ZRange(ctx, setKey(channelID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count presence: %w", err)
	}
	users := make(map[string]struct{}, len(members))
	for _, m := range members {
		users[userOf(m)] = struct{}{}
	}
	return len(users), nil
}

// Entries lists the live entries of a channel, one per user.
func (t *Tracker) Entries(ctx context.Context, channelID string) ([]models.PresenceEntry, error) {
	if err := t.purge(ctx, channelID); err != nil {
		return nil, err
	}
	members, err := t.rdb.ZRange(ctx, setKey(channelID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	raw, err := t.rdb.HMGet(ctx, metaKey(channelID), members...).Result()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(members))
	entries := make([]models.PresenceEntry, 0, len(members))
	for i, r := range raw {
		s, ok := r.(string)
		if !ok {
			continue
		}
		userID := userOf(members[i])
		if _, dup := seen[userID]; dup {
			continue
		}
		var e models.PresenceEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		seen[userID] = struct{}{}
		e.UserID = userID
		entries = append(entries, e)
	}
	return entries, nil
}

// purge drops expired entries and announces the change if there were any.
func (t *Tracker) purge(ctx context.Context, channelID string) error {
	cutoff := strconv.FormatInt(t.now().UnixMilli(), 10)
	expired, err := t.rdb.ZRangeByScore(ctx, setKey(channelID), &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return fmt.Errorf("failed to read presence: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}
	var removed *redis.IntCmd
	_, err = t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRemRangeByScore(ctx, setKey(channelID), "-inf", cutoff)
		pipe.HDel(ctx, metaKey(channelID), expired...)
		return nil
	})
	if err != nil {
		return err
	}
	if removed.Val() > 0 {
		t.publish(channelID)
	}
	return nil
}

func (t *Tracker) expiry() float64 {
	return float64(t.now().Add(t.ttl).UnixMilli())
}

func (t *Tracker) publish(channelID string) {
	if t.pub == nil {
		return
	}
	t.pub.Publish(context.Background(), livequery.PresenceTopic(channelID))
}
