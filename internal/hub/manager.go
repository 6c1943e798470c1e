// Package hub keeps the registry of live feed connections and closes them
// when their session ends.
package hub

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/auth"
	"campuswhisper/backend/internal/livequery"
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// SessionChecker validates the token a connection was opened with.
type SessionChecker interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

type countRequest struct {
	userID string
	reply  chan int
}

// Manager owns the set of connected clients. All registry changes go
// through its Run loop.
type Manager struct {
	clients map[string]map[*Client]struct{}

	RegisterCh   chan *Client
	UnregisterCh chan *Client
	countCh      chan countRequest

	live    *livequery.Hub
	checker SessionChecker
	log     zerolog.Logger
	done    chan struct{}
	stopped chan struct{}
}

func NewManager(live *livequery.Hub, checker SessionChecker, log zerolog.Logger) *Manager {
	return &Manager{
		clients:      make(map[string]map[*Client]struct{}),
		RegisterCh:   make(chan *Client),
		UnregisterCh: make(chan *Client),
		countCh:      make(chan countRequest),
		live:         live,
		checker:      checker,
		log:          log,
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// Run processes registrations until ctx is done, then closes every client.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.stopped)
	for {
		select {
		case c := <-m.RegisterCh:
			m.add(ctx, c)

		case c := <-m.UnregisterCh:
			m.remove(c)

		case req := <-m.countCh:
			req.reply <- len(m.clients[req.userID])

		case <-ctx.Done():
			close(m.done)
			n := 0
			for _, set := range m.clients {
				for c := range set {
					c.Close()
					n++
				}
			}
			m.clients = make(map[string]map[*Client]struct{})
			m.log.Info().Int("clients", n).Msg("hub stopped")
			return
		}
	}
}

// Stopped is closed once Run has closed every client and returned.
func (m *Manager) Stopped() <-chan struct{} { return m.stopped }

// Register adds c to the registry. It reports false if the manager has stopped.
func (m *Manager) Register(c *Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) Unregister(c *Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Count returns the number of open connections of userID.
func (m *Manager) Count(userID string) int {
	reply := make(chan int, 1)
	select {
	case m.countCh <- countRequest{userID: userID, reply: reply}:
		return <-reply
	case <-m.done:
		return 0
	}
}

func (m *Manager) add(ctx context.Context, c *Client) {
	set, ok := m.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		m.clients[c.UserID] = set
	}
	set[c] = struct{}{}

	// Сесія закінчилась (sign-out на іншій вкладці) — закриваємо з'єднання.
	sub := livequery.Subscribe(ctx, m.live, m.log, []string{livequery.SessionTopic(c.UserID)},
		func(ctx context.Context) (bool, error) {
			_, err := m.checker.Authenticate(ctx, c.token)
			switch {
			case err == nil:
				return true, nil
			case errors.Is(err, apperrors.ErrTransient), ctx.Err() != nil:
				// keep the connection, retry on the next notification
				return false, err
			default:
				return false, nil
			}
		},
		func(valid bool) {
			if !valid {
				m.log.Info().Str("userId", c.UserID).Msg("session ended, closing connection")
				c.Close()
			}
		})

	var timer *time.Timer
	if !c.expiresAt.IsZero() {
		timer = time.AfterFunc(time.Until(c.expiresAt), c.Close)
	}

	c.OnDisconnect(func() {
		sub.Cancel()
		if timer != nil {
			timer.Stop()
		}
		// may run on this goroutine if c is already closed
		go m.Unregister(c)
	})
}

func (m *Manager) remove(c *Client) {
	set, ok := m.clients[c.UserID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(m.clients, c.UserID)
	}
}
