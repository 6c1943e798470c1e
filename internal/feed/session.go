package feed

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/models"
	"campuswhisper/backend/internal/presence"
	"campuswhisper/backend/internal/vote"
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Source opens the live queries of a session.
type Source interface {
	Posts(ctx context.Context, channelID string, deliver func([]models.Post)) livequery.Subscription
	Votes(ctx context.Context, userID string, deliver func(models.VoteMap)) livequery.Subscription
	Presence(ctx context.Context, channelID string, deliver func(int)) livequery.Subscription
	Thread(ctx context.Context, postID string, deliver func(models.Thread)) livequery.Subscription
}

// Presence records that the session views a channel. The returned func
// leaves; it must be safe to call more than once.
type Presence interface {
	Enter(ctx context.Context, conn presence.Conn, channelID, userID, nickname string) (leave func(), err error)
}

// Conn is the client connection of a session.
type Conn interface {
	presence.Conn
	Send(msg models.SessionMessage) error
}

// TrackerPresence adapts a presence.Tracker to Presence.
type TrackerPresence struct {
	Tracker *presence.Tracker
}

func (p TrackerPresence) Enter(ctx context.Context, conn presence.Conn, channelID, userID, nickname string) (func(), error) {
	v, err := p.Tracker.Enter(ctx, conn, channelID, userID, nickname)
	if err != nil {
		return nil, err
	}
	return v.Leave, nil
}

type User struct {
	ID       string
	Nickname string
}

// Session is one connected client. All state changes happen on the event
// loop started by Run; stream deliveries and vote completions are posted to
// it as events.
type Session struct {
	user     User
	conn     Conn
	source   Source
	presence Presence
	engine   *vote.Engine
	agg      *Aggregator
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	done   chan struct{}
	wg     sync.WaitGroup

	postsSub    livequery.Subscription
	presenceSub livequery.Subscription
	votesSub    livequery.Subscription
	threadSub   livequery.Subscription
	visit       visitSlot
}

// visitSlot holds the presence entry of the current channel. Enters finish
// off-loop, so it is guarded by its own lock.
type visitSlot struct {
	mu     sync.Mutex
	gen    uint64
	leave  func()
	closed bool
}

// set stores leave if gen is still current; otherwise it leaves at once.
func (v *visitSlot) set(gen uint64, leave func()) {
	v.mu.Lock()
	if v.closed || gen != v.gen {
		v.mu.Unlock()
		leave()
		return
	}
	v.leave = leave
	v.mu.Unlock()
}

// reset leaves the held entry and moves to gen.
func (v *visitSlot) reset(gen uint64, closed bool) {
	v.mu.Lock()
	old := v.leave
	v.leave, v.gen = nil, gen
	v.closed = v.closed || closed
	v.mu.Unlock()
	if old != nil {
		old()
	}
}

func NewSession(user User, conn Conn, source Source, pres Presence, backend vote.Backend, log zerolog.Logger) *Session {
	engine := vote.NewEngine(backend, log)
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		user:     user,
		conn:     conn,
		source:   source,
		presence: pres,
		engine:   engine,
		agg:      NewAggregator(user.ID, engine),
		log:      log.With().Str("userId", user.ID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
	}
}

// Run subscribes to the user's votes and to channelID, then processes events
// until Close or the connection drops. It returns after every subscription is
// cancelled and the presence entry left.
func (s *Session) Run(channelID string) {
	defer close(s.done)
	s.conn.OnDisconnect(s.Close)

	s.votesSub = s.source.Votes(s.ctx, s.user.ID, func(m models.VoteMap) {
		s.post(func() {
			if s.agg.ApplyVotes(m) {
				s.push()
			}
		})
	})
	s.switchChannel(channelID)

	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return
		case fn := <-s.events:
			fn()
		}
	}
}

// Close stops the session. Safe to call from any goroutine, any number of times.
func (s *Session) Close() {
	s.cancel()
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Handle queues one inbound client message.
func (s *Session) Handle(msg models.SessionMessage) {
	s.post(func() { s.handle(msg) })
}

func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.ctx.Done():
	}
}

func (s *Session) handle(msg models.SessionMessage) {
	switch msg.Type {
	case models.MsgSwitchChannel:
		var p models.SwitchChannelPayload
		if err := decode(msg.Payload, &p); err != nil {
			s.sendError(models.MsgError, err, "")
			return
		}
		s.switchChannel(p.ChannelID)

	case models.MsgSetFilter:
		var p models.SetFilterPayload
		if err := decode(msg.Payload, &p); err != nil {
			s.sendError(models.MsgError, err, "")
			return
		}
		s.agg.SetFilter(Filter{MineOnly: p.MineOnly, Query: p.Query})
		s.push()

	case models.MsgVote:
		var p models.VotePayload
		if err := decode(msg.Payload, &p); err != nil {
			s.sendError(models.MsgVoteError, err, "")
			return
		}
		s.castVote(p.PostID, p.Direction)

	case models.MsgOpenPost:
		var p models.OpenPostPayload
		if err := decode(msg.Payload, &p); err != nil || p.PostID == "" {
			s.sendError(models.MsgError, apperrors.Validation(apperrors.CodeInvalidInput, "post id is required"), "")
			return
		}
		s.openThread(p.PostID)

	case models.MsgClosePost:
		s.cancelSub(&s.threadSub)
		s.agg.CloseThread()
		s.push()

	default:
		s.sendError(models.MsgError, apperrors.Validation(apperrors.CodeInvalidInput, "unknown message type "+msg.Type), "")
	}
}

func (s *Session) switchChannel(channelID string) {
	if channelID == "" {
		channelID = models.AllChannels
	}
	if channelID != models.AllChannels && !models.IsKnownChannel(channelID) {
		s.sendError(models.MsgError, apperrors.Validation(apperrors.CodeUnknownChannel, "unknown channel "+channelID), "")
		return
	}

	// (a) очищаємо, (b) відписуємося, (c) підписуємося знову
	gen := s.agg.SwitchChannel(channelID)
	s.cancelSub(&s.postsSub)
	s.cancelSub(&s.presenceSub)
	s.visit.reset(gen, false)
	s.push()

	s.postsSub = s.source.Posts(s.ctx, channelID, func(posts []models.Post) {
		s.post(func() {
			if s.agg.ApplyPosts(gen, posts) {
				s.push()
			}
		})
	})
	s.presenceSub = s.source.Presence(s.ctx, channelID, func(n int) {
		s.post(func() {
			if s.agg.ApplyPresence(gen, n) {
				s.push()
			}
		})
	})
	s.enterChannel(gen, channelID)
}

// enterChannel writes the presence entry off-loop. If the user moved on
// before the write finished, the entry is removed right away.
func (s *Session) enterChannel(gen uint64, channelID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		leave, err := s.presence.Enter(s.ctx, s.conn, channelID, s.user.ID, s.user.Nickname)
		if err != nil {
			s.log.Warn().Err(err).Str("channelId", channelID).Msg("presence enter failed")
			return
		}
		s.visit.set(gen, leave)
	}()
}

func (s *Session) castVote(postID string, direction models.VoteDirection) {
	auth, ok := s.agg.Authoritative(postID)
	if !ok {
		s.sendError(models.MsgVoteError, apperrors.NotFound("post", postID), postID)
		return
	}

	p, err := s.engine.Begin(s.user.ID, postID, direction, auth)
	if err != nil {
		s.sendError(models.MsgVoteError, err, postID)
		return
	}
	if p == nil {
		return // in flight
	}
	s.push()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		receipt, err := s.engine.Run(s.ctx, p)
		s.post(func() {
			if _, err := s.engine.Complete(p, receipt, err); err != nil {
				s.sendError(models.MsgVoteError, err, postID)
			}
			s.push()
		})
	}()
}

func (s *Session) openThread(postID string) {
	s.cancelSub(&s.threadSub)
	gen := s.agg.OpenThread(postID)
	s.push()

	s.threadSub = s.source.Thread(s.ctx, postID, func(th models.Thread) {
		s.post(func() {
			if s.agg.ApplyThread(gen, th) {
				s.push()
			}
		})
	})
}

func (s *Session) cancelSub(sub *livequery.Subscription) {
	if *sub != nil {
		(*sub).Cancel()
		*sub = nil
	}
}

func (s *Session) teardown() {
	s.cancelSub(&s.postsSub)
	s.cancelSub(&s.presenceSub)
	s.cancelSub(&s.votesSub)
	s.cancelSub(&s.threadSub)
	s.visit.reset(0, true)
	s.wg.Wait()
}

func (s *Session) push() {
	payload, err := json.Marshal(s.agg.View())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode feed view")
		return
	}
	if err := s.conn.Send(models.SessionMessage{Type: models.MsgFeed, Payload: payload}); err != nil {
		s.log.Debug().Err(err).Msg("feed push dropped")
	}
}

func (s *Session) sendError(msgType string, err error, postID string) {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = apperrors.CodeInvalidInput
	}
	payload, _ := json.Marshal(models.ErrorPayload{Code: code, Message: err.Error(), PostID: postID})
	if err := s.conn.Send(models.SessionMessage{Type: msgType, Payload: payload}); err != nil {
		s.log.Debug().Err(err).Msg("error message dropped")
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return apperrors.Validation(apperrors.CodeInvalidInput, "payload is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.Validation(apperrors.CodeInvalidInput, "malformed payload")
	}
	return nil
}
