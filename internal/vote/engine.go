package vote

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/models"
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Backend commits one vote transaction and returns what it wrote.
type Backend interface {
	CastVote(ctx context.Context, userID, postID string, action models.VoteDirection) (models.VoteReceipt, error)
}

// Authoritative is the latest value of a post as delivered by the live streams:
// the post snapshot (karma, version) and this user's vote map (vote, seq).
type Authoritative struct {
	Karma       int
	PostVersion int64
	Vote        models.VoteDirection
	VoteSeq     int64
}

// Display is what the user sees for one post.
type Display struct {
	Karma int                  `json:"karma"`
	Vote  models.VoteDirection `json:"userVote"`
}

// Outcome of a cast. Ignored is set when another cast on the same post was
// still in flight; nothing was sent to the backend then.
type Outcome struct {
	Ignored bool
	Receipt models.VoteReceipt
}

// overlay is a tentative value shown instead of the authoritative one.
// Each half is dropped once the streams catch up with it:
// karma when PostVersion >= karmaUntil, vote when VoteSeq >= voteUntil.
type overlay struct {
	karma      int
	karmaUntil int64
	hasKarma   bool

	vote      models.VoteDirection
	voteUntil int64
	hasVote   bool

	pending *Pending
}

// Pending is a cast that has been shown optimistically and not yet committed.
type Pending struct {
	UserID string
	PostID string
	Action models.VoteDirection

	next  models.VoteDirection
	delta int

	// pre-action display and the watermarks it was valid until
	before     Display
	karmaUntil int64
	voteUntil  int64
}

// Engine keeps the overlays of one client session. It is safe for concurrent
// use, but a session normally drives it from its own event loop and only
// runs Pending.Run off-loop.
type Engine struct {
	mu       sync.Mutex
	backend  Backend
	overlays map[string]*overlay
	log      zerolog.Logger
}

func NewEngine(backend Backend, log zerolog.Logger) *Engine {
	return &Engine{
		backend:  backend,
		overlays: make(map[string]*overlay),
		log:      log,
	}
}

// Cast runs Begin, the backend transaction and Complete in one call.
func (e *Engine) Cast(ctx context.Context, userID, postID string, action models.VoteDirection, auth Authoritative) (Outcome, error) {
	p, err := e.Begin(userID, postID, action, auth)
	if err != nil {
		return Outcome{}, err
	}
	if p == nil {
		return Outcome{Ignored: true}, nil
	}
	receipt, err := e.Run(ctx, p)
	return e.Complete(p, receipt, err)
}

// Begin validates the cast and installs the optimistic overlay. A nil Pending
// with a nil error means the cast was ignored because one is already in flight.
func (e *Engine) Begin(userID, postID string, action models.VoteDirection, auth Authoritative) (*Pending, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated("sign in to vote")
	}
	if postID == "" {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, "post id is required")
	}
	if _, err := models.ParseVoteDirection(string(action)); err != nil {
		return nil, apperrors.Validation(apperrors.CodeInvalidInput, err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if ov, ok := e.overlays[postID]; ok && ov.pending != nil {
		e.log.Debug().Str("postId", postID).Msg("vote already in flight, ignoring")
		return nil, nil
	}

	before, karmaUntil, voteUntil := e.current(postID, auth)
	next, delta := Transition(before.Vote, action)

	p := &Pending{
		UserID:     userID,
		PostID:     postID,
		Action:     action,
		next:       next,
		delta:      delta,
		before:     before,
		karmaUntil: karmaUntil,
		voteUntil:  voteUntil,
	}
	e.overlays[postID] = &overlay{pending: p}
	return p, nil
}

// Run performs the backend transaction. It touches no engine state.
func (e *Engine) Run(ctx context.Context, p *Pending) (models.VoteReceipt, error) {
	return e.backend.CastVote(ctx, p.UserID, p.PostID, p.Action)
}

// Complete settles a pending cast. On success the overlay holds the committed
// values until the streams report them; on failure it holds the pre-action
// display, so nothing the user sees changes.
func (e *Engine) Complete(p *Pending, receipt models.VoteReceipt, err error) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.overlays[p.PostID] = &overlay{
			karma: p.before.Karma, karmaUntil: p.karmaUntil, hasKarma: true,
			vote: p.before.Vote, voteUntil: p.voteUntil, hasVote: true,
		}
		e.log.Warn().Err(err).Str("postId", p.PostID).Msg("vote rolled back")
		return Outcome{}, normalize(err)
	}

	e.overlays[p.PostID] = &overlay{
		karma: receipt.Karma, karmaUntil: receipt.PostVersion, hasKarma: true,
		vote: receipt.Direction, voteUntil: receipt.VoteSeq, hasVote: true,
	}
	return Outcome{Receipt: receipt}, nil
}

// Display merges the overlay of postID, if any, with the authoritative value.
// Overlay halves the streams have caught up with are discarded here.
func (e *Engine) Display(postID string, auth Authoritative) Display {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, _, _ := e.current(postID, auth)
	return d
}

// InFlight reports whether a cast on postID awaits its transaction.
func (e *Engine) InFlight(postID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ov, ok := e.overlays[postID]
	return ok && ov.pending != nil
}

// current returns the display and the watermarks until which its karma and
// vote halves stay valid. Caller holds e.mu.
func (e *Engine) current(postID string, auth Authoritative) (Display, int64, int64) {
	d := Display{Karma: auth.Karma, Vote: auth.Vote}
	karmaUntil, voteUntil := auth.PostVersion+1, auth.VoteSeq+1

	ov, ok := e.overlays[postID]
	if !ok {
		return d, karmaUntil, voteUntil
	}

	if p := ov.pending; p != nil {
		// a newer snapshot may already include our own commit, so it is not
		// rebased on; Complete sets the watermarks from the receipt
		d.Karma, d.Vote = p.before.Karma+p.delta, p.next
		return d, p.karmaUntil, p.voteUntil
	}

	if ov.hasKarma && auth.PostVersion >= ov.karmaUntil {
		ov.hasKarma = false
	}
	if ov.hasVote && auth.VoteSeq >= ov.voteUntil {
		ov.hasVote = false
	}
	if !ov.hasKarma && !ov.hasVote {
		delete(e.overlays, postID)
		return d, karmaUntil, voteUntil
	}

	if ov.hasKarma {
		d.Karma, karmaUntil = ov.karma, ov.karmaUntil
	}
	if ov.hasVote {
		d.Vote, voteUntil = ov.vote, ov.voteUntil
	}
	return d, karmaUntil, voteUntil
}

func normalize(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Transient("vote", err)
}
