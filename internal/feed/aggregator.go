// Package feed merges the live streams of one client session (channel posts,
// the user's vote map, the channel's presence count and an optional open
// thread) with the vote overlays into the view the client renders.
package feed

import (
	"campuswhisper/backend/internal/models"
	"campuswhisper/backend/internal/vote"
	"strings"
)

// Filter narrows the channel's posts after the merge.
type Filter struct {
	MineOnly bool   `json:"mineOnly"`
	Query    string `json:"query"`
}

// PostView is a post as one user sees it: karma and vote come from the
// reconciliation engine.
type PostView struct {
	models.Post
	UserVote models.VoteDirection `json:"userVote"`
}

type ThreadView struct {
	Post     *PostView        `json:"post"`
	Comments []models.Comment `json:"comments"`
	Loading  bool             `json:"loading"`
}

type View struct {
	ChannelID     string      `json:"channelId"`
	Loading       bool        `json:"loading"`
	Posts         []PostView  `json:"posts"`
	PresenceCount int         `json:"presenceCount"`
	Filter        Filter      `json:"filter"`
	Thread        *ThreadView `json:"thread,omitempty"`
}

// Aggregator holds the latest snapshot of every stream. It is not safe for
// concurrent use; a Session drives it from its event loop.
//
// Stream results carry the generation they were requested under. Results of
// an older generation are dropped, so nothing from a previous channel (or a
// previously open thread) is ever applied.
type Aggregator struct {
	userID string
	engine *vote.Engine

	generation  uint64
	channelID   string
	posts       []models.Post
	postsLoaded bool
	presence    int

	votes models.VoteMap

	filter Filter

	threadGen    uint64
	threadPostID string
	thread       models.Thread
	threadLoaded bool
}

func NewAggregator(userID string, engine *vote.Engine) *Aggregator {
	return &Aggregator{
		userID: userID,
		engine: engine,
		votes:  models.VoteMap{Votes: map[string]models.VoteDirection{}},
	}
}

// SwitchChannel clears the channel state and returns the generation the new
// channel's streams must present.
func (a *Aggregator) SwitchChannel(channelID string) uint64 {
	a.generation++
	a.channelID = channelID
	a.posts = nil
	a.postsLoaded = false
	a.presence = 0
	return a.generation
}

func (a *Aggregator) ChannelID() string { return a.channelID }

// ApplyPosts stores a post snapshot. It reports false if the snapshot belongs
// to an older generation.
func (a *Aggregator) ApplyPosts(gen uint64, posts []models.Post) bool {
	if gen != a.generation {
		return false
	}
	kept := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if a.inChannel(p) {
			kept = append(kept, p)
		}
	}
	a.posts = kept
	a.postsLoaded = true
	return true
}

func (a *Aggregator) ApplyPresence(gen uint64, count int) bool {
	if gen != a.generation {
		return false
	}
	a.presence = count
	return true
}

// ApplyVotes stores a vote map unless it is older than the one held.
func (a *Aggregator) ApplyVotes(m models.VoteMap) bool {
	if m.Seq < a.votes.Seq {
		return false
	}
	if m.Votes == nil {
		m.Votes = map[string]models.VoteDirection{}
	}
	a.votes = m
	return true
}

func (a *Aggregator) SetFilter(f Filter) { a.filter = f }

// OpenThread attaches a post thread and returns its generation.
func (a *Aggregator) OpenThread(postID string) uint64 {
	a.threadGen++
	a.threadPostID = postID
	a.thread = models.Thread{}
	a.threadLoaded = false
	return a.threadGen
}

func (a *Aggregator) CloseThread() {
	a.threadGen++
	a.threadPostID = ""
	a.thread = models.Thread{}
	a.threadLoaded = false
}

// ApplyThread stores a thread snapshot. A flagged or shadow-banned post is
// shown to its author only; anyone else gets an empty thread, as for a
// deleted post.
func (a *Aggregator) ApplyThread(gen uint64, th models.Thread) bool {
	if gen != a.threadGen || a.threadPostID == "" {
		return false
	}
	if th.Post != nil && !a.visible(th.Post) {
		th = models.Thread{}
	}
	a.thread = th
	a.threadLoaded = true
	return true
}

// Authoritative returns the stream values of a post, looked up in the feed
// first and then in the open thread.
func (a *Aggregator) Authoritative(postID string) (vote.Authoritative, bool) {
	for i := range a.posts {
		if a.posts[i].ID == postID && a.visible(&a.posts[i]) {
			return a.authoritative(&a.posts[i]), true
		}
	}
	if p := a.thread.Post; p != nil && p.ID == postID && a.visible(p) {
		return a.authoritative(p), true
	}
	return vote.Authoritative{}, false
}

func (a *Aggregator) authoritative(p *models.Post) vote.Authoritative {
	return vote.Authoritative{
		Karma:       p.Karma,
		PostVersion: p.Version,
		Vote:        a.votes.Votes[p.ID],
		VoteSeq:     a.votes.Seq,
	}
}

// View recomputes the merged view from the latest snapshots.
func (a *Aggregator) View() View {
	v := View{
		ChannelID:     a.channelID,
		Loading:       !a.postsLoaded,
		Posts:         []PostView{},
		PresenceCount: a.presence,
		Filter:        a.filter,
	}

	query := strings.ToLower(strings.TrimSpace(a.filter.Query))
	for i := range a.posts {
		p := &a.posts[i]
		// missing flags decode as false and count as visible
		if !p.Visible() || !a.inChannel(*p) {
			continue
		}
		if a.filter.MineOnly && p.AuthorID != a.userID {
			continue
		}
		if query != "" && !matches(p, query) {
			continue
		}
		v.Posts = append(v.Posts, a.annotate(p))
	}

	if a.threadPostID != "" {
		tv := &ThreadView{Loading: !a.threadLoaded, Comments: a.thread.Comments}
		if a.thread.Post != nil {
			pv := a.annotate(a.thread.Post)
			tv.Post = &pv
		}
		if tv.Comments == nil {
			tv.Comments = []models.Comment{}
		}
		v.Thread = tv
	}
	return v
}

func (a *Aggregator) annotate(p *models.Post) PostView {
	d := a.engine.Display(p.ID, a.authoritative(p))
	pv := PostView{Post: *p, UserVote: d.Vote}
	pv.Karma = d.Karma
	return pv
}

func (a *Aggregator) visible(p *models.Post) bool {
	return p.Visible() || p.AuthorID == a.userID
}

func (a *Aggregator) inChannel(p models.Post) bool {
	return a.channelID == models.AllChannels || p.ChannelID == a.channelID
}

func matches(p *models.Post, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(p.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(p.Content), lowerQuery)
}
