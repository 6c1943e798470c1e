package feed

import (
	"campuswhisper/backend/internal/models"
	"campuswhisper/backend/internal/vote"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) CastVote(ctx context.Context, userID, postID string, action models.VoteDirection) (models.VoteReceipt, error) {
	args := m.Called(ctx, userID, postID, action)
	return args.Get(0).(models.VoteReceipt), args.Error(1)
}

func newTestAggregator() *Aggregator {
	return NewAggregator("me", vote.NewEngine(new(MockBackend), zerolog.Nop()))
}

func ids(v View) []string {
	out := make([]string, 0, len(v.Posts))
	for _, p := range v.Posts {
		out = append(out, p.ID)
	}
	return out
}

func TestAggregator_ChannelIsolationAcrossSwitch(t *testing.T) {
	// Arrange
	a := newTestAggregator()
	cseGen := a.SwitchChannel("cse")

	// Act: a snapshot that somehow carries a foreign post
	ok := a.ApplyPosts(cseGen, []models.Post{
		{ID: "c1", ChannelID: "cse"},
		{ID: "i1", ChannelID: "ict"},
	})

	// Assert
	require.True(t, ok)
	assert.Equal(t, []string{"c1"}, ids(a.View()))

	ictGen := a.SwitchChannel("ict")
	v := a.View()
	assert.True(t, v.Loading, "switch clears the posts")
	assert.Empty(t, v.Posts)

	// a late cse delivery is dropped
	assert.False(t, a.ApplyPosts(cseGen, []models.Post{{ID: "c2", ChannelID: "cse"}}))
	assert.False(t, a.ApplyPresence(cseGen, 9))
	assert.Empty(t, a.View().Posts)
	assert.Zero(t, a.View().PresenceCount)

	require.True(t, a.ApplyPosts(ictGen, []models.Post{{ID: "i1", ChannelID: "ict"}}))
	assert.Equal(t, []string{"i1"}, ids(a.View()))
}

func TestAggregator_AllChannelKeepsEveryChannel(t *testing.T) {
	a := newTestAggregator()
	gen := a.SwitchChannel(models.AllChannels)
	a.ApplyPosts(gen, []models.Post{{ID: "1", ChannelID: "cse"}, {ID: "2", ChannelID: "law"}})

	assert.Equal(t, []string{"1", "2"}, ids(a.View()))
}

func TestAggregator_HiddenPostsNeverShown(t *testing.T) {
	a := newTestAggregator()
	gen := a.SwitchChannel("cse")
	a.ApplyPosts(gen, []models.Post{
		{ID: "ok", ChannelID: "cse", AuthorID: "me", Content: "secret"},
		{ID: "flagged", ChannelID: "cse", AuthorID: "me", Content: "secret", IsFlagged: true},
		{ID: "banned", ChannelID: "cse", AuthorID: "me", Content: "secret", IsShadowBanned: true},
	})

	filters := []Filter{{}, {MineOnly: true}, {Query: "SECRET"}, {MineOnly: true, Query: "sec"}}
	for _, f := range filters {
		a.SetFilter(f)
		assert.Equal(t, []string{"ok"}, ids(a.View()), "filter %+v", f)
	}
}

func TestAggregator_SecondaryFilters(t *testing.T) {
	a := newTestAggregator()
	gen := a.SwitchChannel("cse")
	a.ApplyPosts(gen, []models.Post{
		{ID: "mine", ChannelID: "cse", AuthorID: "me", Content: "Lab report due"},
		{ID: "theirs", ChannelID: "cse", AuthorID: "you", Title: "Exam ROUTINE", Content: "posted"},
	})

	a.SetFilter(Filter{MineOnly: true})
	assert.Equal(t, []string{"mine"}, ids(a.View()))

	a.SetFilter(Filter{Query: "routine"})
	assert.Equal(t, []string{"theirs"}, ids(a.View()), "title matches case-insensitively")

	a.SetFilter(Filter{Query: "  LAB "})
	assert.Equal(t, []string{"mine"}, ids(a.View()))

	a.SetFilter(Filter{MineOnly: true, Query: "routine"})
	assert.Empty(t, ids(a.View()))
}

func TestAggregator_PostsBeforeVotes(t *testing.T) {
	a := newTestAggregator()
	gen := a.SwitchChannel("cse")
	a.ApplyPosts(gen, []models.Post{{ID: "p1", ChannelID: "cse", Karma: 3}})

	v := a.View()
	assert.Equal(t, models.VoteNone, v.Posts[0].UserVote)

	assert.True(t, a.ApplyVotes(models.VoteMap{Seq: 2, Votes: map[string]models.VoteDirection{"p1": models.VoteUp}}))
	v = a.View()
	assert.Equal(t, models.VoteUp, v.Posts[0].UserVote)
	assert.Equal(t, 3, v.Posts[0].Karma)

	assert.False(t, a.ApplyVotes(models.VoteMap{Seq: 1}), "older vote maps are ignored")
	assert.Equal(t, models.VoteUp, a.View().Posts[0].UserVote)
}

func TestAggregator_OverlayShownUntilStreamsCatchUp(t *testing.T) {
	backend := new(MockBackend)
	backend.On("CastVote", mock.Anything, "me", "p1", models.VoteUp).
		Return(models.VoteReceipt{PostID: "p1", Direction: models.VoteUp, Delta: 1, Karma: 1, PostVersion: 1, VoteSeq: 1}, nil)
	engine := vote.NewEngine(backend, zerolog.Nop())
	a := NewAggregator("me", engine)
	gen := a.SwitchChannel("cse")
	a.ApplyPosts(gen, []models.Post{{ID: "p1", ChannelID: "cse"}})

	auth, ok := a.Authoritative("p1")
	require.True(t, ok)
	_, err := engine.Cast(context.Background(), "me", "p1", models.VoteUp, auth)
	require.NoError(t, err)

	pv := a.View().Posts[0]
	assert.Equal(t, 1, pv.Karma)
	assert.Equal(t, models.VoteUp, pv.UserVote)

	a.ApplyPosts(gen, []models.Post{{ID: "p1", ChannelID: "cse", Karma: 1, Version: 1}})
	a.ApplyVotes(models.VoteMap{Seq: 1, Votes: map[string]models.VoteDirection{"p1": models.VoteUp}})
	pv = a.View().Posts[0]
	assert.Equal(t, 1, pv.Karma)
	assert.Equal(t, models.VoteUp, pv.UserVote)
}

func TestAggregator_Thread(t *testing.T) {
	a := newTestAggregator()
	a.SwitchChannel("cse")

	assert.Nil(t, a.View().Thread)

	old := a.OpenThread("p1")
	gen := a.OpenThread("p2")
	assert.True(t, a.View().Thread.Loading)
	assert.False(t, a.ApplyThread(old, models.Thread{Post: &models.Post{ID: "p1"}}))

	require.True(t, a.ApplyThread(gen, models.Thread{
		Post:     &models.Post{ID: "p2", Karma: 4},
		Comments: []models.Comment{{ID: "c1"}},
	}))
	th := a.View().Thread
	require.NotNil(t, th.Post)
	assert.Equal(t, "p2", th.Post.ID)
	assert.Len(t, th.Comments, 1)

	_, ok := a.Authoritative("p2")
	assert.True(t, ok, "thread post can be voted on")

	a.CloseThread()
	assert.Nil(t, a.View().Thread)
	assert.False(t, a.ApplyThread(gen, models.Thread{}))
}

func TestAggregator_HiddenThreadPostOnlyForAuthor(t *testing.T) {
	tests := []struct {
		name    string
		post    models.Post
		visible bool
	}{
		{"flagged, someone else's", models.Post{ID: "p1", AuthorID: "someone-else", IsFlagged: true}, false},
		{"shadow-banned, someone else's", models.Post{ID: "p1", AuthorID: "someone-else", IsShadowBanned: true}, false},
		{"flagged, own", models.Post{ID: "p1", AuthorID: "me", IsFlagged: true}, true},
		{"visible", models.Post{ID: "p1", AuthorID: "someone-else"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator()
			a.SwitchChannel("cse")
			gen := a.OpenThread("p1")
			post := tt.post

			require.True(t, a.ApplyThread(gen, models.Thread{Post: &post, Comments: []models.Comment{{ID: "c1"}}}))

			th := a.View().Thread
			require.NotNil(t, th)
			assert.False(t, th.Loading)
			_, canVote := a.Authoritative("p1")
			assert.Equal(t, tt.visible, canVote)
			if tt.visible {
				require.NotNil(t, th.Post)
				assert.Len(t, th.Comments, 1)
			} else {
				assert.Nil(t, th.Post)
				assert.Empty(t, th.Comments)
			}
		})
	}
}
