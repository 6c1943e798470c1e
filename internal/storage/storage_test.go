package storage

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/livequery"
	"campuswhisper/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
}

func (n *recordingNotifier) Publish(_ context.Context, topics ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topics...)
}

func (n *recordingNotifier) published() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.topics...)
}

func newTestService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	db, err := OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	n := &recordingNotifier{}
	return NewStorageService(db, n, zerolog.Nop()), n
}

func seedUser(t *testing.T, s *Service, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@student.bup.edu.bd", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedPost(t *testing.T, s *Service, author *models.User, channel string, created time.Time) *models.Post {
	t.Helper()
	p := &models.Post{AuthorID: author.ID, AuthorName: "Silent Tiger", Content: "hello " + channel, ChannelID: channel, CreatedAt: created}
	require.NoError(t, s.CreatePost(context.Background(), p))
	return p
}

func TestCastVote_UpDownDown(t *testing.T) {
	// Arrange
	s, n := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	voter := seedUser(t, s, "voter")
	post := seedPost(t, s, author, "cse", time.Now())

	// Act & Assert
	steps := []struct {
		action models.VoteDirection
		karma  int
		dir    models.VoteDirection
	}{
		{models.VoteUp, 1, models.VoteUp},
		{models.VoteDown, -1, models.VoteDown},
		{models.VoteDown, 0, models.VoteNone},
	}
	var lastVersion int64
	for i, step := range steps {
		r, err := s.CastVote(ctx, voter.ID, post.ID, step.action)
		require.NoError(t, err)
		assert.Equal(t, step.karma, r.Karma)
		assert.Equal(t, step.dir, r.Direction)
		assert.Equal(t, int64(i+1), r.VoteSeq)
		assert.Greater(t, r.PostVersion, lastVersion)
		lastVersion = r.PostVersion
	}

	stored, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Karma)

	a, err := s.GetUser(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Karma)

	var count int64
	s.DB.Model(&models.Vote{}).Count(&count)
	assert.Zero(t, count, "toggle-off deletes the vote row")

	assert.Contains(t, n.published(), livequery.VotesTopic(voter.ID))
	assert.Contains(t, n.published(), livequery.PostsTopic("cse"))
	assert.Contains(t, n.published(), livequery.PostsTopic(models.AllChannels))
}

func TestCastVote_KarmaIsSumOfVotes(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	post := seedPost(t, s, author, "law", time.Now())

	var voters []*models.User
	for i := 0; i < 4; i++ {
		voters = append(voters, seedUser(t, s, fmt.Sprintf("voter%d", i)))
	}

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 40; i++ {
		v := voters[rng.Intn(len(voters))]
		dir := models.VoteUp
		if rng.Intn(2) == 0 {
			dir = models.VoteDown
		}
		_, err := s.CastVote(ctx, v.ID, post.ID, dir)
		require.NoError(t, err)
	}

	var votes []models.Vote
	require.NoError(t, s.DB.Where("post_id = ?", post.ID).Find(&votes).Error)
	sum := 0
	for _, v := range votes {
		if v.Direction == models.VoteUp {
			sum++
		} else {
			sum--
		}
	}

	stored, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, sum, stored.Karma)
	a, _ := s.GetUser(ctx, author.ID)
	assert.Equal(t, sum, a.Karma)
}

func TestCastVote_ConcurrentVotersLoseNoUpdate(t *testing.T) {
	// Arrange
	s, _ := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	post := seedPost(t, s, author, "cse", time.Now())

	const voters = 12
	var users []*models.User
	for i := 0; i < voters; i++ {
		users = append(users, seedUser(t, s, fmt.Sprintf("voter%d", i)))
	}
	toggler := seedUser(t, s, "toggler")

	// Act: every voter upvotes once while one user keeps toggling
	errs := make(chan error, voters+9)
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			_, err := s.CastVote(ctx, u.ID, post.ID, models.VoteUp)
			errs <- err
		}(u)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 9; i++ { // odd: ends up
			_, err := s.CastVote(ctx, toggler.ID, post.ID, models.VoteUp)
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)

	// Assert
	for err := range errs {
		require.NoError(t, err)
	}

	var votes []models.Vote
	require.NoError(t, s.DB.Where("post_id = ?", post.ID).Find(&votes).Error)
	sum := 0
	perUser := map[string]int{}
	for _, v := range votes {
		perUser[v.UserID]++
		if v.Direction == models.VoteUp {
			sum++
		} else {
			sum--
		}
	}
	for userID, n := range perUser {
		assert.Equal(t, 1, n, "user %s has more than one vote row", userID)
	}
	assert.Equal(t, voters+1, sum)

	stored, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, sum, stored.Karma)
	assert.Equal(t, int64(voters+9), stored.Version, "one version bump per committed vote")

	a, err := s.GetUser(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, sum, a.Karma)

	tg, err := s.GetUser(ctx, toggler.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), tg.VoteSeq)
}

func TestCastVote_Errors(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	post := seedPost(t, s, author, "cse", time.Now())

	_, err := s.CastVote(ctx, author.ID, "missing", models.VoteUp)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = s.CastVote(ctx, author.ID, post.ID, models.VoteDirection("x"))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	// unknown voter: whole transaction rolls back
	_, err = s.CastVote(ctx, "ghost", post.ID, models.VoteUp)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
	stored, _ := s.GetPost(ctx, post.ID)
	assert.Equal(t, 0, stored.Karma)
	assert.Equal(t, int64(0), stored.Version)
}

func TestUserVoteMap(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	voter := seedUser(t, s, "voter")
	p1 := seedPost(t, s, author, "cse", time.Now())
	p2 := seedPost(t, s, author, "ict", time.Now())

	_, err := s.CastVote(ctx, voter.ID, p1.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = s.CastVote(ctx, voter.ID, p2.ID, models.VoteDown)
	require.NoError(t, err)

	m, err := s.UserVoteMap(ctx, voter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Seq)
	assert.Equal(t, map[string]models.VoteDirection{p1.ID: models.VoteUp, p2.ID: models.VoteDown}, m.Votes)

	_, err = s.UserVoteMap(ctx, "ghost")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestListFeedPosts(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	base := time.Now().Add(-time.Hour)

	older := seedPost(t, s, author, "cse", base)
	newer := seedPost(t, s, author, "cse", base.Add(time.Minute))
	other := seedPost(t, s, author, "ict", base.Add(2*time.Minute))
	flagged := seedPost(t, s, author, "cse", base.Add(3*time.Minute))
	hidden := seedPost(t, s, author, "cse", base.Add(4*time.Minute))
	s.DB.Model(&models.Post{}).Where("id = ?", flagged.ID).Update("is_flagged", true)
	s.DB.Model(&models.Post{}).Where("id = ?", hidden.ID).Update("is_shadow_banned", true)

	posts, err := s.ListFeedPosts(ctx, "cse")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, newer.ID, posts[0].ID)
	assert.Equal(t, older.ID, posts[1].ID)

	all, err := s.ListFeedPosts(ctx, models.AllChannels)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID)
}

func TestAddComment(t *testing.T) {
	s, n := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	post := seedPost(t, s, author, "exams", time.Now())

	for i := 0; i < 2; i++ {
		c := &models.Comment{PostID: post.ID, AuthorID: author.ID, AuthorName: "Misty Hawk", Content: fmt.Sprintf("c%d", i), CreatedAt: time.Now().Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.AddComment(ctx, c))
	}

	stored, _ := s.GetPost(ctx, post.ID)
	assert.Equal(t, 2, stored.CommentCount)

	comments, err := s.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c0", comments[0].Content, "oldest first")
	assert.Contains(t, n.published(), livequery.PostTopic(post.ID))

	// missing parent
	err = s.AddComment(ctx, &models.Comment{PostID: "gone", AuthorID: author.ID, AuthorName: "x", Content: "orphan"})
	assert.True(t, errors.Is(err, apperrors.ErrIntegrity))
	var orphans int64
	s.DB.Model(&models.Comment{}).Where("post_id = ?", "gone").Count(&orphans)
	assert.Zero(t, orphans)
}

func TestFileReport_FlagsAtThreshold(t *testing.T) {
	s, n := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	post := seedPost(t, s, author, "cse", time.Now())

	for i := 1; i <= 5; i++ {
		reporter := seedUser(t, s, fmt.Sprintf("rep%d", i))
		p, err := s.FileReport(ctx, &models.Report{PostID: post.ID, ReporterID: reporter.ID, Reason: "spam"})
		require.NoError(t, err)
		assert.Equal(t, i, p.ReportCount)
		assert.Equal(t, i == 5, p.IsFlagged, "report %d", i)

		if i == 1 {
			_, err = s.FileReport(ctx, &models.Report{PostID: post.ID, ReporterID: reporter.ID, Reason: "again"})
			assert.Equal(t, apperrors.CodeAlreadyReported, apperrors.CodeOf(err))
		}
	}

	posts, _ := s.ListFeedPosts(ctx, "cse")
	assert.Empty(t, posts, "flagged post leaves the feed")
	assert.Contains(t, n.published(), livequery.ReportsTopic)

	_, err := s.FileReport(ctx, &models.Report{PostID: "missing", ReporterID: author.ID, Reason: "x"})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestReportQueue(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	r1 := seedUser(t, s, "rep1")
	r2 := seedUser(t, s, "rep2")
	kept := seedPost(t, s, author, "cse", time.Now())
	doomed := seedPost(t, s, author, "ict", time.Now())

	first := &models.Report{PostID: kept.ID, ReporterID: r1.ID, Reason: "a", CreatedAt: time.Now().Add(-time.Minute)}
	second := &models.Report{PostID: doomed.ID, ReporterID: r1.ID, Reason: "b", CreatedAt: time.Now()}
	third := &models.Report{PostID: doomed.ID, ReporterID: r2.ID, Reason: "c", CreatedAt: time.Now()}
	for _, r := range []*models.Report{first, second, third} {
		_, err := s.FileReport(ctx, r)
		require.NoError(t, err)
	}

	views, err := s.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, first.ID, views[2].ID, "newest first")
	assert.Equal(t, kept.Content, views[2].PostContent)
	assert.True(t, views[2].PostExists)

	// delete the post behind the second report: its other report goes too
	require.NoError(t, s.DeleteReportedPost(ctx, second.ID))
	_, err = s.GetPost(ctx, doomed.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	views, err = s.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)

	// dismiss leaves the post alone
	require.NoError(t, s.DismissReport(ctx, first.ID))
	stillThere, err := s.GetPost(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stillThere.ReportCount)

	assert.True(t, errors.Is(s.DismissReport(ctx, first.ID), apperrors.ErrNotFound))
}

func TestListReports_DeletedPostPlaceholder(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	post := seedPost(t, s, author, "cse", time.Now())

	// a report whose post vanished outside the queue
	require.NoError(t, s.DB.Create(&models.Report{PostID: "vanished", ReporterID: author.ID, Reason: "x"}).Error)
	_, err := s.FileReport(ctx, &models.Report{PostID: post.ID, ReporterID: author.ID, Reason: "y"})
	require.NoError(t, err)

	views, err := s.ListReports(ctx)
	require.NoError(t, err)
	for _, v := range views {
		if v.PostID == "vanished" {
			assert.Equal(t, models.DeletedPostPlaceholder, v.PostContent)
			assert.False(t, v.PostExists)
		}
	}
}

func TestDeleteOwnPost(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, s, "author")
	other := seedUser(t, s, "other")
	post := seedPost(t, s, author, "cse", time.Now())
	_, err := s.CastVote(ctx, other.ID, post.ID, models.VoteUp)
	require.NoError(t, err)

	err = s.DeleteOwnPost(ctx, other.ID, post.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	require.NoError(t, s.DeleteOwnPost(ctx, author.ID, post.ID))
	m, _ := s.UserVoteMap(ctx, other.ID)
	assert.Empty(t, m.Votes)
}

func TestCreateUser_Conflicts(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, s, "QuietFox")

	err := s.CreateUser(ctx, &models.User{Username: "quietfox", Email: "new@student.bup.edu.bd", PasswordHash: "x"})
	assert.Equal(t, apperrors.CodeUsernameTaken, apperrors.CodeOf(err))

	err = s.CreateUser(ctx, &models.User{Username: "Another", Email: "QuietFox@student.bup.edu.bd", PasswordHash: "x"})
	assert.Equal(t, apperrors.CodeEmailInUse, apperrors.CodeOf(err))
}

func TestUpdateProfile(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, s, "profile")

	major := "CSE"
	updated, err := s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Major: &major})
	require.NoError(t, err)
	assert.Equal(t, "CSE", updated.Major)
	assert.Empty(t, updated.Bio)

	_, err = s.UpdateProfile(ctx, "ghost", models.ProfileUpdate{Major: &major})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, s.SetShadowBan(ctx, u.ID, true))
	banned, _ := s.GetUser(ctx, u.ID)
	assert.True(t, banned.IsShadowBanned)
}
