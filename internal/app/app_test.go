package app

import (
	"bytes"
	"campuswhisper/backend/internal/config"
	"campuswhisper/backend/internal/feed"
	"campuswhisper/backend/internal/models"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	mr := miniredis.RunT(t)

	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", ":memory:")
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("GIN_MODE", "test")
	t.Setenv("MODERATION_BLOCKED_PATTERNS", "badword")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return a, srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func register(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	resp, body := call(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    username + "@student.bup.edu.bd",
		"username": username,
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &sess))
	return sess.Token
}

// waitForView reads feed messages until one satisfies ok.
func waitForView(t *testing.T, conn *websocket.Conn, ok func(feed.View) bool) feed.View {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg models.SessionMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != models.MsgFeed {
			continue
		}
		var view feed.View
		require.NoError(t, json.Unmarshal(msg.Payload, &view))
		if ok(view) {
			return view
		}
	}
}

func TestEndToEnd_PostVoteAndSignOut(t *testing.T) {
	_, srv := newTestApp(t)
	token := register(t, srv, "rafi")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?channel=cse&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForView(t, conn, func(v feed.View) bool { return !v.Loading && v.PresenceCount == 1 })

	// post
	resp, body := call(t, srv, http.MethodPost, "/posts", token, map[string]string{"content": "hello campus", "channelId": "cse"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post))
	assert.NotEmpty(t, post.AuthorName)
	assert.NotEqual(t, "rafi", post.AuthorName)

	view := waitForView(t, conn, func(v feed.View) bool { return len(v.Posts) == 1 })
	assert.Equal(t, post.ID, view.Posts[0].ID)

	// vote over the socket
	payload, _ := json.Marshal(models.VotePayload{PostID: post.ID, Direction: models.VoteUp})
	require.NoError(t, conn.WriteJSON(models.SessionMessage{Type: models.MsgVote, Payload: payload}))
	waitForView(t, conn, func(v feed.View) bool {
		return len(v.Posts) == 1 && v.Posts[0].Karma == 1 && v.Posts[0].UserVote == models.VoteUp
	})

	resp, body = call(t, srv, http.MethodGet, "/posts/"+post.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &post))
	assert.Equal(t, 1, post.Karma)

	// sign-out closes the socket
	resp, _ = call(t, srv, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg models.SessionMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
	}
	resp, _ = call(t, srv, http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEndToEnd_BlockedPostIsNotCreated(t *testing.T) {
	a, srv := newTestApp(t)
	token := register(t, srv, "nila")

	resp, body := call(t, srv, http.MethodPost, "/posts", token, map[string]string{"content": "you are a BADWORD", "channelId": "cse"})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), config.BlockedReason)
	posts, err := a.Storage.ListFeedPosts(context.Background(), models.AllChannels)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestRouter_PublicRoutes(t *testing.T) {
	_, srv := newTestApp(t)

	resp, body := call(t, srv, http.MethodGet, "/channels", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var channels []models.Channel
	require.NoError(t, json.Unmarshal(body, &channels))
	assert.Len(t, channels, len(models.Channels))

	resp, _ = call(t, srv, http.MethodGet, "/posts/x", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
