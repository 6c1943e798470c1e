package handler

import (
	"campuswhisper/backend/internal/feed"
	"campuswhisper/backend/internal/hub"
	"campuswhisper/backend/internal/models"
	"campuswhisper/backend/internal/namegen"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену; токен перевіряється до upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket і запускає live-сесію
// для каналу з параметра ?channel= (за замовчуванням "all").
func (h *Handler) ServeWebSocket(c *gin.Context) {
	id := identity(c)
	channelID := c.DefaultQuery("channel", models.AllChannels)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.Log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(conn, id.UserID, c.GetString(ctxToken), id.ExpiresAt, h.Log)
	if !h.Hub.Register(client) {
		client.Close()
		return
	}

	user := feed.User{ID: id.UserID, Nickname: namegen.Derive(id.UserID)}
	session := feed.NewSession(user, client, h.Live, h.Presence, h.Store, h.Log)
	client.Run(session.Handle)
	go session.Run(channelID)
}
