package models

import (
	"encoding/json"
	"time"
)

// Типи повідомлень WebSocket-сесії.
const (
	// client -> server
	MsgSwitchChannel = "switch_channel"
	MsgSetFilter     = "set_filter"
	MsgVote          = "vote"
	MsgOpenPost      = "open_post"
	MsgClosePost     = "close_post"

	// server -> client
	MsgFeed      = "feed"
	MsgVoteError = "vote_error"
	MsgError     = "error"
)

// SessionMessage is the envelope exchanged over the live feed socket.
type SessionMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SwitchChannelPayload struct {
	ChannelID string `json:"channelId"`
}

type SetFilterPayload struct {
	MineOnly bool   `json:"mineOnly"`
	Query    string `json:"query"`
}

type VotePayload struct {
	PostID    string        `json:"postId"`
	Direction VoteDirection `json:"direction"`
}

type OpenPostPayload struct {
	PostID string `json:"postId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	PostID  string `json:"postId,omitempty"`
}

// PresenceEntry is one user's presence record in a channel.
type PresenceEntry struct {
	UserID    string    `json:"-"`
	Nickname  string    `json:"nickname"`
	EnteredAt time.Time `json:"enteredAt"`
	Status    string    `json:"status"`
}

const PresenceOnline = "online"
