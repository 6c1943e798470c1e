package config

import "time"

const (
	// Reports
	ReportFlagThreshold = 5 // the report that brings ReportCount to this value flags the post

	// Content
	MaxPostRunes    = 2000
	MaxCommentRunes = 1000
	MaxTitleRunes   = 120
	MaxReasonRunes  = 500

	// Accounts
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 6

	// Presence
	DefaultPresenceTTL       = 90 * time.Second
	DefaultPresenceHeartbeat = 30 * time.Second

	// Moderation
	DefaultModerationModel   = "gemini-1.5-flash"
	DefaultModerationTimeout = 8 * time.Second
)

// BlockedReason is returned when the classifier rejects a text without giving its own reason.
const BlockedReason = "Community Guidelines: Post contains prohibited content (bullying, hate speech, or real names)."

// Feed
const FeedLimit = 200 // newest posts per channel snapshot
