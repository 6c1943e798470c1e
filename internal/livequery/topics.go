package livequery

// Every change notification is published on one of these Redis channels.
// The payload is informational only; subscribers always re-query.
const (
	topicPrefix = "whisper:"

	// ReportsTopic changes whenever the moderation queue does.
	ReportsTopic = topicPrefix + "reports"
)

// PostsTopic covers every post of a channel. Writers publish on both the
// post's channel and the "all" sentinel.
func PostsTopic(channelID string) string { return topicPrefix + "posts:" + channelID }

// PostTopic covers one post and its comments.
func PostTopic(postID string) string { return topicPrefix + "post:" + postID }

// VotesTopic covers the vote map of one user.
func VotesTopic(userID string) string { return topicPrefix + "votes:" + userID }

func PresenceTopic(channelID string) string { return topicPrefix + "presence:" + channelID }

// SessionTopic fires when a user's sign-in state changes.
func SessionTopic(userID string) string { return topicPrefix + "session:" + userID }
