// Package telegram alerts the moderators' Telegram chat about auto-flagged posts.
package telegram

import (
	"campuswhisper/backend/internal/models"
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const previewRunes = 300

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type AdminNotifier struct {
	bot    Sender
	chatID int64
	log    zerolog.Logger
}

// NewAdminNotifier connects to the Bot API. Without a token or chat id it
// returns a notifier that does nothing.
func NewAdminNotifier(token string, chatID int64, log zerolog.Logger) (*AdminNotifier, error) {
	n := &AdminNotifier{chatID: chatID, log: log}
	if token == "" || chatID == 0 {
		log.Info().Msg("telegram admin notifications disabled")
		return n, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("telegram admin notifications enabled")
	n.bot = bot
	return n, nil
}

// NewAdminNotifierWithSender is used when the bot client already exists.
func NewAdminNotifierWithSender(bot Sender, chatID int64, log zerolog.Logger) *AdminNotifier {
	return &AdminNotifier{bot: bot, chatID: chatID, log: log}
}

// PostFlagged sends one alert. The post content is shown truncated.
func (n *AdminNotifier) PostFlagged(ctx context.Context, post *models.Post) error {
	if n.bot == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, flaggedText(post))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send flag alert: %w", err)
	}
	n.log.Debug().Str("postId", post.ID).Msg("flag alert sent")
	return nil
}

func flaggedText(post *models.Post) string {
	content := post.Content
	if utf8.RuneCountInString(content) > previewRunes {
		content = string([]rune(content)[:previewRunes]) + "…"
	}
	return fmt.Sprintf("🚩 Post auto-flagged after %d reports\nChannel: %s\nAuthor: %s\nPost ID: %s\n\n%s",
		post.ReportCount, post.ChannelID, post.AuthorName, post.ID, content)
}
