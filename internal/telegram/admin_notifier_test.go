package telegram

import (
	"campuswhisper/backend/internal/models"
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestPostFlagged_SendsToAdminChat(t *testing.T) {
	// Arrange
	sender := new(MockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok &&
			strings.Contains(msg.Text, "after 5 reports") &&
			strings.Contains(msg.Text, "Misty Hawk") &&
			strings.Contains(msg.Text, "lorem")
	})).Return(tgbotapi.Message{}, nil)
	n := NewAdminNotifierWithSender(sender, 42, zerolog.Nop())

	// Act
	err := n.PostFlagged(context.Background(), &models.Post{ID: "p1", ChannelID: "cse", AuthorName: "Misty Hawk", Content: "lorem", ReportCount: 5})

	// Assert
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestPostFlagged_SendError(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("429"))

	err := NewAdminNotifierWithSender(sender, 42, zerolog.Nop()).PostFlagged(context.Background(), &models.Post{ID: "p1"})

	assert.Error(t, err)
}

func TestPostFlagged_DisabledWithoutToken(t *testing.T) {
	n, err := NewAdminNotifier("", 42, zerolog.Nop())
	require.NoError(t, err)

	assert.NoError(t, n.PostFlagged(context.Background(), &models.Post{ID: "p1"}))
}

func TestFlaggedText_TruncatesLongContent(t *testing.T) {
	text := flaggedText(&models.Post{Content: strings.Repeat("ж", 1000)})

	assert.Equal(t, previewRunes, strings.Count(text, "ж"))
	assert.True(t, strings.HasSuffix(text, "…"))
}
