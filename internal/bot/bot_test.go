package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/theorybot/internal/quiz"
)

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: 42, UserName: "driver", FirstName: "Max"},
			Chat: &tgbotapi.Chat{ID: 4242},
			Text: text,
		},
	}
}

func commandUpdate(command string) tgbotapi.Update {
	update := textUpdate(command)
	update.Message.Entities = []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: len(command)},
	}
	return update
}

func TestToActionCommands(t *testing.T) {
	tests := []struct {
		command string
		want    quiz.ActionKind
	}{
		{"/start", quiz.ActionStart},
		{"/stats", quiz.ActionStats},
		{"/resend", quiz.ActionResend},
		{"/skip", quiz.ActionSkip},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			action, ok := toAction(commandUpdate(tt.command))
			require.True(t, ok)
			assert.Equal(t, tt.want, action.Kind)
			assert.Equal(t, int64(42), action.UserID)
			assert.Equal(t, int64(4242), action.ChatID)
		})
	}
}

func TestToActionText(t *testing.T) {
	action, ok := toAction(textUpdate("A C"))
	require.True(t, ok)
	assert.Equal(t, quiz.Action{
		Kind:        quiz.ActionText,
		UserID:      42,
		ChatID:      4242,
		DisplayName: "driver",
		Text:        "A C",
	}, action)
}

func TestToActionDisplayNameFallsBackToFirstName(t *testing.T) {
	update := textUpdate("1")
	update.Message.From.UserName = ""

	action, ok := toAction(update)
	require.True(t, ok)
	assert.Equal(t, "Max", action.DisplayName)
}

func TestToActionIgnoresOtherUpdates(t *testing.T) {
	_, ok := toAction(tgbotapi.Update{})
	assert.False(t, ok)

	_, ok = toAction(textUpdate("   "))
	assert.False(t, ok, "stickers and photos carry no text")

	_, ok = toAction(commandUpdate("/help"))
	assert.False(t, ok, "unknown commands never reach the quiz as answers")

	update := textUpdate("A")
	update.Message.From = nil
	_, ok = toAction(update)
	assert.False(t, ok)
}
