package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/example/theorybot/internal/quiz"
)

const msgInternalError = "An error occurred while processing your request. Please try again."

// handleUpdate runs one action through the handler and reports failures to the user
func (b *Bot) handleUpdate(ctx context.Context, handler Handler, action quiz.Action) {
	defer b.wg.Done()

	err := handler.Handle(ctx, action)
	if err == nil {
		return
	}

	b.log.WithError(err).WithFields(logrus.Fields{
		"user_id": action.UserID,
		"action":  action.Kind.String(),
	}).Error("Error handling update")

	if sendErr := b.SendText(ctx, action.ChatID, msgInternalError); sendErr != nil {
		b.log.WithError(sendErr).WithField("user_id", action.UserID).Error("Error sending error reply")
	}
}

// toAction decodes a Telegram update. Updates without a text message from a
// user and unknown commands are ignored.
func toAction(update tgbotapi.Update) (quiz.Action, bool) {
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return quiz.Action{}, false
	}

	action := quiz.Action{
		Kind:        quiz.ActionText,
		UserID:      message.From.ID,
		ChatID:      message.Chat.ID,
		DisplayName: displayName(message.From),
		Text:        message.Text,
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			action.Kind = quiz.ActionStart
		case "stats":
			action.Kind = quiz.ActionStats
		case "resend":
			action.Kind = quiz.ActionResend
		case "skip":
			action.Kind = quiz.ActionSkip
		default:
			return quiz.Action{}, false
		}
		return action, true
	}

	if strings.TrimSpace(message.Text) == "" {
		return quiz.Action{}, false
	}
	return action, true
}

func displayName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	return user.FirstName
}
