package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/example/theorybot/internal/quiz"
)

// Handler consumes the actions decoded from Telegram updates
type Handler interface {
	Handle(ctx context.Context, action quiz.Action) error
}

// Bot is the Telegram side of the quiz: it turns updates into actions and
// delivers the engine's replies
type Bot struct {
	api    *tgbotapi.BotAPI
	config *BotConfig
	log    *logrus.Entry

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// New authorizes against the Bot API with the given token
func New(token string, config *BotConfig, logger *logrus.Logger) (*Bot, error) {
	if config == nil {
		config = DefaultConfig()
	}

	log := logger.WithField("component", "bot")
	if err := tgbotapi.SetLogger(log); err != nil {
		return nil, fmt.Errorf("failed to set bot logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	api.Debug = config.Debug

	log.WithField("account", api.Self.UserName).Info("Authorized on account")

	return &Bot{
		api:    api,
		config: config,
		log:    log,
		done:   make(chan struct{}),
	}, nil
}

// Start begins long polling. Every update is handled on its own goroutine.
func (b *Bot) Start(ctx context.Context, handler Handler) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout

	updates := b.api.GetUpdatesChan(updateConfig)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.done:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				action, ok := toAction(update)
				if !ok {
					continue
				}
				b.wg.Add(1)
				go b.handleUpdate(ctx, handler, action)
			}
		}
	}()

	b.log.Info("Bot started")
}

// Stop stops polling and waits for in-flight updates to be handled
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		b.api.StopReceivingUpdates()
		close(b.done)
	})
	b.wg.Wait()
	b.log.Info("Bot stopped")
}

// SendText implements quiz.Sender
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	return b.send(tgbotapi.NewMessage(chatID, text))
}

// SendPhoto implements quiz.Sender
func (b *Bot) SendPhoto(ctx context.Context, chatID int64, photo quiz.Media, caption string) error {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: photo.Name, Bytes: photo.Data})
	msg.Caption = caption
	return b.send(msg)
}

// SendVideo implements quiz.Sender
func (b *Bot) SendVideo(ctx context.Context, chatID int64, video quiz.Media, caption string) error {
	msg := tgbotapi.NewVideo(chatID, tgbotapi.FileBytes{Name: video.Name, Bytes: video.Data})
	msg.Caption = caption
	msg.SupportsStreaming = true
	return b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if _, err := b.api.Send(c); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
