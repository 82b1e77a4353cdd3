package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/marquee/internal/catalog"
	"github.com/vadimtrunov/marquee/internal/core"
)

// sender is the part of tgbotapi.BotAPI used to reply.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the Telegram frontend. Every chat gets its own state store, so the
// last list or movie shown in one chat is independent of the others.
type Bot struct {
	client   *tgbotapi.BotAPI
	api      sender
	movies   core.MovieCatalog
	sessions *sessionManager
	factory  FetcherFactory
	logger   *slog.Logger
}

// compile-time check.
var _ core.Frontend = (*Bot)(nil)

// New creates a new Telegram Bot.
func New(token string, allowedUserIDs []int64, movies core.MovieCatalog, logger *slog.Logger) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b := newBot(client, allowedUserIDs, movies, logger)
	b.client = client
	return b, nil
}

func newBot(api sender, allowedUserIDs []int64, movies core.MovieCatalog, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		api:      api,
		movies:   movies,
		sessions: newSessionManager(allowedUserIDs),
		logger:   logger,
	}
	b.factory = func() *catalog.Fetcher {
		return catalog.NewFetcher(movies, catalog.NewStore(logger), logger)
	}
	return b
}

// Name returns the frontend name.
func (b *Bot) Name() string { return "telegram" }

// Start starts the long-polling loop. It blocks until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return fmt.Errorf("telegram bot has no API client")
	}

	b.logger.Info("telegram bot started",
		slog.String("username", b.client.Self.UserName),
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.client.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// Stop stops the bot (no-op, Start returns when ctx is canceled).
func (b *Bot) Stop(_ context.Context) error {
	return nil
}

// handleUpdate dispatches an incoming Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}
