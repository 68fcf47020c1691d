package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"subgate-bot/internal/channels"
	"subgate-bot/internal/config"
	"subgate-bot/internal/gate"
	"subgate-bot/internal/limiter"
	"subgate-bot/internal/membership"
	"subgate-bot/internal/metrics"
	"subgate-bot/internal/users"
)

// Bot represents the Telegram bot
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	admins  *users.AdminSource
	cfg     config.TelegramConfig
	logger  *slog.Logger

	// Track active message processing
	activeRequests sync.WaitGroup
}

// NewBot creates the bot and wires the subscription gate in front of its handlers
func NewBot(
	cfg config.TelegramConfig,
	gateCfg config.GateConfig,
	channelStore channels.Store,
	userStore users.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Bot, error) {
	api, err := newAPI(cfg, tgbotapi.APIEndpoint)
	if err != nil {
		return nil, err
	}

	probe := membership.NewProbe(api, logger, m)
	resolver := gate.NewResolver(channelStore, probe, gateCfg.ProbeTimeout, gateCfg.MaxConcurrentProbes, logger)
	admins := users.NewAdminSource(cfg.AdminIDs, userStore, gateCfg.AdminCacheTTL)
	messenger := NewMessenger(api)
	tracker := gate.NewPromptTracker()

	middleware := gate.NewMiddleware(admins, resolver, messenger, tracker, gateCfg.BypassCommands, logger, m)

	// One recheck per user at a time
	inflight := limiter.NewUserLimiter()
	newRecheck := func(welcome gate.Welcome) *gate.Recheck {
		return gate.NewRecheck(resolver, messenger, tracker, inflight, welcome, logger, m)
	}

	handler := NewHandler(api, userStore, middleware, newRecheck, logger)

	return &Bot{
		api:     api,
		handler: handler,
		admins:  admins,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// newAPI builds the Bot API client on an http.Client with a deadline, so a
// stalled Telegram releases membership probes that were abandoned by their
// context instead of holding their goroutines and connections.
func newAPI(cfg config.TelegramConfig, endpoint string) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// Run starts the bot and blocks until context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	if err := setCommands(b.api); err != nil {
		b.logger.Warn("failed to register bot commands", "error", err)
	}
	if b.cfg.NotifyAdmins {
		notifyAdmins(ctx, b.api, b.admins, startedText, b.logger)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollingTimeout

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping bot, waiting for active requests")

			// Stop receiving updates
			b.api.StopReceivingUpdates()

			// Wait for active requests with timeout
			done := make(chan struct{})
			go func() {
				b.activeRequests.Wait()
				close(done)
			}()

			select {
			case <-done:
				b.logger.Info("all active requests completed")
			case <-time.After(25 * time.Second):
				b.logger.Warn("some requests may not have completed")
			}

			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return nil
			}

			// Users are gated independently, so each update gets its own goroutine
			b.activeRequests.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.activeRequests.Done()

				reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
				defer cancel()

				b.handler.HandleUpdate(reqCtx, upd)
			}(update)
		}
	}
}
