// Package telegram runs the bot transport: it builds the telebot instance,
// installs global middlewares, and bridges updates into the dialog layer.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "groupbot/core/config"
	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/route"
	"groupbot/core/logger"
	"groupbot/core/telegram/middleware"
	"groupbot/core/telegram/sender"
)

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config *coreconfig.Config
	Dialog *dispatch.Dispatcher

	// Commands maps slash commands to the dialog routes they open.
	Commands map[string]route.Route

	SenderOptions sender.Options
	Middlewares   []tele.MiddlewareFunc

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes transport components to lifecycle hooks.
type Runtime struct {
	Bot     *tele.Bot
	Adapter *Adapter
	Sender  *sender.Sender
}

// RunTelegram composes and runs the bot until the context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Dialog == nil {
		return fmt.Errorf("telegram: nil dialog dispatcher provided")
	}
	cfg := opts.Config

	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	out := sender.New(opts.SenderOptions)
	adapter := NewAdapter(opts.Dialog, out)
	for command, r := range opts.Commands {
		if bindErr := adapter.Bind(command, r); bindErr != nil {
			out.Close()
			return fmt.Errorf("telegram: bind %s: %w", command, bindErr)
		}
	}
	rt := Runtime{Bot: bot, Adapter: adapter, Sender: out}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.TG.Info("webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	default:
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", "polling"),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
		if !opts.DisableWebhookCleanup {
			if err := deleteWebhook(cfg.Telegram.Token); err != nil {
				logger.TG.Warn("failed to delete webhook",
					slog.String("event", "delete_webhook"),
					slog.String("err", err.Error()),
				)
			}
		}
	}

	bot.Use(middleware.RecoverMiddleware)
	bot.Use(middleware.LoggerMiddleware)
	if cfg.RateLimit.IntervalMS > 0 {
		exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, kind := range cfg.RateLimit.ExcludeUpdates {
			exclude[kind] = struct{}{}
		}
		bot.Use(middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
			Exclude:  exclude,
		}))
	}
	for _, mw := range opts.Middlewares {
		if mw != nil {
			bot.Use(mw)
		}
	}

	bot.Handle(tele.OnCallback, adapter.OnCallback)
	bot.Handle(tele.OnText, adapter.OnText)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			out.Close()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(ctx, rt)
	}
	out.Close()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// deleteWebhook clears a leftover webhook registration so long polling can
// receive updates.
func deleteWebhook(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("drop_pending_updates=false"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
