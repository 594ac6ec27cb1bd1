package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groupbot/bot"
	"groupbot/bot/directory"
	"groupbot/core/logger"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("groupbot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := bot.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := logger.Init(&cfg.Config); err != nil {
		return err
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	// TODO: replace the in-memory directory with the real backend once the
	// group service exposes its API.
	dir := directory.NewMemory()
	app, err := bot.New(cfg, bot.Collaborators{
		Chats:     dir,
		Members:   dir,
		Posts:     dir,
		Moderator: dir,
	})
	if err != nil {
		return err
	}

	startedAt := time.Now()
	logger.L.With("component", "app").Info("app ready",
		slog.String("event", "ready"),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = app.Run(ctx)
	logger.L.With("component", "app").Info("shutting down...",
		slog.String("event", "shutdown"),
	)
	return err
}
