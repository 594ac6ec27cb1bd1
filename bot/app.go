package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"groupbot/bot/directory"
	"groupbot/bot/handlers/administrators"
	"groupbot/bot/handlers/ban"
	"groupbot/bot/handlers/membership"
	"groupbot/bot/handlers/menu"
	"groupbot/bot/handlers/publisher"
	coreconfig "groupbot/core/config"
	"groupbot/core/database"
	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
	"groupbot/core/logger"
	"groupbot/core/telegram"
)

// Collaborators are the business-side ports the handlers act through.
type Collaborators struct {
	Chats     directory.ChatDirectory
	Members   directory.MemberDirectory
	Posts     directory.PostDirectory
	Moderator directory.Moderator
}

// App is the assembled bot: configuration, state store, handler registry,
// and the dialog dispatcher, ready to run against the transport.
type App struct {
	cfg        *Config
	db         *sqlx.DB
	store      state.Store
	registry   *dispatch.Registry
	dispatcher *dispatch.Dispatcher
}

// New assembles the application. With the postgres backend it connects and
// migrates before anything else so a broken database fails the boot.
func New(cfg *Config, collab Collaborators) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	if collab.Chats == nil || collab.Members == nil || collab.Posts == nil || collab.Moderator == nil {
		return nil, fmt.Errorf("bot: all collaborators are required")
	}

	app := &App{cfg: cfg}
	ttl := time.Duration(cfg.Dialog.StateTTLHours) * time.Hour

	switch cfg.Dialog.StateBackend {
	case coreconfig.StateBackendPostgres:
		if err := database.RunMigrations(cfg.Database); err != nil {
			return nil, err
		}
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		app.db = db
		app.store = state.NewPostgresStore(db, ttl)
	default:
		app.store = state.NewMemoryStore(ttl)
	}

	reg := dispatch.NewRegistry()
	pageSize := cfg.Dialog.PageSize
	if err := menu.Register(reg, menu.Deps{Chats: collab.Chats}); err != nil {
		return nil, err
	}
	if err := membership.Register(reg, membership.Deps{
		Chats:    collab.Chats,
		Members:  collab.Members,
		Store:    app.store,
		PageSize: pageSize,
	}); err != nil {
		return nil, err
	}
	if err := publisher.Register(reg, publisher.Deps{
		Posts:    collab.Posts,
		Store:    app.store,
		PageSize: pageSize,
	}); err != nil {
		return nil, err
	}
	if err := administrators.Register(reg, administrators.Deps{
		Members:  collab.Members,
		Store:    app.store,
		PageSize: pageSize,
	}); err != nil {
		return nil, err
	}
	if err := ban.Register(reg, ban.Deps{
		Members:   collab.Members,
		Moderator: collab.Moderator,
	}); err != nil {
		return nil, err
	}

	admin := ActiveAdministrator(collab.Members)
	reg.Guard(membership.Prefix, admin)
	reg.Guard(publisher.Prefix, admin)
	reg.Guard(ban.Handler, admin)
	reg.Guard(administrators.Prefix, ChatCreator(collab.Members))

	app.registry = reg
	app.dispatcher = dispatch.NewDispatcher(dispatch.Options{
		Store:       app.store,
		Registry:    reg,
		RootHandler: menu.HandlerIndex,
	})

	ids := reg.List()
	summary, truncated := logger.SummarizeStrings(ids, 8)
	logger.Wire.Info("handlers registered",
		slog.String("event", "wire.summary"),
		slog.Int("handlers", len(ids)),
		slog.String("ids", summary),
		slog.Bool("truncated", truncated),
		slog.String("state_backend", cfg.Dialog.StateBackend),
	)
	return app, nil
}

// Dispatcher exposes the dialog entry point, mainly for tests.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Run drives the Telegram transport until ctx is done, then releases the
// database connection.
func (a *App) Run(ctx context.Context) error {
	defer a.closeDB()

	return telegram.RunTelegram(ctx, telegram.RunOptions{
		Config: &a.cfg.Config,
		Dialog: a.dispatcher,
		Commands: map[string]route.Route{
			"/start": route.Root,
			"/menu":  route.Root,
			"/ban":   route.New(ban.Handler),
		},
	})
}

func (a *App) closeDB() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		logger.DB.Warn("db close failed",
			slog.String("event", "db.close"),
			slog.String("err", err.Error()),
		)
	}
}
