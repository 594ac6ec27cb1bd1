package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"groupbot/core/logger"
	tghelpers "groupbot/core/telegram/helpers"
)

// LoggerMiddleware builds the request context (rid, update metadata) and
// emits one receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}

		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		tghelpers.StoreContext(c, ctx)

		attrs := []slog.Attr{
			slog.String("rid", rid),
			slog.Int("update_id", upd.ID),
		}
		if chatID != 0 {
			attrs = append(attrs, slog.Int64("chat_id", chatID))
		}
		if userID != 0 {
			attrs = append(attrs, slog.Int64("user_id", userID))
		}
		switch {
		case upd.Callback != nil:
			attrs = append(attrs, slog.String("kind", "callback"),
				slog.String("token", logger.SanitizeLimit(upd.Callback.Data, 128)))
		case upd.Message != nil:
			attrs = append(attrs, slog.String("kind", "message"),
				slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
		}
		logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)

		return next(c)
	}
}
