package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"groupbot/core/dialog/route"
	"groupbot/core/logger"
)

// postgresStore keeps one conversation_state row per key. All writes are
// single-statement upserts, so read-modify-write is atomic per key and
// writes to different keys never block each other.
type postgresStore struct {
	db  *sqlx.DB
	ttl time.Duration
}

// NewPostgresStore builds a durable Store on the given connection.
// ttl <= 0 selects DefaultTTL; rows older than the TTL read as absent.
func NewPostgresStore(db *sqlx.DB, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &postgresStore{db: db, ttl: ttl}
}

func (s *postgresStore) cutoff() time.Time {
	return time.Now().Add(-s.ttl)
}

func (s *postgresStore) AwaitedInput(ctx context.Context, key Key) (route.Route, bool, error) {
	var token sql.NullString
	err := s.db.GetContext(ctx, &token,
		`SELECT input_route
		   FROM conversation_state
		  WHERE chat_id = $1 AND user_id = $2 AND updated_at >= $3`,
		key.ChatID, key.UserID, s.cutoff(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return route.Route{}, false, nil
	}
	if err != nil {
		return route.Route{}, false, fmt.Errorf("state: read awaited input: %w", err)
	}
	if !token.Valid || token.String == "" {
		return route.Route{}, false, nil
	}

	r, err := route.Decode(token.String)
	if err != nil {
		// A token from a previous deployment that no longer parses is
		// treated as absent, not as a failure.
		logger.Warn(ctx, "dialog.state", "state.awaited.malformed",
			slog.String("key", key.String()),
			slog.String("token", logger.SanitizeLimit(token.String, 64)),
		)
		return route.Route{}, false, nil
	}
	return r, true, nil
}

func (s *postgresStore) SetAwaitedInput(ctx context.Context, key Key, r route.Route) error {
	token, err := r.Encode()
	if err != nil {
		return fmt.Errorf("state: encode awaited input: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_state (chat_id, user_id, input_route)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (chat_id, user_id)
		 DO UPDATE SET input_route = EXCLUDED.input_route, updated_at = now()`,
		key.ChatID, key.UserID, token,
	)
	if err != nil {
		return fmt.Errorf("state: set awaited input: %w", err)
	}
	return nil
}

func (s *postgresStore) ClearAwaitedInput(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversation_state
		    SET input_route = NULL, updated_at = now()
		  WHERE chat_id = $1 AND user_id = $2`,
		key.ChatID, key.UserID,
	)
	if err != nil {
		return fmt.Errorf("state: clear awaited input: %w", err)
	}
	return nil
}

func (s *postgresStore) ContextValue(ctx context.Context, key Key, field string) (int64, bool, error) {
	var raw sql.NullString
	err := s.db.GetContext(ctx, &raw,
		`SELECT context ->> $3
		   FROM conversation_state
		  WHERE chat_id = $1 AND user_id = $2 AND updated_at >= $4`,
		key.ChatID, key.UserID, field, s.cutoff(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("state: read context %q: %w", field, err)
	}
	if !raw.Valid {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw.String, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("state: context %q is not an id: %w", field, err)
	}
	return v, true, nil
}

func (s *postgresStore) SetContextValue(ctx context.Context, key Key, field string, value int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_state (chat_id, user_id, context)
		 VALUES ($1, $2, jsonb_build_object($3::text, $4::bigint))
		 ON CONFLICT (chat_id, user_id)
		 DO UPDATE SET context = conversation_state.context || EXCLUDED.context,
		               updated_at = now()`,
		key.ChatID, key.UserID, field, value,
	)
	if err != nil {
		return fmt.Errorf("state: set context %q: %w", field, err)
	}
	return nil
}
