package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"community-chat/internal/logging"
)

// Connect opens the database and applies migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Ping checks connectivity with a short timeout.
func Ping(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS chat_groups (
            id SERIAL PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            media_mimetype TEXT,
            media_filename TEXT,
            group_type TEXT NOT NULL DEFAULT 'private' CHECK (group_type IN ('private', 'public')),
            created_by INT NOT NULL,
            updated_by INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS group_relations (
            group_id INT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            relation TEXT NOT NULL CHECK (relation IN ('member', 'admin', 'request')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (group_id, user_id, relation)
        );`,
	`CREATE INDEX IF NOT EXISTS group_relations_user_idx ON group_relations (user_id, relation);`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
            id SERIAL PRIMARY KEY,
            type TEXT NOT NULL CHECK (type IN ('text', 'media')),
            content TEXT NOT NULL DEFAULT '',
            media_mimetype TEXT,
            media_filename TEXT,
            sender_id INT NOT NULL,
            receiver_id INT,
            group_id INT REFERENCES chat_groups(id) ON DELETE CASCADE,
            report_status TEXT,
            report_reporter_id INT,
            report_note TEXT,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            updated_by INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((receiver_id IS NULL) <> (group_id IS NULL))
        );`,
	`CREATE INDEX IF NOT EXISTS chat_messages_group_idx ON chat_messages (group_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS chat_messages_direct_idx ON chat_messages (sender_id, receiver_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS user_notifications (
            id SERIAL PRIMARY KEY,
            user_id INT NOT NULL,
            type TEXT NOT NULL CHECK (type IN ('message', 'request')),
            scope TEXT NOT NULL CHECK (scope IN ('group', 'private')),
            body TEXT NOT NULL DEFAULT '',
            sender_id INT NOT NULL,
            group_id INT,
            request_status TEXT CHECK (request_status IN ('pending', 'approved', 'rejected')),
            detail_read BOOLEAN NOT NULL DEFAULT FALSE,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_by INT,
            updated_by INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS user_notifications_user_idx ON user_notifications (user_id, updated_at DESC);`,
	`CREATE INDEX IF NOT EXISTS user_notifications_request_idx ON user_notifications (group_id, sender_id) WHERE type = 'request';`,
}

func runMigrations(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	logging.Info().Int("statements", len(migrations)).Msg("database migrations applied")
	return nil
}
