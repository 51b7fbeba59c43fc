package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool and runs migrations.
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

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INT PRIMARY KEY,
            username TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS rooms (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            room_type TEXT NOT NULL CHECK (room_type IN ('PRIVATE', 'GROUP', 'CHANNEL')),
            created_by INT NOT NULL,
            is_private BOOLEAN NOT NULL DEFAULT FALSE,
            max_members INT CHECK (max_members IS NULL OR max_members > 0),
            current_member_count INT NOT NULL DEFAULT 0,
            last_message_at TIMESTAMPTZ,
            private_key TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CONSTRAINT rooms_private_key_key UNIQUE (private_key)
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS rooms_public_name_key ON rooms (name) WHERE room_type <> 'PRIVATE';`,
		`CREATE TABLE IF NOT EXISTS room_members (
            room_id INT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            PRIMARY KEY(room_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS room_members_user_idx ON room_members (user_id);`,
		`CREATE TABLE IF NOT EXISTS room_admins (
            room_id INT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            PRIMARY KEY(room_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            content TEXT NOT NULL,
            sender_id INT NOT NULL,
            receiver_id INT,
            room_id INT REFERENCES rooms(id) ON DELETE CASCADE,
            message_type TEXT NOT NULL DEFAULT 'TEXT',
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((receiver_id IS NULL) <> (room_id IS NULL))
        );`,
		`CREATE INDEX IF NOT EXISTS messages_direct_idx ON messages (sender_id, receiver_id, created_at DESC, id DESC) WHERE room_id IS NULL;`,
		`CREATE INDEX IF NOT EXISTS messages_room_idx ON messages (room_id, created_at DESC, id DESC) WHERE room_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (receiver_id, sender_id) WHERE is_read = FALSE;`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
