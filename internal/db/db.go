package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            user_id SERIAL PRIMARY KEY,
            username VARCHAR(50) NOT NULL UNIQUE,
            email VARCHAR(255) NOT NULL UNIQUE,
            full_name VARCHAR(100) NOT NULL DEFAULT '',
            phone VARCHAR(20) NOT NULL DEFAULT '',
            profile_pic TEXT NOT NULL DEFAULT '',
            status_message VARCHAR(255) NOT NULL DEFAULT '',
            bio TEXT NOT NULL DEFAULT '',
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            last_seen TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            chat_id SERIAL PRIMARY KEY,
            chat_type VARCHAR(10) NOT NULL CHECK (chat_type IN ('private', 'group')),
            chat_name VARCHAR(100) NOT NULL DEFAULT '',
            chat_image TEXT NOT NULL DEFAULT '',
            private_key VARCHAR(50) UNIQUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_members (
            chat_id INT NOT NULL REFERENCES chats(chat_id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            role VARCHAR(10) NOT NULL DEFAULT 'member' CHECK (role IN ('member', 'admin')),
            PRIMARY KEY (chat_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS chat_visibility (
            chat_id INT NOT NULL REFERENCES chats(chat_id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            is_visible BOOLEAN NOT NULL DEFAULT TRUE,
            is_archived BOOLEAN NOT NULL DEFAULT FALSE,
            pinned BOOLEAN NOT NULL DEFAULT FALSE,
            archived_at TIMESTAMPTZ,
            hidden_at TIMESTAMPTZ,
            PRIMARY KEY (chat_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            message_id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(chat_id) ON DELETE CASCADE,
            sender_id INT NOT NULL REFERENCES users(user_id),
            message_text TEXT NOT NULL DEFAULT '',
            message_type VARCHAR(10) NOT NULL DEFAULT 'text',
            reply_to_id INT REFERENCES messages(message_id) ON DELETE SET NULL,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created
            ON messages (chat_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS message_status (
            message_id INT NOT NULL REFERENCES messages(message_id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            status VARCHAR(10) NOT NULL DEFAULT 'sent' CHECK (status IN ('sent', 'delivered', 'read')),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS message_visibility (
            message_id INT NOT NULL REFERENCES messages(message_id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            is_visible BOOLEAN NOT NULL DEFAULT TRUE,
            hidden_at TIMESTAMPTZ,
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS attachments (
            attachment_id SERIAL PRIMARY KEY,
            message_id INT NOT NULL REFERENCES messages(message_id) ON DELETE CASCADE,
            file_url TEXT NOT NULL,
            original_filename TEXT NOT NULL DEFAULT '',
            file_type VARCHAR(100) NOT NULL DEFAULT '',
            file_size BIGINT NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS blocked_users (
            user_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            blocked_user_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_id, blocked_user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS friendships (
            user1_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            user2_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            status VARCHAR(10) NOT NULL DEFAULT 'pending',
            PRIMARY KEY (user1_id, user2_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
