package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// schema holds the idempotent DDL for every table this service owns.
// Statuses are plain VARCHARs guarded by the application's conditional
// updates rather than enums, so adding a status never needs an ALTER.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(64) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL,
		currently_accepting BOOLEAN NOT NULL DEFAULT TRUE,
		ai_mode BOOLEAN NOT NULL DEFAULT FALSE,
		ai_prompt VARCHAR(2048) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_refresh_tokens_hash (token_hash),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS timeslots (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		time CHAR(5) NOT NULL,
		owner_name VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'Available',
		hold_token VARCHAR(64) NOT NULL DEFAULT '',
		booked_by VARCHAR(64) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_timeslots_owner (owner_name)
	)`,
	`CREATE TABLE IF NOT EXISTS song_requests (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		dj_username VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL DEFAULT '',
		artist VARCHAR(255) NOT NULL DEFAULT '',
		requester_token CHAR(36) NOT NULL,
		requester_name VARCHAR(64) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		genre VARCHAR(64) NOT NULL DEFAULT '',
		track_id VARCHAR(64) NOT NULL DEFAULT '',
		image_url VARCHAR(512) NOT NULL DEFAULT '',
		popularity INT UNSIGNED NOT NULL DEFAULT 0,
		ai_accepted BOOLEAN NULL,
		ai_reason TEXT NULL,
		requested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_song_requests_dj_date (dj_username, requested_at)
	)`,
}

// Migrate applies the schema, creating any missing tables. Safe to run
// on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	log.Println("migrate: schema up to date")
	return nil
}
