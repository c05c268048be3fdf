package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/dj-request-booking/internal/model"
	"github.com/iliyamo/dj-request-booking/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrUsernameExists = errors.New("username already exists")

const userColumns = "id, username, password_hash, role, currently_accepting, ai_mode, ai_prompt, created_at, updated_at"

func (r *UserRepo) scanOne(ctx context.Context, query string, args ...any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Role,
		&u.Accepting, &u.AIMode, &u.AIPrompt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a user and returns its ID. Usernames are stored
// lower-case so DJ names in song requests match case-insensitively.
func (r *UserRepo) Create(ctx context.Context, username, password, role string, cost int) (uint64, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role) VALUES (?,?,?)",
		username, hash, role)
	if err != nil {
		// 1062 is the MySQL duplicate-key error.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// SetAccepting updates the DJ's currently_accepting flag.
func (r *UserRepo) SetAccepting(ctx context.Context, username string, accepting bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET currently_accepting=? WHERE username=?", accepting, username)
	return err
}

// SetAIMode updates the DJ's ai_mode flag.
func (r *UserRepo) SetAIMode(ctx context.Context, username string, aiMode bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET ai_mode=? WHERE username=?", aiMode, username)
	return err
}

// SetAIPrompt updates the DJ's classifier prompt.
func (r *UserRepo) SetAIPrompt(ctx context.Context, username, prompt string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET ai_prompt=? WHERE username=?", prompt, username)
	return err
}
