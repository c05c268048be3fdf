package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/dj-request-booking/internal/model"
)

// SongRequestRepo provides data access to the song_requests table. Like
// the timeslot repo, status transitions are conditional updates so the
// DAG (pending → coming_up/rejected, coming_up → playing/rejected) is
// enforced at the storage layer even under concurrent DJ actions.
type SongRequestRepo struct {
	db *sql.DB
}

// NewSongRequestRepo returns a SongRequestRepo bound to the given database.
func NewSongRequestRepo(db *sql.DB) *SongRequestRepo { return &SongRequestRepo{db: db} }

const songRequestColumns = "id, dj_username, title, artist, requester_token, requester_name, status, genre, track_id, image_url, popularity, ai_accepted, ai_reason, requested_at"

func scanSongRequest(row interface{ Scan(...any) error }) (model.SongRequest, error) {
	var (
		sr         model.SongRequest
		aiAccepted sql.NullBool
		aiReason   sql.NullString
	)
	err := row.Scan(&sr.ID, &sr.DJUsername, &sr.Title, &sr.Artist, &sr.RequesterToken,
		&sr.RequesterName, &sr.Status, &sr.Genre, &sr.TrackID, &sr.ImageURL,
		&sr.Popularity, &aiAccepted, &aiReason, &sr.RequestedAt)
	if err != nil {
		return sr, err
	}
	if aiAccepted.Valid {
		v := aiAccepted.Bool
		sr.AIAccepted = &v
	}
	if aiReason.Valid {
		s := aiReason.String
		sr.AIReason = &s
	}
	return sr, nil
}

// Create inserts a new song request and populates the generated ID and
// request timestamp on the passed model.
func (r *SongRequestRepo) Create(ctx context.Context, sr *model.SongRequest) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO song_requests
		 (dj_username, title, artist, requester_token, requester_name, status, genre, track_id, image_url, popularity, ai_accepted, ai_reason)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		sr.DJUsername, sr.Title, sr.Artist, sr.RequesterToken, sr.RequesterName,
		sr.Status, sr.Genre, sr.TrackID, sr.ImageURL, sr.Popularity, sr.AIAccepted, sr.AIReason)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sr.ID = uint64(id)
	return r.db.QueryRowContext(ctx,
		"SELECT requested_at FROM song_requests WHERE id=?", sr.ID).Scan(&sr.RequestedAt)
}

// GetByID fetches a single request. Returns sql.ErrNoRows when absent.
func (r *SongRequestRepo) GetByID(ctx context.Context, id uint64) (model.SongRequest, error) {
	return scanSongRequest(r.db.QueryRowContext(ctx,
		"SELECT "+songRequestColumns+" FROM song_requests WHERE id=? LIMIT 1", id))
}

// UpdateStatus transitions a request from one of the expected statuses to
// the target status. Returns true when this call performed the
// transition, false when the row was missing or in a different state.
func (r *SongRequestRepo) UpdateStatus(ctx context.Context, id uint64, from []string, to string) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	query := "UPDATE song_requests SET status=? WHERE id=? AND status IN (?"
	args := []any{to, id, from[0]}
	for _, s := range from[1:] {
		query += ",?"
		args = append(args, s)
	}
	query += ")"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteIfStatus removes the row only while it is in the expected status.
// Used for the playing transition, which consumes the record instead of
// retaining a terminal row.
func (r *SongRequestRepo) DeleteIfStatus(ctx context.Context, id uint64, expected string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM song_requests WHERE id=? AND status=?", id, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListForDJ returns the DJ's requests submitted within the recency
// window. Ordering between rows is applied by the service layer; the
// query only bounds the result set.
func (r *SongRequestRepo) ListForDJ(ctx context.Context, djUsername string, window time.Duration) ([]model.SongRequest, error) {
	since := time.Now().UTC().Add(-window)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+songRequestColumns+" FROM song_requests WHERE dj_username=? AND requested_at >= ?",
		djUsername, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SongRequest
	for rows.Next() {
		sr, err := scanSongRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}
