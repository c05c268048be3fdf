package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dj-request-booking/internal/errs"
	"github.com/iliyamo/dj-request-booking/internal/model"
)

// TimeslotRepo provides data access to the timeslots table. Status
// transitions are expressed as conditional updates ("set Reserved where
// status = Available") so that concurrent callers racing on the same slot
// are serialized by the database: exactly one UPDATE reports an affected
// row and every loser sees zero. Transitions out of Reserved additionally
// match hold_token, so a write carrying a stale hold identity (a late
// expiry, a booker whose hold already lapsed) loses the same way a racing
// status change does. The boolean results below carry that affected-row
// count back to the coordinator.
type TimeslotRepo struct {
	db *sql.DB
}

// NewTimeslotRepo returns a TimeslotRepo bound to the provided database.
func NewTimeslotRepo(db *sql.DB) *TimeslotRepo { return &TimeslotRepo{db: db} }

// Create inserts a new Available timeslot and populates the generated ID
// and creation timestamp on the passed model.
func (r *TimeslotRepo) Create(ctx context.Context, t *model.Timeslot) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO timeslots (time, owner_name, status, booked_by) VALUES (?,?,?,'')",
		t.Time, t.OwnerName, model.TimeslotAvailable)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.Status = model.TimeslotAvailable
	return r.db.QueryRowContext(ctx,
		"SELECT created_at FROM timeslots WHERE id=?", t.ID).Scan(&t.CreatedAt)
}

const timeslotColumns = "id, time, owner_name, status, hold_token, booked_by, created_at"

// GetByID fetches a single timeslot. Returns sql.ErrNoRows when absent.
func (r *TimeslotRepo) GetByID(ctx context.Context, id uint64) (model.Timeslot, error) {
	var t model.Timeslot
	err := r.db.QueryRowContext(ctx,
		"SELECT "+timeslotColumns+" FROM timeslots WHERE id=? LIMIT 1",
		id).Scan(&t.ID, &t.Time, &t.OwnerName, &t.Status, &t.HoldToken, &t.BookedBy, &t.CreatedAt)
	return t, err
}

// ListAll returns every timeslot ordered by time of day then id, which is
// the order the booking page presents them in.
func (r *TimeslotRepo) ListAll(ctx context.Context) ([]model.Timeslot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+timeslotColumns+" FROM timeslots ORDER BY time, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Timeslot
	for rows.Next() {
		var t model.Timeslot
		if err := rows.Scan(&t.ID, &t.Time, &t.OwnerName, &t.Status, &t.HoldToken, &t.BookedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkReserved transitions Available→Reserved and stamps the holding
// session onto the row. Returns true when this call won the transition,
// false when the slot was not Available (already reserved, booked or
// deleted).
func (r *TimeslotRepo) MarkReserved(ctx context.Context, id uint64, holdToken string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE timeslots SET status=?, hold_token=? WHERE id=? AND status=?",
		model.TimeslotReserved, holdToken, id, model.TimeslotAvailable)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkBooked transitions Reserved→Booked and records the booker's name.
// Returns true only when the slot was still Reserved and held by
// holdToken; a hold that expired or was re-taken in between fails here.
func (r *TimeslotRepo) MarkBooked(ctx context.Context, id uint64, bookedBy, holdToken string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE timeslots SET status=?, booked_by=?, hold_token='' WHERE id=? AND status=? AND hold_token=?",
		model.TimeslotBooked, bookedBy, id, model.TimeslotReserved, holdToken)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkAvailable reverts Reserved→Available, clearing the hold and any
// booker name. The hold_token guard makes this safe to call from a late
// expiry timer: if another session has re-reserved the slot since, the
// token no longer matches and the revert is a no-op.
func (r *TimeslotRepo) MarkAvailable(ctx context.Context, id uint64, holdToken string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE timeslots SET status=?, hold_token='', booked_by='' WHERE id=? AND status=? AND hold_token=?",
		model.TimeslotAvailable, id, model.TimeslotReserved, holdToken)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Delete removes a timeslot owned by ownerName. Returns sql.ErrNoRows if
// the slot does not exist and errs.ErrUnauthorized if it belongs to
// someone else.
func (r *TimeslotRepo) Delete(ctx context.Context, id uint64, ownerName string) error {
	var owner string
	err := r.db.QueryRowContext(ctx,
		"SELECT owner_name FROM timeslots WHERE id=? LIMIT 1", id).Scan(&owner)
	if err != nil {
		return err
	}
	if owner != ownerName {
		return errs.ErrUnauthorized
	}
	_, err = r.db.ExecContext(ctx, "DELETE FROM timeslots WHERE id=?", id)
	return err
}
