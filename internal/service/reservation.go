package service

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/iliyamo/dj-request-booking/internal/errs"
	"github.com/iliyamo/dj-request-booking/internal/model"
)

// TimeslotStore is the subset of the timeslot repository the coordinator
// needs. The Mark* methods must be atomic conditional updates returning
// whether this call performed the transition; transitions out of Reserved
// additionally match the holding session's token. That storage-level
// compare-and-set is what guarantees at most one winner of a contested
// reservation, and that a write carrying a stale hold identity (a late
// expiry timer, a book against a lapsed hold) cannot touch a hold it does
// not own.
type TimeslotStore interface {
	Create(ctx context.Context, t *model.Timeslot) error
	GetByID(ctx context.Context, id uint64) (model.Timeslot, error)
	ListAll(ctx context.Context) ([]model.Timeslot, error)
	MarkReserved(ctx context.Context, id uint64, holdToken string) (bool, error)
	MarkBooked(ctx context.Context, id uint64, bookedBy, holdToken string) (bool, error)
	MarkAvailable(ctx context.Context, id uint64, holdToken string) (bool, error)
	Delete(ctx context.Context, id uint64, ownerName string) error
}

// TimeslotNotifier receives committed timeslot transitions for fan-out to
// every connected client. Delivery is fire-and-forget; the coordinator
// never learns or cares whether anyone was listening.
type TimeslotNotifier interface {
	TimeslotCreated(t model.Timeslot)
	TimeslotUpdated(t model.Timeslot)
	TimeslotRemoved(id uint64)
}

// ReservationService coordinates the hold→book→expire workflow. A hold is
// a Reserved row stamped with the holding session's token plus the expiry
// timer the coordinator keeps for it. The row is the single source of
// truth for hold ownership, so the policy survives a process restart and
// a timer armed for one hold can never act on its successor.
type ReservationService struct {
	store    TimeslotStore
	timers   *TimerService
	notifier TimeslotNotifier
	holdTTL  time.Duration
	log      *zap.Logger
}

// NewReservationService wires the coordinator. holdTTL is how long a
// reservation survives without being booked or released.
func NewReservationService(store TimeslotStore, timers *TimerService, notifier TimeslotNotifier, holdTTL time.Duration, log *zap.Logger) *ReservationService {
	return &ReservationService{
		store:    store,
		timers:   timers,
		notifier: notifier,
		holdTTL:  holdTTL,
		log:      log,
	}
}

// validSlotTime reports whether s is a zero-padded HH:MM between 00:00
// and 23:59.
func validSlotTime(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// validBookerName enforces the booking-name rule: at least three runes
// and no digits.
func validBookerName(name string) bool {
	runes := []rune(name)
	if len(runes) < 3 {
		return false
	}
	for _, r := range runes {
		if unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// List returns all timeslots for the public booking page.
func (s *ReservationService) List(ctx context.Context) ([]model.Timeslot, error) {
	return s.store.ListAll(ctx)
}

// Create validates the slot time and inserts an Available timeslot owned
// by the creating assistant, broadcasting the creation.
func (s *ReservationService) Create(ctx context.Context, slotTime, ownerName string) (model.Timeslot, error) {
	if !validSlotTime(slotTime) {
		return model.Timeslot{}, errs.ErrInvalidInput
	}
	t := model.Timeslot{Time: slotTime, OwnerName: ownerName}
	if err := s.store.Create(ctx, &t); err != nil {
		return model.Timeslot{}, err
	}
	s.notifier.TimeslotCreated(t)
	return t, nil
}

// Reserve places a hold on an Available timeslot for the given session.
// The Available→Reserved transition is a single conditional update; under
// N concurrent callers exactly one wins and the rest get ErrConflict with
// no state change. The winner's session token is stamped onto the row and
// an expiry timer of holdTTL is armed carrying the same token.
func (s *ReservationService) Reserve(ctx context.Context, id uint64, sessionID string) (model.Timeslot, error) {
	if sessionID == "" {
		return model.Timeslot{}, errs.ErrInvalidInput
	}
	won, err := s.store.MarkReserved(ctx, id, sessionID)
	if err != nil {
		return model.Timeslot{}, err
	}
	if !won {
		// Lost the race or the slot was never Available. Distinguish a
		// missing slot for the caller; both outcomes are non-retryable.
		if _, err := s.store.GetByID(ctx, id); errors.Is(err, sql.ErrNoRows) {
			return model.Timeslot{}, errs.ErrNotFound
		}
		return model.Timeslot{}, errs.ErrConflict
	}

	s.timers.Schedule(id, s.holdTTL, func() {
		s.expireHold(id, sessionID)
	})

	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Timeslot{}, err
	}
	s.log.Info("timeslot reserved",
		zap.Uint64("timeslot_id", id),
		zap.Duration("hold_ttl", s.holdTTL))
	s.notifier.TimeslotUpdated(t)
	return t, nil
}

// Book completes a hold. Only the session that performed the matching
// reserve may book; any other session gets ErrUnauthorized and the slot
// stays Reserved. The Reserved→Booked transition matches the hold token
// again, so a hold expiry or re-reserve racing this call cannot produce a
// double transition: exactly one of them flips the row.
func (s *ReservationService) Book(ctx context.Context, id uint64, sessionID, bookerName string) (model.Timeslot, error) {
	if !validBookerName(bookerName) {
		return model.Timeslot{}, errs.ErrInvalidInput
	}
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Timeslot{}, errs.ErrNotFound
		}
		return model.Timeslot{}, err
	}
	if t.Status != model.TimeslotReserved || t.HoldToken != sessionID {
		// Anti-theft guard: only the live hold's session may complete it.
		// Covers a different session, an expired hold and an unheld slot.
		s.log.Warn("reservation theft attempt",
			zap.Uint64("timeslot_id", id))
		return model.Timeslot{}, errs.ErrUnauthorized
	}

	won, err := s.store.MarkBooked(ctx, id, bookerName, sessionID)
	if err != nil {
		return model.Timeslot{}, err
	}
	if !won {
		// The hold expired between our check and the update.
		return model.Timeslot{}, errs.ErrConflict
	}

	s.timers.Cancel(id)

	booked, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Timeslot{}, err
	}
	s.log.Info("timeslot booked",
		zap.Uint64("timeslot_id", id),
		zap.String("booked_by", bookerName))
	s.notifier.TimeslotUpdated(booked)
	return booked, nil
}

// Unreserve releases a hold early, reverting the slot to Available.
// Release is restricted to the holding session, symmetric with Book; a
// non-holder gets ErrUnauthorized, an unheld slot ErrConflict.
func (s *ReservationService) Unreserve(ctx context.Context, id uint64, sessionID string) (model.Timeslot, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Timeslot{}, errs.ErrNotFound
		}
		return model.Timeslot{}, err
	}
	if t.Status != model.TimeslotReserved {
		return model.Timeslot{}, errs.ErrConflict
	}
	if t.HoldToken != sessionID {
		s.log.Warn("unreserve by non-holder rejected",
			zap.Uint64("timeslot_id", id))
		return model.Timeslot{}, errs.ErrUnauthorized
	}

	won, err := s.store.MarkAvailable(ctx, id, sessionID)
	if err != nil {
		return model.Timeslot{}, err
	}
	if !won {
		return model.Timeslot{}, errs.ErrConflict
	}

	s.timers.Cancel(id)

	released, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Timeslot{}, err
	}
	s.notifier.TimeslotUpdated(released)
	return released, nil
}

// expireHold is the timer callback. The conditional update carries the
// hold token the timer was armed for, so it only ever reverts that exact
// hold: fired after a book, a release, or a newer session's re-reserve,
// the token no longer matches and nothing happens.
func (s *ReservationService) expireHold(id uint64, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	won, err := s.store.MarkAvailable(ctx, id, sessionID)
	if err != nil {
		s.log.Error("hold expiry failed", zap.Uint64("timeslot_id", id), zap.Error(err))
		return
	}
	if !won {
		// The hold this timer was armed for is already gone.
		return
	}
	s.log.Info("reservation hold expired", zap.Uint64("timeslot_id", id))
	if t, err := s.store.GetByID(ctx, id); err == nil {
		s.notifier.TimeslotUpdated(t)
	}
}

// Remove deletes a timeslot. Only the owning assistant may delete; any
// pending expiry timer for the slot is cancelled and a removal event is
// broadcast by id.
func (s *ReservationService) Remove(ctx context.Context, id uint64, requester string) error {
	err := s.store.Delete(ctx, id, requester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	s.timers.Cancel(id)
	s.notifier.TimeslotRemoved(id)
	return nil
}

// HolderOf reports the session currently holding the slot, for tests and
// diagnostics.
func (s *ReservationService) HolderOf(ctx context.Context, id uint64) (string, bool) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil || t.Status != model.TimeslotReserved || t.HoldToken == "" {
		return "", false
	}
	return t.HoldToken, true
}
