package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dj-request-booking/internal/errs"
	"github.com/iliyamo/dj-request-booking/internal/model"
)

// memTimeslotStore is an in-memory TimeslotStore with the same
// conditional-update semantics as the MySQL repository, including the
// hold-token guard on transitions out of Reserved.
type memTimeslotStore struct {
	mu    sync.Mutex
	seq   uint64
	slots map[uint64]model.Timeslot

	// gate, when set, stalls the next MarkAvailable caller until the
	// channel is closed. One-shot; lets tests hold an expiry mid-flight.
	gate chan struct{}
}

func newMemTimeslotStore() *memTimeslotStore {
	return &memTimeslotStore{slots: make(map[uint64]model.Timeslot)}
}

func (s *memTimeslotStore) Create(_ context.Context, t *model.Timeslot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t.ID = s.seq
	t.Status = model.TimeslotAvailable
	t.CreatedAt = time.Now().UTC()
	s.slots[t.ID] = *t
	return nil
}

func (s *memTimeslotStore) GetByID(_ context.Context, id uint64) (model.Timeslot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[id]
	if !ok {
		return model.Timeslot{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *memTimeslotStore) ListAll(_ context.Context) ([]model.Timeslot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Timeslot, 0, len(s.slots))
	for _, t := range s.slots {
		out = append(out, t)
	}
	return out, nil
}

func (s *memTimeslotStore) MarkReserved(_ context.Context, id uint64, holdToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[id]
	if !ok || t.Status != model.TimeslotAvailable {
		return false, nil
	}
	t.Status = model.TimeslotReserved
	t.HoldToken = holdToken
	s.slots[id] = t
	return true, nil
}

func (s *memTimeslotStore) MarkBooked(_ context.Context, id uint64, bookedBy, holdToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[id]
	if !ok || t.Status != model.TimeslotReserved || t.HoldToken != holdToken {
		return false, nil
	}
	t.Status = model.TimeslotBooked
	t.BookedBy = bookedBy
	t.HoldToken = ""
	s.slots[id] = t
	return true, nil
}

func (s *memTimeslotStore) MarkAvailable(_ context.Context, id uint64, holdToken string) (bool, error) {
	s.mu.Lock()
	g := s.gate
	s.gate = nil
	s.mu.Unlock()
	if g != nil {
		<-g
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[id]
	if !ok || t.Status != model.TimeslotReserved || t.HoldToken != holdToken {
		return false, nil
	}
	t.Status = model.TimeslotAvailable
	t.HoldToken = ""
	t.BookedBy = ""
	s.slots[id] = t
	return true, nil
}

func (s *memTimeslotStore) Delete(_ context.Context, id uint64, ownerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[id]
	if !ok {
		return sql.ErrNoRows
	}
	if t.OwnerName != ownerName {
		return errs.ErrUnauthorized
	}
	delete(s.slots, id)
	return nil
}

// recordingNotifier captures broadcast calls.
type recordingNotifier struct {
	mu      sync.Mutex
	events  []string
	removed []uint64
}

func (n *recordingNotifier) TimeslotCreated(model.Timeslot) {
	n.record("created")
}
func (n *recordingNotifier) TimeslotUpdated(model.Timeslot) {
	n.record("updated")
}
func (n *recordingNotifier) TimeslotRemoved(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, "removed")
	n.removed = append(n.removed, id)
}
func (n *recordingNotifier) record(ev string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}
func (n *recordingNotifier) count(ev string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == ev {
			c++
		}
	}
	return c
}

func newTestReservation(t *testing.T, holdTTL time.Duration) (*ReservationService, *memTimeslotStore, *recordingNotifier) {
	t.Helper()
	store := newMemTimeslotStore()
	timers := NewTimerService()
	t.Cleanup(timers.Stop)
	notifier := &recordingNotifier{}
	svc := NewReservationService(store, timers, notifier, holdTTL, zap.NewNop())
	return svc, store, notifier
}

func mustCreateSlot(t *testing.T, svc *ReservationService, slotTime, owner string) model.Timeslot {
	t.Helper()
	slot, err := svc.Create(context.Background(), slotTime, owner)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return slot
}

func TestCreateValidatesSlotTime(t *testing.T) {
	svc, _, _ := newTestReservation(t, time.Minute)

	for _, bad := range []string{"", "9:00", "24:00", "12:60", "ab:cd", "12:345"} {
		if _, err := svc.Create(context.Background(), bad, "ava"); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("Create(%q) err = %v, want ErrInvalidInput", bad, err)
		}
	}

	slot := mustCreateSlot(t, svc, "23:59", "ava")
	if slot.Status != model.TimeslotAvailable {
		t.Fatalf("new slot status = %q, want Available", slot.Status)
	}
}

func TestReserveSingleWinner(t *testing.T) {
	svc, store, _ := newTestReservation(t, time.Minute)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	const callers = 32
	var wg sync.WaitGroup
	var wins, conflicts int
	var winsMu sync.Mutex
	winners := map[string]bool{}

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), slot.ID, session)
			switch {
			case err == nil:
				winsMu.Lock()
				wins++
				winners[session] = true
				winsMu.Unlock()
			case errors.Is(err, errs.ErrConflict):
				winsMu.Lock()
				conflicts++
				winsMu.Unlock()
			default:
				t.Errorf("unexpected reserve error: %v", err)
			}
		}(fmt.Sprintf("session-%d", i))
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1 (conflicts = %d)", wins, conflicts)
	}
	got, _ := store.GetByID(context.Background(), slot.ID)
	if got.Status != model.TimeslotReserved {
		t.Fatalf("slot status = %q, want Reserved", got.Status)
	}
	holder, held := svc.HolderOf(context.Background(), slot.ID)
	if !held {
		t.Fatal("no hold recorded for winning reserve")
	}
	if !winners[holder] {
		t.Fatalf("recorded holder %q is not the winning session", holder)
	}
}

func TestReserveMissingSlot(t *testing.T) {
	svc, _, _ := newTestReservation(t, time.Minute)
	if _, err := svc.Reserve(context.Background(), 99, "s1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBookRequiresHoldingSession(t *testing.T) {
	svc, store, _ := newTestReservation(t, time.Minute)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	if _, err := svc.Reserve(context.Background(), slot.ID, "holder"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.Book(context.Background(), slot.ID, "thief", "Mallory"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("book by non-holder err = %v, want ErrUnauthorized", err)
	}
	got, _ := store.GetByID(context.Background(), slot.ID)
	if got.Status != model.TimeslotReserved {
		t.Fatalf("slot status = %q after rejected book, want Reserved", got.Status)
	}
	if _, held := svc.HolderOf(context.Background(), slot.ID); !held {
		t.Fatal("hold was dropped by a rejected book")
	}
}

func TestBookValidatesName(t *testing.T) {
	svc, _, _ := newTestReservation(t, time.Minute)
	slot := mustCreateSlot(t, svc, "21:00", "ava")
	if _, err := svc.Reserve(context.Background(), slot.ID, "s1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	for _, bad := range []string{"", "Al", "Bob3", "99x"} {
		if _, err := svc.Book(context.Background(), slot.ID, "s1", bad); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("Book name %q err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestBookHappyPath(t *testing.T) {
	svc, store, notifier := newTestReservation(t, time.Minute)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	if _, err := svc.Reserve(context.Background(), slot.ID, "s1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	booked, err := svc.Book(context.Background(), slot.ID, "s1", "Charlie")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.Status != model.TimeslotBooked || booked.BookedBy != "Charlie" {
		t.Fatalf("booked slot = %+v", booked)
	}
	got, _ := store.GetByID(context.Background(), slot.ID)
	if got.Status != model.TimeslotBooked {
		t.Fatalf("stored status = %q, want Booked", got.Status)
	}
	if got.HoldToken != "" {
		t.Fatalf("hold token %q survived a completed book", got.HoldToken)
	}
	if _, held := svc.HolderOf(context.Background(), slot.ID); held {
		t.Fatal("hold survived a completed book")
	}
	// created + reserve update + book update
	if notifier.count("updated") != 2 {
		t.Fatalf("updated broadcasts = %d, want 2", notifier.count("updated"))
	}
}

func TestHoldExpiryRevertsSlot(t *testing.T) {
	svc, store, _ := newTestReservation(t, 30*time.Millisecond)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	if _, err := svc.Reserve(context.Background(), slot.ID, "s1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		got, _ := store.GetByID(context.Background(), slot.ID)
		return got.Status == model.TimeslotAvailable
	})
	if _, held := svc.HolderOf(context.Background(), slot.ID); held {
		t.Fatal("hold survived expiry")
	}
	// The expired hold no longer authorizes a booking.
	if _, err := svc.Book(context.Background(), slot.ID, "s1", "Charlie"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("book after expiry err = %v, want ErrUnauthorized", err)
	}
}

func TestBookCancelsExpiry(t *testing.T) {
	svc, store, _ := newTestReservation(t, 40*time.Millisecond)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	if _, err := svc.Reserve(context.Background(), slot.ID, "s1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.Book(context.Background(), slot.ID, "s1", "Charlie"); err != nil {
		t.Fatalf("book: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	got, _ := store.GetByID(context.Background(), slot.ID)
	if got.Status != model.TimeslotBooked {
		t.Fatalf("status = %q after hold TTL passed, want Booked to stick", got.Status)
	}
}

func TestStaleExpiryCannotRevertNewHold(t *testing.T) {
	svc, store, _ := newTestReservation(t, 20*time.Millisecond)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	// Stall the expiry write: the first hold's timer fires, enters the
	// store, and blocks before its revert applies.
	gate := make(chan struct{})
	store.gate = gate

	if _, err := svc.Reserve(context.Background(), slot.ID, "sessA"); err != nil {
		t.Fatalf("reserve A: %v", err)
	}
	time.Sleep(60 * time.Millisecond) // sessA's timer has fired and holds the gate

	// Meanwhile sessA releases and sessC takes a fresh hold.
	if _, err := svc.Unreserve(context.Background(), slot.ID, "sessA"); err != nil {
		t.Fatalf("unreserve A: %v", err)
	}
	if _, err := svc.Reserve(context.Background(), slot.ID, "sessC"); err != nil {
		t.Fatalf("reserve C: %v", err)
	}
	// Disarm sessC's own short test TTL; only the stale write is under test.
	svc.timers.Cancel(slot.ID)

	// Release the stale sessA expiry write.
	close(gate)
	time.Sleep(50 * time.Millisecond)

	got, _ := store.GetByID(context.Background(), slot.ID)
	if got.Status != model.TimeslotReserved {
		t.Fatalf("stale expiry destroyed the fresh hold: status = %q, want Reserved", got.Status)
	}
	holder, held := svc.HolderOf(context.Background(), slot.ID)
	if !held || holder != "sessC" {
		t.Fatalf("holder = %q/%v, want sessC", holder, held)
	}
}

func TestExpiryOnlyRevertsItsOwnHold(t *testing.T) {
	svc, store, _ := newTestReservation(t, time.Minute)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	if _, err := svc.Reserve(context.Background(), slot.ID, "sessA"); err != nil {
		t.Fatalf("reserve A: %v", err)
	}
	if _, err := svc.Unreserve(context.Background(), slot.ID, "sessA"); err != nil {
		t.Fatalf("unreserve A: %v", err)
	}
	if _, err := svc.Reserve(context.Background(), slot.ID, "sessC"); err != nil {
		t.Fatalf("reserve C: %v", err)
	}

	// Invoke the expiry path for the long-gone first hold directly,
	// standing in for a timer that fired late.
	svc.expireHold(slot.ID, "sessA")

	got, _ := store.GetByID(context.Background(), slot.ID)
	if got.Status != model.TimeslotReserved || got.HoldToken != "sessC" {
		t.Fatalf("slot = %q/%q after stale expiry, want Reserved/sessC", got.Status, got.HoldToken)
	}

	// The matching token does revert.
	svc.expireHold(slot.ID, "sessC")
	got, _ = store.GetByID(context.Background(), slot.ID)
	if got.Status != model.TimeslotAvailable {
		t.Fatalf("status = %q after own expiry, want Available", got.Status)
	}
}

func TestUnreserveRestrictedToHolder(t *testing.T) {
	svc, _, _ := newTestReservation(t, time.Minute)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	if _, err := svc.Reserve(context.Background(), slot.ID, "s1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.Unreserve(context.Background(), slot.ID, "s2"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("unreserve by non-holder err = %v, want ErrUnauthorized", err)
	}

	released, err := svc.Unreserve(context.Background(), slot.ID, "s1")
	if err != nil {
		t.Fatalf("unreserve by holder: %v", err)
	}
	if released.Status != model.TimeslotAvailable {
		t.Fatalf("released status = %q, want Available", released.Status)
	}
	// Releasing an unheld slot is a conflict, not a repeatable success.
	if _, err := svc.Unreserve(context.Background(), slot.ID, "s1"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("unreserve of available slot err = %v, want ErrConflict", err)
	}
	// Slot can be held again by anyone.
	if _, err := svc.Reserve(context.Background(), slot.ID, "s2"); err != nil {
		t.Fatalf("re-reserve after release: %v", err)
	}
}

func TestHolderPolicySurvivesRestart(t *testing.T) {
	svc, store, _ := newTestReservation(t, time.Minute)
	slot := mustCreateSlot(t, svc, "21:00", "ava")
	if _, err := svc.Reserve(context.Background(), slot.ID, "sessA"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// A fresh coordinator over the same storage, as after a restart: no
	// timers, no in-process state.
	timers2 := NewTimerService()
	t.Cleanup(timers2.Stop)
	svc2 := NewReservationService(store, timers2, &recordingNotifier{}, time.Minute, zap.NewNop())

	if _, err := svc2.Unreserve(context.Background(), slot.ID, "stranger"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("stranger unreserve after restart err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc2.Book(context.Background(), slot.ID, "stranger", "Mallory"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("stranger book after restart err = %v, want ErrUnauthorized", err)
	}
	// The original holder still can.
	if _, err := svc2.Unreserve(context.Background(), slot.ID, "sessA"); err != nil {
		t.Fatalf("holder unreserve after restart: %v", err)
	}
}

func TestRemoveOwnerOnly(t *testing.T) {
	svc, _, notifier := newTestReservation(t, time.Minute)
	slot := mustCreateSlot(t, svc, "21:00", "ava")

	if err := svc.Remove(context.Background(), slot.ID, "mallory"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("remove by non-owner err = %v, want ErrUnauthorized", err)
	}
	if err := svc.Remove(context.Background(), slot.ID, "ava"); err != nil {
		t.Fatalf("remove by owner: %v", err)
	}
	if err := svc.Remove(context.Background(), slot.ID, "ava"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second remove err = %v, want ErrNotFound", err)
	}
	if notifier.count("removed") != 1 {
		t.Fatalf("removed broadcasts = %d, want 1", notifier.count("removed"))
	}
}
