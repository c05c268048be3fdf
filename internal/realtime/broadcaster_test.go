package realtime

import (
	"testing"

	"go.uber.org/zap"

	"github.com/iliyamo/dj-request-booking/internal/model"
)

func TestTimeslotEventsReachEveryConnection(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, zap.NewNop())

	dj := newFakeConn()
	audience := newFakeConn()
	reg.Register("djnova", dj)
	reg.Register("session-1", audience)

	b.TimeslotCreated(model.Timeslot{ID: 1, Time: "21:00"})
	b.TimeslotUpdated(model.Timeslot{ID: 1, Time: "21:00", Status: model.TimeslotReserved})
	b.TimeslotRemoved(1)

	want := []string{EventTimeslotCreated, EventTimeslotUpdated, EventTimeslotRemoved}
	for _, conn := range []*fakeConn{dj, audience} {
		got := conn.sent()
		if len(got) != len(want) {
			t.Fatalf("events = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("events = %v, want %v (order must match commit order)", got, want)
			}
		}
	}
}

func TestRequestCreatedTargetsOwningDJ(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, zap.NewNop())

	owner := newFakeConn()
	ownerPhone := newFakeConn()
	otherDJ := newFakeConn()
	audience := newFakeConn()
	reg.Register("djnova", owner)
	reg.Register("djnova", ownerPhone)
	reg.Register("djother", otherDJ)
	reg.Register("session-1", audience)

	b.RequestCreated("djnova", model.SongRequest{ID: 5, DJUsername: "djnova"})

	for _, conn := range []*fakeConn{owner, ownerPhone} {
		if got := conn.sent(); len(got) != 1 || got[0] != EventRequestCreated {
			t.Fatalf("owner events = %v, want one %s", got, EventRequestCreated)
		}
	}
	if got := otherDJ.sent(); len(got) != 0 {
		t.Fatalf("other DJ saw foreign request: %v", got)
	}
	if got := audience.sent(); len(got) != 0 {
		t.Fatalf("audience saw request.created: %v", got)
	}
}

func TestRequestStatusTargetsRequesterToken(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, zap.NewNop())

	requester := newFakeConn()
	bystander := newFakeConn()
	reg.Register("tok-req", requester)
	reg.Register("tok-other", bystander)

	b.RequestStatus("tok-req", model.RequestComingUp, model.SongRequest{ID: 5})
	b.RequestStatus("tok-req", model.RequestPlaying, model.SongRequest{ID: 5})

	got := requester.sent()
	if len(got) != 2 || got[0] != "request.coming_up" || got[1] != "request.playing" {
		t.Fatalf("requester events = %v", got)
	}
	if got := bystander.sent(); len(got) != 0 {
		t.Fatalf("bystander saw targeted events: %v", got)
	}

	// No live connection: event is silently dropped.
	b.RequestStatus("tok-gone", model.RequestRejected, model.SongRequest{ID: 6})
}

func TestBroadcastSurvivesDroppingConnection(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, zap.NewNop())

	healthy := newFakeConn()
	stuck := newFakeConn()
	stuck.ok = false
	reg.Register("a", healthy)
	reg.Register("b", stuck)

	b.TimeslotCreated(model.Timeslot{ID: 1})

	if got := healthy.sent(); len(got) != 1 {
		t.Fatalf("healthy connection events = %v", got)
	}
}
