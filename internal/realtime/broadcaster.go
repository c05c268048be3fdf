package realtime

import (
	"go.uber.org/zap"

	"github.com/iliyamo/dj-request-booking/internal/model"
)

// Event types pushed to clients. Timeslot events are shared state and go
// to every connection; request events are scoped to one identity.
const (
	EventTimeslotCreated = "timeslot.created"
	EventTimeslotUpdated = "timeslot.updated"
	EventTimeslotRemoved = "timeslot.removed"
	EventRequestCreated  = "request.created"
)

// Broadcaster fans committed domain transitions out over the registry.
// For a single entity, events are emitted in the order the transitions
// committed and pushed onto per-connection FIFO buffers, so no client
// observes a reordering. Delivery is fire-and-forget throughout.
type Broadcaster struct {
	reg *Registry
	log *zap.Logger
}

// NewBroadcaster wires a broadcaster over the registry.
func NewBroadcaster(reg *Registry, log *zap.Logger) *Broadcaster {
	return &Broadcaster{reg: reg, log: log}
}

// TimeslotCreated broadcasts a new timeslot to all connections.
func (b *Broadcaster) TimeslotCreated(t model.Timeslot) {
	b.broadcastAll(EventTimeslotCreated, t)
}

// TimeslotUpdated broadcasts an updated timeslot to all connections.
func (b *Broadcaster) TimeslotUpdated(t model.Timeslot) {
	b.broadcastAll(EventTimeslotUpdated, t)
}

// TimeslotRemoved broadcasts a removal by id to all connections.
func (b *Broadcaster) TimeslotRemoved(id uint64) {
	b.broadcastAll(EventTimeslotRemoved, map[string]uint64{"id": id})
}

// RequestCreated delivers a new song request to the owning DJ's
// connections only, never globally: other DJs must not see this queue.
func (b *Broadcaster) RequestCreated(djUsername string, r model.SongRequest) {
	conns := b.reg.ConnectionsFor(djUsername)
	if len(conns) == 0 {
		b.log.Debug("request created with no DJ connection",
			zap.String("dj", djUsername), zap.Uint64("request_id", r.ID))
		return
	}
	for _, c := range conns {
		c.Send(EventRequestCreated, r)
	}
}

// RequestStatus delivers a status event (coming_up, playing, rejected) to
// the original requester's connections, addressed by correlation token.
// A requester with no live connection simply misses the event.
func (b *Broadcaster) RequestStatus(requesterToken, status string, r model.SongRequest) {
	for _, c := range b.reg.ConnectionsFor(requesterToken) {
		c.Send("request."+status, r)
	}
}

func (b *Broadcaster) broadcastAll(event string, payload any) {
	dropped := 0
	for _, c := range b.reg.All() {
		if !c.Send(event, payload) {
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Warn("broadcast dropped for slow connections",
			zap.String("event", event), zap.Int("dropped", dropped))
	}
}
