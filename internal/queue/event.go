// Package queue defines message payloads exchanged over the message
// broker and the background consumer that records them.
package queue

import "time"

// TimeslotBookedEvent is published when a timeslot booking completes. It
// carries enough for downstream consumers to log or trigger follow-up
// work without querying the primary database.
type TimeslotBookedEvent struct {
	TimeslotID uint64    `json:"timeslot_id"`
	Time       string    `json:"time"`
	OwnerName  string    `json:"owner_name"`
	BookedBy   string    `json:"booked_by"`
	BookedAt   time.Time `json:"booked_at"`
}
