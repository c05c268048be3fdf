package model

import "time"

// Timeslot statuses. A slot only ever moves Available→Reserved→Booked or
// Reserved→Available; Booked is terminal except through deletion by the
// owning assistant.
const (
	TimeslotAvailable = "Available"
	TimeslotReserved  = "Reserved"
	TimeslotBooked    = "Booked"
)

// Timeslot represents a bookable assistant slot as stored in the
// `timeslots` table. A hold is a slot in Reserved status: HoldToken
// records the owning session and the reservation coordinator keeps the
// matching expiry timer. Storing the holder on the row means every
// transition out of Reserved can be made conditional on hold identity,
// not just on status.
//
// Fields:
//  ID        – primary key identifier.
//  Time      – wall-clock time of the slot, "HH:MM".
//  OwnerName – username of the assistant who created the slot.
//  Status    – Available, Reserved or Booked.
//  HoldToken – session token of the holder; empty unless Reserved.
//  BookedBy  – display name of the booker; empty unless Booked.
//  CreatedAt – when the slot was created.
type Timeslot struct {
	ID        uint64    `json:"id"`         // timeslots.id
	Time      string    `json:"time"`       // timeslots.time
	OwnerName string    `json:"owner_name"` // timeslots.owner_name
	Status    string    `json:"status"`     // timeslots.status
	HoldToken string    `json:"-"`          // timeslots.hold_token (never exposed)
	BookedBy  string    `json:"booked_by"`  // timeslots.booked_by
	CreatedAt time.Time `json:"created_at"` // timeslots.created_at
}
