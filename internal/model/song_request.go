package model

import "time"

// Song request statuses. Transitions form a DAG:
// pending → {coming_up, rejected}, coming_up → {playing, rejected}.
// playing and rejected are terminal; a played request is removed rather
// than retained to keep the working queue small.
const (
	RequestPending  = "pending"
	RequestComingUp = "coming_up"
	RequestPlaying  = "playing"
	RequestRejected = "rejected"
)

// SongRequest mirrors the `song_requests` table. RequesterToken is the
// opaque correlation token linking the request to the submitting
// connection so the requester can be notified of status changes; it is
// never serialized into any response or broadcast.
//
// Fields:
//  ID             – primary key identifier.
//  DJUsername     – username of the target DJ.
//  Title          – requested song title (title or artist required).
//  Artist         – requested artist.
//  RequesterToken – session correlation token of the submitter.
//  RequesterName  – display name of the submitter.
//  Status         – pending, coming_up or rejected (playing rows are deleted).
//  Genre          – optional metadata passed through from the client.
//  TrackID        – optional external track identifier.
//  ImageURL       – optional artwork URL.
//  Popularity     – optional popularity score.
//  AIAccepted     – verdict of the optional classifier, nil when unclassified.
//  AIReason       – classifier's stated reason, nil when unclassified.
//  RequestedAt    – when the request was submitted.
type SongRequest struct {
	ID             uint64    `json:"id"`                    // song_requests.id
	DJUsername     string    `json:"dj_username"`           // song_requests.dj_username
	Title          string    `json:"title"`                 // song_requests.title
	Artist         string    `json:"artist"`                // song_requests.artist
	RequesterToken string    `json:"-"`                     // song_requests.requester_token (never exposed)
	RequesterName  string    `json:"requester_name"`        // song_requests.requester_name
	Status         string    `json:"status"`                // song_requests.status
	Genre          string    `json:"genre,omitempty"`       // song_requests.genre
	TrackID        string    `json:"track_id,omitempty"`    // song_requests.track_id
	ImageURL       string    `json:"image_url,omitempty"`   // song_requests.image_url
	Popularity     uint32    `json:"popularity"`            // song_requests.popularity
	AIAccepted     *bool     `json:"ai_accepted,omitempty"` // song_requests.ai_accepted
	AIReason       *string   `json:"ai_reason,omitempty"`   // song_requests.ai_reason
	RequestedAt    time.Time `json:"requested_at"`          // song_requests.requested_at
}

// Terminal reports whether no further transition is permitted from the
// request's current status.
func (r *SongRequest) Terminal() bool {
	return r.Status == RequestPlaying || r.Status == RequestRejected
}
