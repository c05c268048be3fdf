package model

import "time"

// User roles. DJs receive song requests; assistants create and manage
// bookable timeslots.
const (
	RoleDJ        = "DJ"
	RoleAssistant = "ASSISTANT"
)

// User mirrors the `users` table. Username doubles as the public DJ name
// that audience members target with song requests. The accepting and AI
// fields come straight from the DJ settings panel: a DJ who is not
// currently accepting gets no new requests, and a DJ with AI mode on has
// submissions run through the optional classifier with their prompt.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username (unique, the public DJ name)
	PasswordHash string    // users.password_hash
	Role         string    // users.role (DJ or ASSISTANT)
	Accepting    bool      // users.currently_accepting
	AIMode       bool      // users.ai_mode
	AIPrompt     string    // users.ai_prompt
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
