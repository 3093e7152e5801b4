package inkwell

import "github.com/google/uuid"

// Identity is the locally generated, persisted identity a client presents to
// the backend. The environment owning persistence (CLI config dir, browser
// storage, test fixture) supplies it at construction time; it is never
// ambient global state, so tests can pass deterministic values.
type Identity struct {
	// UserID identifies the installation/user across sessions
	UserID string `json:"user_id" yaml:"user_id"`

	// SessionID identifies one logical app run
	SessionID string `json:"session_id" yaml:"session_id"`
}

// NewIdentity mints a fresh random identity.
func NewIdentity() Identity {
	return Identity{
		UserID:    uuid.NewString(),
		SessionID: uuid.NewString(),
	}
}

// IsZero returns true if the identity carries no identifiers.
func (id Identity) IsZero() bool {
	return id.UserID == "" && id.SessionID == ""
}
