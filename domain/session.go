package domain

import "time"

// Session is the in-memory snapshot of the currently authenticated user.
// A nil *Session means no authenticated user. Sessions are replaced
// wholesale, never mutated after they are published.
type Session struct {
	UserID      string     `json:"uid"`
	DisplayName string     `json:"displayName,omitempty"`
	Email       string     `json:"email,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"` // Only known once the profile document was read
}

// SessionFromIdentity builds a Session from the identity handle's cached
// fields. CreatedAt is left unset.
func SessionFromIdentity(u IdentityUser) *Session {
	if u == nil {
		return nil
	}
	return &Session{
		UserID:      u.UID(),
		DisplayName: u.DisplayName(),
		Email:       u.Email(),
	}
}

// AuthUIState backs the sign-in and sign-up forms.
type AuthUIState struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// SaveState backs the profile edit form.
// SaveDone is a one-shot signal consumed by the UI and reset on screen entry.
type SaveState struct {
	IsSaving  bool   `json:"isSaving"`
	SaveError string `json:"saveError,omitempty"`
	SaveDone  bool   `json:"saveDone"`
}
