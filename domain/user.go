package domain

import "time"

// UsersCollection is the document collection mirroring profile fields.
const UsersCollection = "users"

// ProfileDocument is the mirrored subset of a user's profile stored in the
// document store, keyed by user id.
type ProfileDocument struct {
	UID         string     `bson:"uid" json:"uid"`
	DisplayName string     `bson:"displayName" json:"displayName"`
	Email       string     `bson:"email,omitempty" json:"email,omitempty"`
	CreatedAt   *time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"` // Client-captured on sign up
	UpdatedAt   *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"` // Server-assigned
}

// ProfileUpdate is a partial, merge-style update of a profile document.
// Fields not named here are never overwritten. The update timestamp is
// always assigned by the store.
type ProfileUpdate struct {
	DisplayName string
}
