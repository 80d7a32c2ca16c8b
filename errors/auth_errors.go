package errors

// AuthError represents a user-facing account error returned by the identity
// service or the profile store. Description is safe to show to end users.
type AuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Description
}

// Is matches any AuthError carrying the same code.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Standard error codes
const (
	InvalidCredentials = "invalid-credentials"
	EmailAlreadyInUse  = "email-already-in-use"
	WeakPassword       = "weak-password"
	InvalidEmail       = "invalid-email"
	NoSignedInUser     = "no-signed-in-user"
	AccountNotFound    = "account-not-found"
	ProfileNotFound    = "profile-not-found"
	SessionNotFound    = "session-not-found"
	SessionExpired     = "session-expired"
	InvalidRequest     = "invalid-request"
)

var (
	ErrInvalidCredentials = New(InvalidCredentials, "The email or password is incorrect.")
	ErrEmailAlreadyInUse  = New(EmailAlreadyInUse, "The email address is already in use by another account.")
	ErrWeakPassword       = New(WeakPassword, "The password must be 6 characters long or more.")
	ErrInvalidEmail       = New(InvalidEmail, "The email address is badly formatted.")
	ErrNoSignedInUser     = New(NoSignedInUser, "No signed in user")
	ErrAccountNotFound    = New(AccountNotFound, "There is no user record corresponding to this identifier.")
	ErrProfileNotFound    = New(ProfileNotFound, "profile document not found")
	ErrSessionNotFound    = New(SessionNotFound, "session not found")
	ErrSessionExpired     = New(SessionExpired, "session expired")
)

// NewInvalidRequest reports a malformed request to a caller of the HTTP bridge.
func NewInvalidRequest(description string) *AuthError {
	return New(InvalidRequest, description)
}

// New creates an AuthError with the given code and description.
func New(code, description string) *AuthError {
	return &AuthError{Code: code, Description: description}
}
