package api

import "go.pilab.hu/feelscape/domain"

// SignInRequest is the body of POST /v1/auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the body of POST /v1/auth/signup.
type SignUpRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// SaveProfileRequest is the body of POST /v1/profile.
type SaveProfileRequest struct {
	DisplayName string `json:"displayName"`
}

// StateResponse is the body of GET /v1/state.
type StateResponse struct {
	UI        domain.AuthUIState `json:"ui"`
	Save      domain.SaveState   `json:"save"`
	AuthReady bool               `json:"authReady"`
}

// SessionResponse is the body of GET /v1/session. Session is null when
// signed out.
type SessionResponse struct {
	Session *domain.Session `json:"session"`
}

// AcceptedResponse acknowledges an operation that completes in the
// background.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
