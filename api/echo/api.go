//nolint:varnamelen
package echo

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/feelscape/api"
	"go.pilab.hu/feelscape/domain"
	"go.pilab.hu/feelscape/errors"
)

// Controller is the part of services.AuthController the bridge drives.
type Controller interface {
	Session() *domain.Session
	UIState() domain.AuthUIState
	SaveState() domain.SaveState
	AuthReady() bool
	SignIn(email, password string, onSuccess func())
	SignUp(displayName, email, password string, onSuccess func())
	SignOut()
	RefreshAsync()
	OnSaveProfile(displayName string)
	ResetSaveState()
}

// HealthCheck reports the reachability of a dependency.
type HealthCheck func(ctx context.Context) error

// AuthAPI exposes the controller's state and operations over HTTP. Every
// operation is acknowledged with 202 and completes in the background;
// clients poll GET /v1/state.
type AuthAPI struct {
	controller Controller
	checks     map[string]HealthCheck
	metrics    http.Handler
}

// NewAuthAPI initializes the bridge. metrics may be nil.
func NewAuthAPI(controller Controller, metrics http.Handler, checks map[string]HealthCheck) *AuthAPI {
	return &AuthAPI{
		controller: controller,
		checks:     checks,
		metrics:    metrics,
	}
}

// RegisterRoutes registers the bridge routes.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	v1 := e.Group("/v1")
	v1.GET("/session", a.SessionHandler)
	v1.GET("/state", a.StateHandler)
	v1.POST("/auth/signin", a.SignInHandler)
	v1.POST("/auth/signup", a.SignUpHandler)
	v1.POST("/auth/signout", a.SignOutHandler)
	v1.POST("/session/refresh", a.RefreshHandler)
	v1.POST("/profile", a.SaveProfileHandler)
	v1.POST("/profile/reset", a.ResetSaveHandler)

	e.GET("/healthz", a.HealthHandler)
	if a.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(a.metrics))
	}
}

// SessionHandler returns the current session, null when signed out.
func (a *AuthAPI) SessionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, api.SessionResponse{Session: a.controller.Session()})
}

// StateHandler returns the form state, the save state and the auth-ready flag.
func (a *AuthAPI) StateHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, api.StateResponse{
		UI:        a.controller.UIState(),
		Save:      a.controller.SaveState(),
		AuthReady: a.controller.AuthReady(),
	})
}

func (a *AuthAPI) SignInHandler(c echo.Context) error {
	var req api.SignInRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	a.controller.SignIn(req.Email, req.Password, nil)
	return accepted(c)
}

func (a *AuthAPI) SignUpHandler(c echo.Context) error {
	var req api.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	a.controller.SignUp(req.DisplayName, req.Email, req.Password, nil)
	return accepted(c)
}

func (a *AuthAPI) SignOutHandler(c echo.Context) error {
	a.controller.SignOut()
	return accepted(c)
}

// RefreshHandler starts a session refresh owned by the controller, so a
// disconnecting client does not cancel it.
func (a *AuthAPI) RefreshHandler(c echo.Context) error {
	a.controller.RefreshAsync()
	return accepted(c)
}

func (a *AuthAPI) SaveProfileHandler(c echo.Context) error {
	var req api.SaveProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	a.controller.OnSaveProfile(req.DisplayName)
	return accepted(c)
}

func (a *AuthAPI) ResetSaveHandler(c echo.Context) error {
	a.controller.ResetSaveState()
	return accepted(c)
}

// HealthHandler runs every registered check. Any failing check turns the
// response into 503.
func (a *AuthAPI) HealthHandler(c echo.Context) error {
	resp := api.HealthResponse{Status: "ok", Checks: make(map[string]string, len(a.checks))}
	status := http.StatusOK

	for name, check := range a.checks {
		if err := check(c.Request().Context()); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	return c.JSON(status, resp)
}

func accepted(c echo.Context) error {
	return c.JSON(http.StatusAccepted, api.AcceptedResponse{Status: "accepted"})
}

func badRequest(c echo.Context, err error) error {
	log.Debug().Err(err).Str("path", c.Path()).Msg("Malformed request body")
	return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("malformed request body"))
}
