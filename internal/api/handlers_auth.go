package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/msmeflow/quoteflow/internal/identity"
	"github.com/msmeflow/quoteflow/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authStatusResponse struct {
	SignedIn bool            `json:"signedIn"`
	User     *session.User   `json:"user,omitempty"`
	Google   bool            `json:"google"`
	Refresh  *session.Status `json:"refresh,omitempty"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Email) == "" {
		return NewValidationError("email")
	}
	if req.Password == "" {
		return NewValidationError("password")
	}

	sess, err := s.deps.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return NewUnauthorizedError(identity.Message(err))
	}
	return c.JSON(http.StatusOK, authStatusResponse{
		SignedIn: true,
		User:     &sess.User,
		Google:   sess.ProviderToken != "",
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	if err := s.deps.Auth.SignOut(c.Request().Context()); err != nil {
		return NewInternalError("failed to sign out", err)
	}
	s.workspace.SetQuotation(nil, "")
	return c.NoContent(http.StatusNoContent)
}

// handleGoogleSignIn returns the URL the extension opens in a new tab.
// direct=true skips the backend and signs in against the identity service.
func (s *Server) handleGoogleSignIn(c echo.Context) error {
	url := s.deps.Auth.GoogleSignInURL()
	if c.QueryParam("direct") == "true" {
		url = s.deps.Auth.DirectGoogleSignInURL()
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleAuthStatus(c echo.Context) error {
	var resp authStatusResponse
	if s.deps.Refresher != nil {
		status := s.deps.Refresher.Status()
		resp.Refresh = &status
	}

	sess, err := s.deps.Auth.Current(c.Request().Context())
	switch {
	case errors.Is(err, session.ErrNoSession):
		return c.JSON(http.StatusOK, resp)
	case err != nil:
		return NewInternalError("failed to read session", err)
	}
	resp.SignedIn = sess.AccessToken != ""
	resp.User = &sess.User
	resp.Google = sess.ProviderToken != ""
	return c.JSON(http.StatusOK, resp)
}
