package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	auth "github.com/memoria-app/auth"
	"github.com/memoria-app/auth/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

type tokenResponse struct {
	AccessToken string         `json:"accessToken"`
	User        *auth.Identity `json:"user,omitempty"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type profilePatch struct {
	Name      *string `json:"name"`
	Nickname  *string `json:"nickname"`
	AvatarURL *string `json:"avatarUrl"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	access, refresh, err := s.engine.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := s.engine.ValidateAccess(r.Context(), access)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	identity, err := s.engine.Identity(r.Context(), res.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.setRefreshCookie(w, refresh)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, User: &identity})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	result, err := s.engine.Signup(r.Context(), auth.SignupRequest{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
		Nickname: body.Nickname,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if result.RefreshToken != "" {
		s.setRefreshCookie(w, result.RefreshToken)
	}

	identity, err := s.engine.Identity(r.Context(), result.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: result.AccessToken, User: &identity})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "missing refresh credential")
		return
	}

	access, refresh, err := s.engine.Refresh(r.Context(), cookie.Value)
	if err != nil {
		// A rejected credential is dead; leaving the cookie in place would
		// make every subsequent call fail identically. A backend outage is
		// not a rejection: the credential may still be valid, so it stays.
		if isRefreshRejection(err) {
			s.clearRefreshCookie(w)
		}
		writeEngineError(w, err)
		return
	}

	s.setRefreshCookie(w, refresh)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Logout succeeds even without a usable access token: clearing the
	// cookie is the part the browser cannot do on its own.
	if token, ok := middleware.BearerTokenFromRequest(r); ok {
		_ = s.engine.LogoutByAccessToken(r.Context(), token)
	} else if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		// Fall back to the refresh credential when the access token is gone.
		if access, _, rerr := s.engine.Refresh(r.Context(), cookie.Value); rerr == nil {
			_ = s.engine.LogoutByAccessToken(r.Context(), access)
		}
	}

	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	identity, err := s.engine.Identity(r.Context(), res.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body profilePatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	identity, err := s.engine.UpdateProfile(r.Context(), res.UserID, auth.ProfileUpdate{
		Name:      body.Name,
		Nickname:  body.Nickname,
		AvatarURL: body.AvatarURL,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	if err := s.engine.ChangePassword(r.Context(), res.UserID, body.OldPassword, body.NewPassword); err != nil {
		writeEngineError(w, err)
		return
	}

	// The lineage is gone; so is the cookie's credential.
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.engine.DeleteAccount(r.Context(), res.UserID); err != nil {
		writeEngineError(w, err)
		return
	}

	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// isRefreshRejection reports whether the refresh credential itself was
// rejected, as opposed to the backend being unable to answer.
func isRefreshRejection(err error) bool {
	return errors.Is(err, auth.ErrRefreshInvalid) ||
		errors.Is(err, auth.ErrRefreshReuse) ||
		errors.Is(err, auth.ErrUnauthorized) ||
		errors.Is(err, auth.ErrTokenInvalid)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrRefreshInvalid),
		errors.Is(err, auth.ErrRefreshReuse),
		errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrAccountExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrSignupDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrSignupInvalid),
		errors.Is(err, auth.ErrPasswordPolicy),
		errors.Is(err, auth.ErrPasswordReuse):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrLineageUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
