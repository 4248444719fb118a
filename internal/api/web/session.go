package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/fieldops/internal/model"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	UserID      uuid.UUID `json:"userId"`
	Email       string    `json:"email"`
	AccessToken string    `json:"accessToken,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	tokens, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("Web handler: sign in failed",
			"email", req.Email,
			"error", err.Error())
		h.writeAuthError(w, err)
		return
	}

	h.setSessionCookies(w, tokens)
	writeJSON(w, http.StatusOK, sessionFromTokens(tokens))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "refresh token is required")
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.logger.Info("Web handler: token refresh failed",
			"error", err.Error())
		if !errors.Is(err, model.ErrUnavailable) {
			h.clearSessionCookies(w)
		}
		h.writeAuthError(w, err)
		return
	}

	h.setSessionCookies(w, tokens)
	writeJSON(w, http.StatusOK, sessionFromTokens(tokens))
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if token := refreshTokenFrom(r); token != "" {
		if err := h.auth.SignOut(r.Context(), token); err != nil {
			h.logger.Error("Web handler: sign out failed",
				"error", err.Error())
			if errors.Is(err, model.ErrUnavailable) {
				h.writeAuthError(w, err)
				return
			}
		}
	}

	if token := accessTokenFrom(r.Context()); token != "" {
		if n := h.sessions.revoke(token); n > 0 {
			h.logger.Info("Web handler: ended task feeds of signed out session",
				"feeds", n)
		}
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) whoami(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt,
	})
}

// refreshTokenFrom prefers the refresh cookie and falls back to a JSON body.
func refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if r.Body == nil {
		return ""
	}
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func sessionFromTokens(tokens model.AuthTokens) sessionResponse {
	return sessionResponse{
		UserID:      tokens.UserID,
		Email:       tokens.Email,
		AccessToken: tokens.AccessToken,
		ExpiresAt:   tokens.AccessExpiresAt,
	}
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	authErr := model.NewAuthError(err)
	code := http.StatusInternalServerError
	switch {
	case authErr.Reason == model.AuthReasonInvalidCredentials:
		code = http.StatusUnauthorized
	case authErr.Reason == model.AuthReasonSessionExpired,
		errors.Is(err, model.ErrTokenRevoked),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrTokenMismatch):
		code = http.StatusUnauthorized
		authErr.Reason = model.AuthReasonSessionExpired
	case authErr.Reason == model.AuthReasonNetwork:
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"error":  http.StatusText(code),
		"reason": string(authErr.Reason),
	})
}
