package web

import (
	"net/http"
	"time"

	"github.com/dtroode/fieldops/internal/model"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"

	refreshCookiePath = "/api/session"
	refreshCookieTTL  = 30 * 24 * time.Hour
)

func (h *Handler) setSessionCookies(w http.ResponseWriter, tokens model.AuthTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Domain:   h.opts.CookieDomain,
		Expires:  tokens.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    tokens.RefreshToken,
		Path:     refreshCookiePath,
		Domain:   h.opts.CookieDomain,
		MaxAge:   int(refreshCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for name, path := range map[string]string{accessCookie: "/", refreshCookie: refreshCookiePath} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Domain:   h.opts.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.opts.SecureCookies,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
