package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/auth"
)

const sessionTTL = 30 * 24 * time.Hour

// Session ensures every caller carries an anonymous cart session cookie and
// exposes its id through auth.SessionFrom.
func (h *Handler) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(h.sessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     h.sessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionTTL.Seconds()),
				HttpOnly: true,
				Secure:   h.secureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), id)))
	})
}
