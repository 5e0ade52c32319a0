package httpapi

import (
	"net/http"
	"net/url"

	"github.com/MrEthical07/shopauth"
)

// setSessionCookie stores "Bearer <token>" URL-escaped, the way the guard reads it back.
func (s *Server) setSessionCookie(w http.ResponseWriter, session *shopauth.SessionResult) {
	cfg := s.engine.Cookie()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    url.PathEscape("Bearer " + session.Token),
		Path:     cfg.Path,
		MaxAge:   int(s.engine.SessionTTL().Seconds()),
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	cfg := s.engine.Cookie()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}
