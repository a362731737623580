package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/thrane20/dillinger/internal/config"
)

const (
	sessionCookieName = "dillinger-session"
	sessionMaxAge     = 24 * time.Hour
)

// sessions holds login tokens and their expiry.
type sessions struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func (ss *sessions) create(now time.Time) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.tokens == nil {
		ss.tokens = make(map[string]time.Time)
	}
	for t, exp := range ss.tokens {
		if now.After(exp) {
			delete(ss.tokens, t)
		}
	}
	ss.tokens[token] = now.Add(sessionMaxAge)
	return token, nil
}

func (ss *sessions) valid(token string, now time.Time) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	exp, ok := ss.tokens[token]
	if ok && now.After(exp) {
		delete(ss.tokens, token)
		return false
	}
	return ok
}

func (ss *sessions) revoke(token string) {
	ss.mu.Lock()
	delete(ss.tokens, token)
	ss.mu.Unlock()
}

// withAuth wraps a handler to require a session when password auth is on.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth.Mode != config.AuthModePassword {
			next(w, r)
			return
		}

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !s.sessions.valid(cookie.Value, time.Now()) {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}

		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Auth.PasswordHash), []byte(body.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := s.sessions.create(time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.revoke(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	valid := false
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		valid = s.sessions.valid(cookie.Value, time.Now())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": valid,
		"auth_required": s.cfg.Auth.Mode == config.AuthModePassword,
	})
}
