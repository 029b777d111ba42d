// Package middleware содержит HTTP middleware BFF-сервиса E-mind.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mmeshcher/emind-bff/internal/session"
)

const (
	sessionCookieName = "emind_session"
	userHeader        = "X-User"
)

// SessionLoader загружает сессию по идентификатору из cookie.
type SessionLoader interface {
	Load(ctx context.Context, sid string) (session.Session, error)
}

// SessionMiddleware определяет сессию пользователя для каждого запроса.
type SessionMiddleware struct {
	store SessionLoader
}

// NewSessionMiddleware создаёт middleware. Хранилище может быть nil, тогда cookie не читается.
func NewSessionMiddleware(store SessionLoader) *SessionMiddleware {
	return &SessionMiddleware{store: store}
}

// Middleware читает заголовки Authorization и X-User, а при их отсутствии cookie сессии,
// и сохраняет сессию в контексте запроса.
func (m *SessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.resolve(r)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrNoUserID) {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
	})
}

func (m *SessionMiddleware) resolve(r *http.Request) (session.Session, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return session.FromHeader(auth, r.Header.Get(userHeader))
	}

	if m.store == nil {
		return session.Session{}, session.ErrNoSession
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return session.Session{}, session.ErrNoSession
	}

	return m.store.Load(r.Context(), cookie.Value)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
