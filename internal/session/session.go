// Package session предоставляет доступ к сессии пользователя: bearer-токену и идентификатору.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession возвращается, если токен авторизации отсутствует.
var (
	ErrNoSession = errors.New("no session")
	// ErrNoUserID возвращается, если идентификатор пользователя не удалось определить.
	ErrNoUserID = errors.New("user id not found in session")
)

// Session содержит данные сессии, необходимые для обращения к API.
type Session struct {
	Token  string
	UserID string
}

// Accessor читает сессию в момент вызова. Реализации не должны кэшировать результат.
type Accessor interface {
	Session(ctx context.Context) (Session, error)
}

// Static возвращает одну и ту же сессию; используется в тестах и утилитах.
type Static Session

// Session реализует Accessor.
func (s Static) Session(context.Context) (Session, error) {
	if s.Token == "" {
		return Session{}, ErrNoSession
	}
	return Session(s), nil
}

type contextKey string

const sessionKey contextKey = "session"

// WithSession сохраняет сессию в контексте запроса.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// Context читает сессию, сохранённую в контексте запроса middleware.
type Context struct{}

// Session реализует Accessor.
func (Context) Session(ctx context.Context) (Session, error) {
	s, ok := ctx.Value(sessionKey).(Session)
	if !ok || s.Token == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// FromHeader собирает сессию из значения заголовка Authorization и сохранённой записи пользователя.
// Схема Bearer сравнивается без учёта регистра.
func FromHeader(authorization, userRecord string) (Session, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return Session{}, ErrNoSession
	}
	return Build(strings.TrimSpace(token), userRecord)
}

// Build собирает сессию из токена и JSON-записи пользователя.
// Если запись пуста или не содержит id, идентификатор берётся из claim user_id токена.
func Build(token, userRecord string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}

	if userRecord != "" {
		if id, err := ParseUserID([]byte(userRecord)); err == nil {
			return Session{Token: token, UserID: id}, nil
		}
	}

	id, err := UserIDFromToken(token)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: id}, nil
}

// ParseUserID извлекает поле id из JSON-записи пользователя. Id может быть числом или строкой.
func ParseUserID(record []byte) (string, error) {
	var u struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(record, &u); err != nil {
		return "", fmt.Errorf("decode user record: %w", err)
	}

	raw := bytes.TrimSpace(u.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrNoUserID
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode user id: %w", err)
		}
		if s == "" {
			return "", ErrNoUserID
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode user id: %w", err)
	}
	return n.String(), nil
}

// UserIDFromToken читает claim user_id (или sub) из токена без проверки подписи.
// Подпись проверяет API, которому токен передаётся.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoUserID, err)
	}

	switch v := claims["user_id"].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case string:
		if v != "" {
			return v, nil
		}
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}

	return "", ErrNoUserID
}
