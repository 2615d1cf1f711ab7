package query

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATE QUERY
// Токен проверяется подписью, но решающим является наличие сессии в кэше:
// после очистки кэша все ранее выданные токены перестают работать.
// ══════════════════════════════════════════════════════════════════════════════

// TokenVerifier проверяет подпись токена и возвращает ID пользователя.
type TokenVerifier interface {
	VerifyUserID(token string) (string, error)
}

// Principal - аутентифицированный пользователь запроса.
type Principal struct {
	UserID string
	Email  string
	Name   string
}

// Authenticator проверяет токен и сессию.
type Authenticator struct {
	tokens   TokenVerifier
	sessions session.Store
}

// NewAuthenticator создаёт новый Authenticator.
func NewAuthenticator(tokens TokenVerifier, sessions session.Store) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions}
}

// Authenticate возвращает пользователя по токену. Отсутствие сессии -
// ErrUnauthorized; недоступный кэш - StoreUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, fmt.Errorf("authenticate: %w", shared.ErrInvalidToken)
	}
	userID, err := a.tokens.VerifyUserID(token)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	record, err := a.sessions.GetSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return &Principal{UserID: record.UserID, Email: record.Email, Name: record.Name}, nil
}
