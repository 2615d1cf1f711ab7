package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN COMMAND
// Verifies credentials, issues a token and writes the session record.
// A token whose session record is gone (cache flushed) is rejected.
// ══════════════════════════════════════════════════════════════════════════════

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID, email string) (token string, expiresAt time.Time, err error)
}

// LoginCommand contains user credentials.
type LoginCommand struct {
	Email    string
	Password string
}

// Validate validates the command.
func (c LoginCommand) Validate() error {
	if c.Email == "" || c.Password == "" {
		return shared.ErrInvalidCredentials
	}
	return nil
}

// LoginResult contains the issued token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      user.Public
}

// LoginHandler handles the LoginCommand.
type LoginHandler struct {
	users    user.Repository
	sessions session.Store
	hasher   PasswordHasher
	tokens   TokenIssuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(users user.Repository, sessions session.Store, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger) *LoginHandler {
	return &LoginHandler{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger.OrDefault(log).With(logger.Component("login")),
		now:      time.Now,
	}
}

// Handle executes the login command. Unknown email and wrong password are
// indistinguishable to the caller.
func (h *LoginHandler) Handle(ctx context.Context, cmd LoginCommand) (*LoginResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	email, err := shared.NewEmail(cmd.Email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", shared.ErrInvalidCredentials)
	}

	u, err := h.users.FindByEmail(ctx, email.String())
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, fmt.Errorf("login: %w", shared.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("login: find user: %w", err)
	}

	if err := h.hasher.Compare(u.PasswordHash, cmd.Password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	token, expiresAt, err := h.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	record := session.Record{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: h.now().UTC(),
	}
	if err := h.sessions.SaveSession(ctx, record); err != nil {
		return nil, fmt.Errorf("login: save session: %w", asStoreUnavailable(shared.StoreCache, "SaveSession", err))
	}

	h.logger.InfoContext(ctx, "user logged in", logger.UserID(u.ID))

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u.Public()}, nil
}
