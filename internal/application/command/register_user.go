package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// RegisterUserCommand contains the data to register a user.
type RegisterUserCommand struct {
	Email    string
	Password string
	Name     string
}

// Validate validates the command.
func (c RegisterUserCommand) Validate() error {
	if _, err := shared.NewEmail(c.Email); err != nil {
		return err
	}
	if len(c.Password) < user.MinPasswordLength {
		return shared.ErrWeakPassword
	}
	if strings.TrimSpace(c.Name) == "" {
		return shared.ErrInvalidName
	}
	return nil
}

// RegisterUserResult contains the registered user.
type RegisterUserResult struct {
	User user.Public
}

// RegisterUserHandler handles the RegisterUserCommand.
type RegisterUserHandler struct {
	users          user.Repository
	hasher         PasswordHasher
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(users user.Repository, hasher PasswordHasher, eventPublisher shared.EventPublisher, log *slog.Logger) *RegisterUserHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	return &RegisterUserHandler{
		users:          users,
		hasher:         hasher,
		eventPublisher: eventPublisher,
		logger:         logger.OrDefault(log).With(logger.Component("register_user")),
	}
}

// Handle executes the register user command.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	hash, err := h.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	u, err := user.NewUser(user.NewUserParams{
		Email:        cmd.Email,
		PasswordHash: hash,
		Name:         cmd.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	// The unique index on email is the only duplicate check: a pre-read
	// would race with a concurrent registration anyway.
	if err := h.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	h.logger.InfoContext(ctx, "user registered", logger.UserID(u.ID))

	if err := h.eventPublisher.Publish(ctx, shared.NewUserRegisteredEvent(u.ID, u.Email, u.Name)); err != nil {
		h.logger.WarnContext(ctx, "failed to publish registration event", logger.UserID(u.ID), logger.Err(err))
	}

	return &RegisterUserResult{User: u.Public()}, nil
}
