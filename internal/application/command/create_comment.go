// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE COMMENT COMMAND
// Appends a rated comment to a course. Once the edge is durable a
// CommentCreated event is published; its subscriber recomputes the course
// rating. A failed recomputation never fails the comment.
// ══════════════════════════════════════════════════════════════════════════════

// CreateCommentCommand contains the data to create a comment.
type CreateCommentCommand struct {
	UserID   string
	CourseID string
	Content  string
	Rating   int
}

// Validate validates the command.
func (c CreateCommentCommand) Validate() error {
	if _, err := shared.ParseID("user", c.UserID); err != nil {
		return err
	}
	if _, err := shared.ParseID("course", c.CourseID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Content) == "" {
		return shared.ErrEmptyContent
	}
	if _, err := shared.NewRating(c.Rating); err != nil {
		return err
	}
	return nil
}

// CreateCommentResult contains the created comment.
type CreateCommentResult struct {
	Comment *social.Comment
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateCommentHandler handles the CreateCommentCommand.
type CreateCommentHandler struct {
	users          user.Repository
	courses        course.Repository
	graph          social.Graph
	eventPublisher shared.EventPublisher
	metrics        shared.Recorder
	logger         *slog.Logger
	now            func() time.Time
}

// NewCreateCommentHandler creates a new CreateCommentHandler.
func NewCreateCommentHandler(
	users user.Repository,
	courses course.Repository,
	graph social.Graph,
	eventPublisher shared.EventPublisher,
	metrics shared.Recorder,
	log *slog.Logger,
) *CreateCommentHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if metrics == nil {
		metrics = shared.NoopRecorder{}
	}
	return &CreateCommentHandler{
		users:          users,
		courses:        courses,
		graph:          graph,
		eventPublisher: eventPublisher,
		metrics:        metrics,
		logger:         logger.OrDefault(log).With(logger.Component("create_comment")),
		now:            time.Now,
	}
}

// Handle executes the create comment command.
func (h *CreateCommentHandler) Handle(ctx context.Context, cmd CreateCommentCommand) (*CreateCommentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_comment: %w", err)
	}

	author, err := h.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("create_comment: find user: %w", err)
	}
	if _, err := h.courses.FindByID(ctx, cmd.CourseID); err != nil {
		return nil, fmt.Errorf("create_comment: find course: %w", err)
	}

	comment, err := social.NewComment(cmd.UserID, cmd.CourseID, cmd.Content, cmd.Rating, h.now())
	if err != nil {
		return nil, fmt.Errorf("create_comment: %w", err)
	}
	comment.UserName = author.Name

	if err := h.graph.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create_comment: store comment: %w", err)
	}
	h.metrics.CommentCreated()

	h.logger.InfoContext(ctx, "comment created",
		logger.CommentID(comment.ID),
		logger.UserID(comment.UserID),
		logger.CourseID(comment.CourseID),
		slog.Int("rating", comment.Rating.Int()),
	)

	event := shared.NewCommentCreatedEvent(comment.CourseID, comment.ID, comment.UserID, comment.Rating.Int())
	if err := h.eventPublisher.Publish(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "failed to publish comment event", logger.CommentID(comment.ID), logger.Err(err))
	}

	return &CreateCommentResult{Comment: comment}, nil
}
