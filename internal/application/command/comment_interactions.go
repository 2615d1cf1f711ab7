package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMENT INTERACTIONS
// Reactions, replies and votes target (:Comment {id}) nodes. The acting user
// is always the authenticated session user; a missing comment is NotFound.
// ══════════════════════════════════════════════════════════════════════════════

// ReactToCommentCommand adds a typed reaction to a comment.
type ReactToCommentCommand struct {
	UserID    string
	CommentID string
	Type      string
}

// ReplyToCommentCommand adds a reply to a comment.
type ReplyToCommentCommand struct {
	UserID    string
	CommentID string
	Content   string
}

// VoteCommentCommand likes or dislikes a comment.
type VoteCommentCommand struct {
	UserID    string
	CommentID string
	Vote      social.Vote
}

func validateTarget(userID, commentID string) error {
	if _, err := shared.ParseID("user", userID); err != nil {
		return err
	}
	if _, err := shared.ParseID("comment", commentID); err != nil {
		return err
	}
	return nil
}

// CommentInteractionsHandler handles reactions, replies and votes.
type CommentInteractionsHandler struct {
	graph  social.Graph
	logger *slog.Logger
	now    func() time.Time
}

// NewCommentInteractionsHandler creates a new CommentInteractionsHandler.
func NewCommentInteractionsHandler(graph social.Graph, log *slog.Logger) *CommentInteractionsHandler {
	return &CommentInteractionsHandler{
		graph:  graph,
		logger: logger.OrDefault(log).With(logger.Component("comment_interactions")),
		now:    time.Now,
	}
}

// React merges a REACTED edge. Repeating the same reaction is a no-op.
func (h *CommentInteractionsHandler) React(ctx context.Context, cmd ReactToCommentCommand) error {
	if err := validateTarget(cmd.UserID, cmd.CommentID); err != nil {
		return fmt.Errorf("react_to_comment: %w", err)
	}
	reaction, err := social.NewReactionType(cmd.Type)
	if err != nil {
		return fmt.Errorf("react_to_comment: %w", err)
	}

	if err := h.graph.AddReaction(ctx, cmd.UserID, cmd.CommentID, reaction); err != nil {
		return fmt.Errorf("react_to_comment: %w", err)
	}

	h.logger.DebugContext(ctx, "reaction added",
		logger.UserID(cmd.UserID),
		logger.CommentID(cmd.CommentID),
		slog.String("reaction", string(reaction)),
	)
	return nil
}

// Reply appends a REPLIED edge and returns the stored reply.
func (h *CommentInteractionsHandler) Reply(ctx context.Context, cmd ReplyToCommentCommand) (*social.Reply, error) {
	if err := validateTarget(cmd.UserID, cmd.CommentID); err != nil {
		return nil, fmt.Errorf("reply_to_comment: %w", err)
	}
	reply, err := social.NewReply(cmd.UserID, cmd.CommentID, cmd.Content, h.now())
	if err != nil {
		return nil, fmt.Errorf("reply_to_comment: %w", err)
	}

	if err := h.graph.AddReply(ctx, reply); err != nil {
		return nil, fmt.Errorf("reply_to_comment: %w", err)
	}

	h.logger.DebugContext(ctx, "reply added", logger.UserID(cmd.UserID), logger.CommentID(cmd.CommentID))
	return reply, nil
}

// Vote sets a like or dislike, replacing the opposite vote if present.
func (h *CommentInteractionsHandler) Vote(ctx context.Context, cmd VoteCommentCommand) error {
	if err := validateTarget(cmd.UserID, cmd.CommentID); err != nil {
		return fmt.Errorf("vote_comment: %w", err)
	}
	if cmd.Vote != social.VoteLike && cmd.Vote != social.VoteDislike {
		return fmt.Errorf("vote_comment: %w", shared.ValidationError("social", "Vote", "vote must be LIKED or DISLIKED"))
	}

	if err := h.graph.SetVote(ctx, cmd.UserID, cmd.CommentID, cmd.Vote); err != nil {
		return fmt.Errorf("vote_comment: %w", err)
	}

	h.logger.DebugContext(ctx, "vote recorded",
		logger.UserID(cmd.UserID),
		logger.CommentID(cmd.CommentID),
		slog.String("vote", string(cmd.Vote)),
	)
	return nil
}
