// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COMMENT CREATED HANDLER
// Пересчитывает рейтинг курса после каждого нового комментария.
//
// Ошибка пересчёта не откатывает комментарий: ребро уже записано, а
// фоновая задача recompute_ratings догонит рейтинг при следующем запуске.
// ═══════════════════════════════════════════════════════════════════════════

// RatingRecomputer пересчитывает и сохраняет рейтинг курса.
type RatingRecomputer interface {
	Recompute(ctx context.Context, courseID string) (social.RatingSummary, error)
}

// OnCommentCreatedHandler обрабатывает событие создания комментария.
type OnCommentCreatedHandler struct {
	ratings RatingRecomputer
	logger  *slog.Logger
}

// NewOnCommentCreatedHandler создаёт новый обработчик.
func NewOnCommentCreatedHandler(ratings RatingRecomputer, log *slog.Logger) *OnCommentCreatedHandler {
	return &OnCommentCreatedHandler{
		ratings: ratings,
		logger:  logger.OrDefault(log).With(slog.String("handler", "on_comment_created")),
	}
}

// Handle обрабатывает событие. Реализует shared.EventHandler.
func (h *OnCommentCreatedHandler) Handle(ctx context.Context, event shared.Event) error {
	commentEvent, ok := event.(shared.CommentCreatedEvent)
	if !ok {
		h.logger.WarnContext(ctx, "received unexpected event",
			slog.String("event_type", string(event.EventType())),
		)
		return nil
	}

	summary, err := h.ratings.Recompute(ctx, commentEvent.CourseID())
	if err != nil {
		h.logger.ErrorContext(ctx, "rating recomputation failed",
			logger.CourseID(commentEvent.CourseID()),
			logger.CommentID(commentEvent.CommentID),
			logger.Err(err),
		)
		return fmt.Errorf("on_comment_created: %w", err)
	}

	h.logger.DebugContext(ctx, "rating updated after comment",
		logger.CourseID(commentEvent.CourseID()),
		slog.Float64("average_rating", summary.AverageRating),
		slog.Int("total_ratings", summary.TotalRatings),
	)
	return nil
}

// Register подписывает обработчики на шину событий.
func Register(bus shared.EventSubscriber, onComment *OnCommentCreatedHandler) error {
	if err := bus.Subscribe(shared.EventCommentCreated, onComment.Handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", shared.EventCommentCreated, err)
	}
	return nil
}
