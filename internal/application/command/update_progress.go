package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/pkg/logger"
	"github.com/coursehub/coursehub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROGRESS COMMAND
// Flow: Validate → Load User/Course → Compute → Upsert Progress Entry →
//
//	Mirror to Cache → Upsert ENROLLED_IN → Publish Event
//
// The document store is authoritative. Cache and graph writes are
// best-effort and never roll back the document write; their failures are
// returned as warnings. Concurrent updates for the same (user, course) are
// last-write-wins per store, so the document and the cache mirror may end
// up reflecting different calls until the repair job runs.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressCommand contains the data to update a user's course progress.
type UpdateProgressCommand struct {
	UserID           string
	CourseID         string
	CompletedLessons int
}

// Validate validates the command.
func (c UpdateProgressCommand) Validate() error {
	if _, err := shared.ParseID("user", c.UserID); err != nil {
		return err
	}
	if _, err := shared.ParseID("course", c.CourseID); err != nil {
		return err
	}
	return nil
}

// ProgressUpdateResult is the outcome of a progress update.
type ProgressUpdateResult struct {
	UserID    string
	CourseID  string
	Progress  float64
	Status    user.Status
	StartDate time.Time
	Created   bool

	// Warnings lists the mirror writes that failed after the document
	// store write succeeded. Empty on a clean run.
	Warnings []shared.PartialWriteWarning
}

// HasWarnings reports whether any mirror write failed.
func (r *ProgressUpdateResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressHandler handles the UpdateProgressCommand.
//
// There is no concurrency token: two concurrent updates for the same
// (user, course) are last-write-wins in each store independently, so the
// document and its mirrors can end up reflecting different calls until
// the next repair_progress_mirrors run. The mirror repair paths (the read
// repair in GetCourseProgress and the repair job itself) read the document
// before writing, so they can also put an older entry over a mirror this
// handler has just written; the following repair run converges it.
type UpdateProgressHandler struct {
	users          user.Repository
	courses        course.Repository
	cache          session.Store
	graph          social.Graph
	mirrorRetrier  *retry.Retrier
	eventPublisher shared.EventPublisher
	metrics        shared.Recorder
	logger         *slog.Logger
	now            func() time.Time
}

// NewUpdateProgressHandler creates a new UpdateProgressHandler.
// A nil retrier means mirror writes are attempted once.
func NewUpdateProgressHandler(
	users user.Repository,
	courses course.Repository,
	cache session.Store,
	graph social.Graph,
	mirrorRetrier *retry.Retrier,
	eventPublisher shared.EventPublisher,
	metrics shared.Recorder,
	log *slog.Logger,
) *UpdateProgressHandler {
	if mirrorRetrier == nil {
		mirrorRetrier = retry.New(retry.WithMaxAttempts(1))
	}
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if metrics == nil {
		metrics = shared.NoopRecorder{}
	}
	return &UpdateProgressHandler{
		users:          users,
		courses:        courses,
		cache:          cache,
		graph:          graph,
		mirrorRetrier:  mirrorRetrier,
		eventPublisher: eventPublisher,
		metrics:        metrics,
		logger:         logger.OrDefault(log).With(logger.Component("update_progress")),
		now:            time.Now,
	}
}

// Handle executes the update progress command.
func (h *UpdateProgressHandler) Handle(ctx context.Context, cmd UpdateProgressCommand) (*ProgressUpdateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_progress: %w", err)
	}

	if _, err := h.users.FindByID(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("update_progress: find user: %w", err)
	}
	c, err := h.courses.FindByID(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("update_progress: find course: %w", err)
	}

	// Lesson count is read fresh on every call so catalog edits are picked up.
	progress, err := user.ComputeProgress(cmd.CompletedLessons, c.TotalLessons())
	if err != nil {
		return nil, fmt.Errorf("update_progress: %w", err)
	}

	// Only this course's entry is written; entries for other courses are
	// never rewritten from a stale copy.
	entry, created, err := h.users.UpsertProgress(ctx, cmd.UserID, cmd.CourseID, progress, h.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("update_progress: save progress: %w", asStoreUnavailable(shared.StoreDocument, "UpsertProgress", err))
	}

	result := &ProgressUpdateResult{
		UserID:    cmd.UserID,
		CourseID:  cmd.CourseID,
		Progress:  entry.Progress,
		Status:    entry.Status,
		StartDate: entry.StartDate,
		Created:   created,
	}

	if w, ok := h.mirrorToCache(ctx, cmd.UserID, entry); !ok {
		result.Warnings = append(result.Warnings, w)
	}
	if w, ok := h.upsertEnrollment(ctx, cmd.UserID, entry); !ok {
		result.Warnings = append(result.Warnings, w)
	}

	h.metrics.ProgressUpdated(entry.Status.String())
	h.logger.InfoContext(ctx, "progress updated",
		logger.UserID(cmd.UserID),
		logger.CourseID(cmd.CourseID),
		slog.Float64("progress", entry.Progress),
		slog.String("status", entry.Status.String()),
		slog.Int("warnings", len(result.Warnings)),
	)

	event := shared.NewProgressUpdatedEvent(cmd.UserID, cmd.CourseID, entry.Progress, entry.Status.String(), len(result.Warnings))
	if err := h.eventPublisher.Publish(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "failed to publish progress event", logger.UserID(cmd.UserID), logger.Err(err))
	}

	return result, nil
}

func (h *UpdateProgressHandler) mirrorToCache(ctx context.Context, userID string, entry user.ProgressEntry) (shared.PartialWriteWarning, bool) {
	mirror := session.ProgressMirror{
		UserID:   userID,
		CourseID: entry.CourseID,
		Status:   entry.Status.String(),
		Progress: entry.Progress,
	}
	err := h.mirrorRetrier.Do(ctx, func(ctx context.Context) error {
		return h.cache.SetProgressMirror(ctx, mirror)
	})
	if err == nil {
		return shared.PartialWriteWarning{}, true
	}
	return h.warn(ctx, shared.StoreCache, "SetProgressMirror", userID, entry.CourseID, err), false
}

func (h *UpdateProgressHandler) upsertEnrollment(ctx context.Context, userID string, entry user.ProgressEntry) (shared.PartialWriteWarning, bool) {
	enrollment := social.Enrollment{
		UserID:   userID,
		CourseID: entry.CourseID,
		Status:   entry.Status.String(),
		Progress: entry.Progress,
	}
	err := h.mirrorRetrier.Do(ctx, func(ctx context.Context) error {
		return h.graph.UpsertEnrollment(ctx, enrollment)
	})
	if err == nil {
		return shared.PartialWriteWarning{}, true
	}
	return h.warn(ctx, shared.StoreGraph, "UpsertEnrollment", userID, entry.CourseID, err), false
}

func (h *UpdateProgressHandler) warn(ctx context.Context, store, op, userID, courseID string, err error) shared.PartialWriteWarning {
	w := shared.NewPartialWriteWarning(store, op, err)
	h.metrics.PartialWrite(store, op)
	h.logger.WarnContext(ctx, "mirror write failed",
		logger.Store(store),
		logger.Operation(op),
		logger.UserID(userID),
		logger.CourseID(courseID),
		logger.Err(err),
	)
	return w
}

// asStoreUnavailable keeps typed domain errors as they are and classifies
// anything else coming out of an adapter as a store outage.
func asStoreUnavailable(store, op string, err error) error {
	if shared.IsStoreUnavailable(err) || shared.IsNotFound(err) || shared.IsValidation(err) || shared.IsAlreadyExists(err) {
		return err
	}
	return shared.StoreUnavailable(store, op, err)
}
