// Package neo4j implements the social graph on Neo4j.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/pkg/circuitbreaker"
	"github.com/coursehub/coursehub/pkg/logger"
)

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// Breaker settings. Zero values fall back to 5 failures / 30s.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// GraphStore implements social.Graph. Every call opens its own session and
// closes it on return, whatever the outcome.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
	breaker  *circuitbreaker.Breaker
	logger   *slog.Logger
	now      func() time.Time
}

var _ social.Graph = (*GraphStore)(nil)

// New connects to Neo4j, verifies connectivity and bootstraps constraints.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	g := NewWithDriver(driver, cfg, log)
	if err := g.EnsureConstraints(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, err
	}
	return g, nil
}

// NewWithDriver wraps an existing driver.
func NewWithDriver(driver neo4j.DriverWithContext, cfg Config, log *slog.Logger) *GraphStore {
	log = logger.OrDefault(log).With(logger.Component("neo4j"))

	return &GraphStore{
		driver:   driver,
		database: cfg.Database,
		breaker: circuitbreaker.New(circuitbreaker.Settings{
			Name:             "neo4j",
			FailureThreshold: cfg.BreakerFailures,
			Cooldown:         cfg.BreakerTimeout,
			IsFailure:        countsAsFailure,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		}),
		logger: log,
		now:    time.Now,
	}
}

// countsAsFailure keeps lookups that miss from opening the breaker.
func countsAsFailure(err error) bool {
	return err != nil && !shared.IsNotFound(err) && !shared.IsValidation(err)
}

// EnsureConstraints creates uniqueness constraints on node ids.
func (g *GraphStore) EnsureConstraints(ctx context.Context) error {
	for _, q := range constraintQueries {
		if _, err := g.write(ctx, "EnsureConstraints", q, nil); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports an open breaker as unavailable without touching the server,
// otherwise it verifies connectivity.
func (g *GraphStore) Ping(ctx context.Context) error {
	if g.breaker.State() == circuitbreaker.StateOpen {
		return shared.StoreUnavailable(shared.StoreGraph, "Ping", circuitbreaker.ErrOpen)
	}
	return g.driver.VerifyConnectivity(ctx)
}

// Close closes the driver.
func (g *GraphStore) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMENTS
// ══════════════════════════════════════════════════════════════════════════════

// CreateComment merges the user and course nodes, creates the COMMENTED
// edge and the Comment node with the same id.
func (g *GraphStore) CreateComment(ctx context.Context, c *social.Comment) error {
	_, err := g.write(ctx, "CreateComment", createCommentQuery, map[string]any{
		"id":        c.ID,
		"userId":    c.UserID,
		"userName":  c.UserName,
		"courseId":  c.CourseID,
		"content":   c.Content,
		"rating":    int64(c.Rating),
		"createdAt": c.CreatedAt.UTC(),
	})
	return err
}

// CourseComments returns the course's comments, newest first.
func (g *GraphStore) CourseComments(ctx context.Context, courseID string) ([]*social.Comment, error) {
	records, err := g.read(ctx, "CourseComments", courseCommentsQuery, map[string]any{"courseId": courseID})
	if err != nil {
		return nil, err
	}
	return commentsFromRecords(records), nil
}

// UserComments returns the user's comments, newest first.
func (g *GraphStore) UserComments(ctx context.Context, userID string) ([]*social.Comment, error) {
	records, err := g.read(ctx, "UserComments", userCommentsQuery, map[string]any{"userId": userID})
	if err != nil {
		return nil, err
	}
	return commentsFromRecords(records), nil
}

// CourseRatings returns the ratings stored on the course's COMMENTED edges.
func (g *GraphStore) CourseRatings(ctx context.Context, courseID string) ([]shared.Rating, error) {
	records, err := g.read(ctx, "CourseRatings", courseRatingsQuery, map[string]any{"courseId": courseID})
	if err != nil {
		return nil, err
	}
	ratings, skipped := ratingsFromRecords(records)
	for _, s := range skipped {
		g.logger.WarnContext(ctx, "COMMENTED edge with invalid rating left out of the average",
			logger.CourseID(courseID),
			logger.CommentID(s.CommentID),
			slog.Any("rating", s.Value),
		)
	}
	return ratings, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// AddReaction merges one REACTED edge per (user, comment, type).
func (g *GraphStore) AddReaction(ctx context.Context, userID, commentID string, reaction social.ReactionType) error {
	return g.writeOnComment(ctx, "AddReaction", addReactionQuery, map[string]any{
		"userId":    userID,
		"commentId": commentID,
		"type":      string(reaction),
		"now":       g.now().UTC(),
	})
}

// AddReply creates a REPLIED edge.
func (g *GraphStore) AddReply(ctx context.Context, r *social.Reply) error {
	return g.writeOnComment(ctx, "AddReply", addReplyQuery, map[string]any{
		"id":        r.ID,
		"userId":    r.UserID,
		"commentId": r.CommentID,
		"content":   r.Content,
		"createdAt": r.CreatedAt.UTC(),
	})
}

// SetVote merges the vote edge and deletes the opposite one.
func (g *GraphStore) SetVote(ctx context.Context, userID, commentID string, vote social.Vote) error {
	query := likeQuery
	if vote == social.VoteDislike {
		query = dislikeQuery
	}
	return g.writeOnComment(ctx, "SetVote", query, map[string]any{
		"userId":    userID,
		"commentId": commentID,
		"now":       g.now().UTC(),
	})
}

// UpsertEnrollment merges the ENROLLED_IN edge and overwrites its properties.
func (g *GraphStore) UpsertEnrollment(ctx context.Context, e social.Enrollment) error {
	_, err := g.write(ctx, "UpsertEnrollment", upsertEnrollmentQuery, map[string]any{
		"userId":   e.UserID,
		"courseId": e.CourseID,
		"status":   e.Status,
		"progress": e.Progress,
		"now":      g.now().UTC(),
	})
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// writeOnComment runs a statement that starts with MATCH on the comment node.
// No returned rows means the comment does not exist.
func (g *GraphStore) writeOnComment(ctx context.Context, op, query string, params map[string]any) error {
	records, err := g.write(ctx, op, query, params)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return shared.ErrCommentNotFound
	}
	return nil
}

func (g *GraphStore) read(ctx context.Context, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	return g.run(ctx, op, neo4j.AccessModeRead, query, params)
}

func (g *GraphStore) write(ctx context.Context, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	return g.run(ctx, op, neo4j.AccessModeWrite, query, params)
}

func (g *GraphStore) run(ctx context.Context, op string, mode neo4j.AccessMode, query string, params map[string]any) ([]*neo4j.Record, error) {
	records, err := circuitbreaker.Do(ctx, g.breaker, func(ctx context.Context) ([]*neo4j.Record, error) {
		session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: g.database})
		defer session.Close(ctx)

		work := func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			return result.Collect(ctx)
		}

		var out any
		var err error
		if mode == neo4j.AccessModeRead {
			out, err = session.ExecuteRead(ctx, work)
		} else {
			out, err = session.ExecuteWrite(ctx, work)
		}
		if err != nil {
			return nil, err
		}
		records, _ := out.([]*neo4j.Record)
		return records, nil
	})
	if err != nil {
		return nil, g.classify(op, err)
	}
	return records, nil
}

func (g *GraphStore) classify(op string, err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return shared.StoreUnavailable(shared.StoreGraph, op, err)
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	g.logger.Error("graph query failed", logger.Operation(op), logger.Err(err))
	return shared.StoreUnavailable(shared.StoreGraph, op, err)
}
