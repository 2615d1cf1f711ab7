package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
)

// Graph store operation names for fault injection.
const (
	OpCreateComment    = "CreateComment"
	OpCourseComments   = "CourseComments"
	OpUserComments     = "UserComments"
	OpCourseRatings    = "CourseRatings"
	OpAddReaction      = "AddReaction"
	OpAddReply         = "AddReply"
	OpSetVote          = "SetVote"
	OpUpsertEnrollment = "UpsertEnrollment"
)

type edgeKey struct {
	userID    string
	commentID string
}

type reactionKey struct {
	edgeKey
	reaction social.ReactionType
}

type enrollmentKey struct {
	userID   string
	courseID string
}

// GraphStore keeps the social graph in maps. Node MERGE semantics are modelled
// by the users/courses sets; comments and replies are append-only.
type GraphStore struct {
	*Faults

	mu          sync.RWMutex
	users       map[string]struct{}
	courses     map[string]struct{}
	comments    []*social.Comment
	commentByID map[string]*social.Comment
	reactions   map[reactionKey]struct{}
	replies     []*social.Reply
	votes       map[edgeKey]social.Vote
	enrollments map[enrollmentKey]social.Enrollment
}

var _ social.Graph = (*GraphStore)(nil)

// NewGraphStore creates an empty graph.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		Faults:      newFaults(),
		users:       make(map[string]struct{}),
		courses:     make(map[string]struct{}),
		commentByID: make(map[string]*social.Comment),
		reactions:   make(map[reactionKey]struct{}),
		votes:       make(map[edgeKey]social.Vote),
		enrollments: make(map[enrollmentKey]social.Enrollment),
	}
}

// Ping always succeeds.
func (g *GraphStore) Ping(context.Context) error { return nil }

// CreateComment merges the user and course nodes and appends the comment.
func (g *GraphStore) CreateComment(_ context.Context, c *social.Comment) error {
	if err := g.hit(OpCreateComment); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.users[c.UserID] = struct{}{}
	g.courses[c.CourseID] = struct{}{}

	stored := *c
	g.comments = append(g.comments, &stored)
	g.commentByID[c.ID] = &stored
	return nil
}

// CourseComments returns the course's comments, newest first.
func (g *GraphStore) CourseComments(_ context.Context, courseID string) ([]*social.Comment, error) {
	if err := g.hit(OpCourseComments); err != nil {
		return nil, err
	}
	return g.collect(func(c *social.Comment) bool { return c.CourseID == courseID }), nil
}

// UserComments returns the user's comments, newest first.
func (g *GraphStore) UserComments(_ context.Context, userID string) ([]*social.Comment, error) {
	if err := g.hit(OpUserComments); err != nil {
		return nil, err
	}
	return g.collect(func(c *social.Comment) bool { return c.UserID == userID }), nil
}

// CourseRatings returns the ratings of every comment on the course.
func (g *GraphStore) CourseRatings(_ context.Context, courseID string) ([]shared.Rating, error) {
	if err := g.hit(OpCourseRatings); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ratings []shared.Rating
	for _, c := range g.comments {
		if c.CourseID == courseID {
			ratings = append(ratings, c.Rating)
		}
	}
	return ratings, nil
}

// AddReaction merges one REACTED edge per (user, comment, type).
func (g *GraphStore) AddReaction(_ context.Context, userID, commentID string, reaction social.ReactionType) error {
	if err := g.hit(OpAddReaction); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.commentByID[commentID]; !ok {
		return shared.ErrCommentNotFound
	}
	g.users[userID] = struct{}{}
	g.reactions[reactionKey{edgeKey{userID, commentID}, reaction}] = struct{}{}
	return nil
}

// AddReply appends a REPLIED edge.
func (g *GraphStore) AddReply(_ context.Context, r *social.Reply) error {
	if err := g.hit(OpAddReply); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.commentByID[r.CommentID]; !ok {
		return shared.ErrCommentNotFound
	}
	g.users[r.UserID] = struct{}{}
	stored := *r
	g.replies = append(g.replies, &stored)
	return nil
}

// SetVote records a like or dislike, replacing the opposite vote.
func (g *GraphStore) SetVote(_ context.Context, userID, commentID string, vote social.Vote) error {
	if err := g.hit(OpSetVote); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.commentByID[commentID]; !ok {
		return shared.ErrCommentNotFound
	}
	g.users[userID] = struct{}{}
	g.votes[edgeKey{userID, commentID}] = vote
	return nil
}

// UpsertEnrollment merges the ENROLLED_IN edge and overwrites its properties.
func (g *GraphStore) UpsertEnrollment(_ context.Context, e social.Enrollment) error {
	if err := g.hit(OpUpsertEnrollment); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.users[e.UserID] = struct{}{}
	g.courses[e.CourseID] = struct{}{}
	g.enrollments[enrollmentKey{e.UserID, e.CourseID}] = e
	return nil
}

// Enrollment returns the stored edge, for assertions.
func (g *GraphStore) Enrollment(userID, courseID string) (social.Enrollment, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.enrollments[enrollmentKey{userID, courseID}]
	return e, ok
}

// NodeCounts returns the number of distinct user and course nodes.
func (g *GraphStore) NodeCounts() (users, courses int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.users), len(g.courses)
}

// ReactionCount returns the number of REACTED edges on a comment.
func (g *GraphStore) ReactionCount(commentID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for k := range g.reactions {
		if k.commentID == commentID {
			n++
		}
	}
	return n
}

func (g *GraphStore) collect(match func(*social.Comment) bool) []*social.Comment {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*social.Comment
	for _, c := range g.comments {
		if !match(c) {
			continue
		}
		cp := *c
		for k, v := range g.votes {
			if k.commentID != c.ID {
				continue
			}
			if v == social.VoteLike {
				cp.Likes++
			} else {
				cp.Dislikes++
			}
		}
		for _, r := range g.replies {
			if r.CommentID == c.ID {
				cp.Replies++
			}
		}
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
