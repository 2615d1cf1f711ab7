package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	EventUserRegistered   EventType = "user.registered"
	EventCommentCreated   EventType = "comment.created"
	EventProgressUpdated  EventType = "progress.updated"
	EventRatingRecomputed EventType = "rating.recomputed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted after a new account is stored.
type UserRegisteredEvent struct {
	BaseEvent
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email": e.Email,
		"name":  e.Name,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID, email, name string) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent: NewBaseEvent(EventUserRegistered, userID),
		Email:     email,
		Name:      name,
	}
}

// CommentCreatedEvent is emitted once a COMMENTED edge is durable.
// The aggregate is the course, so rating subscribers can key on it.
type CommentCreatedEvent struct {
	BaseEvent
	CommentID string `json:"comment_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
}

// Payload implements Event interface.
func (e CommentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"comment_id": e.CommentID,
		"user_id":    e.UserID,
		"rating":     e.Rating,
	}
}

// CourseID returns the commented course.
func (e CommentCreatedEvent) CourseID() string {
	return e.AggregateId
}

// NewCommentCreatedEvent creates a new CommentCreatedEvent.
func NewCommentCreatedEvent(courseID, commentID, userID string, rating int) CommentCreatedEvent {
	return CommentCreatedEvent{
		BaseEvent: NewBaseEvent(EventCommentCreated, courseID),
		CommentID: commentID,
		UserID:    userID,
		Rating:    rating,
	}
}

// ProgressUpdatedEvent is emitted after the authoritative progress write.
type ProgressUpdatedEvent struct {
	BaseEvent
	CourseID string  `json:"course_id"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	Warnings int     `json:"warnings"`
}

// Payload implements Event interface.
func (e ProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"progress":  e.Progress,
		"status":    e.Status,
		"warnings":  e.Warnings,
	}
}

// NewProgressUpdatedEvent creates a new ProgressUpdatedEvent.
func NewProgressUpdatedEvent(userID, courseID string, progress float64, status string, warnings int) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent: NewBaseEvent(EventProgressUpdated, userID),
		CourseID:  courseID,
		Progress:  progress,
		Status:    status,
		Warnings:  warnings,
	}
}

// RatingRecomputedEvent is emitted after the aggregator wrote a course rating.
type RatingRecomputedEvent struct {
	BaseEvent
	AverageRating float64 `json:"average_rating"`
	TotalRatings  int     `json:"total_ratings"`
}

// Payload implements Event interface.
func (e RatingRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"average_rating": e.AverageRating,
		"total_ratings":  e.TotalRatings,
	}
}

// NewRatingRecomputedEvent creates a new RatingRecomputedEvent.
func NewRatingRecomputedEvent(courseID string, average float64, total int) RatingRecomputedEvent {
	return RatingRecomputedEvent{
		BaseEvent:     NewBaseEvent(EventRatingRecomputed, courseID),
		AverageRating: average,
		TotalRatings:  total,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus ports
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers. Handler failures are never
	// returned to the publisher.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }
