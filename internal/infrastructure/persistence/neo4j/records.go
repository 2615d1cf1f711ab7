package neo4j

import (
	"math"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
)

func getString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func getInt64(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func getTime(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v.UTC()
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func commentFromRecord(record *neo4j.Record) *social.Comment {
	return &social.Comment{
		ID:        getString(record, "id"),
		UserID:    getString(record, "userId"),
		UserName:  getString(record, "userName"),
		CourseID:  getString(record, "courseId"),
		Content:   getString(record, "content"),
		Rating:    shared.Rating(getInt64(record, "rating")),
		CreatedAt: getTime(record, "createdAt"),
		Likes:     int(getInt64(record, "likes")),
		Dislikes:  int(getInt64(record, "dislikes")),
		Replies:   int(getInt64(record, "replies")),
	}
}

func commentsFromRecords(records []*neo4j.Record) []*social.Comment {
	out := make([]*social.Comment, 0, len(records))
	for _, rec := range records {
		out = append(out, commentFromRecord(rec))
	}
	return out
}

// skippedRating is a COMMENTED edge whose rating is not an integer in 1..5.
type skippedRating struct {
	CommentID string
	Value     any
}

// ratingsFromRecords keeps integer ratings in range. Every other edge is
// returned in skipped so the caller can report it; a float is accepted only
// when it holds a whole number.
func ratingsFromRecords(records []*neo4j.Record) ([]shared.Rating, []skippedRating) {
	var (
		ratings []shared.Rating
		skipped []skippedRating
	)
	for _, rec := range records {
		val, _ := rec.Get("rating")
		r, ok := ratingValue(val)
		if !ok {
			skipped = append(skipped, skippedRating{CommentID: getString(rec, "id"), Value: val})
			continue
		}
		ratings = append(ratings, r)
	}
	return ratings, skipped
}

func ratingValue(val any) (shared.Rating, bool) {
	var r shared.Rating
	switch v := val.(type) {
	case int64:
		r = shared.Rating(v)
	case int:
		r = shared.Rating(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		r = shared.Rating(v)
	default:
		return 0, false
	}
	return r, r.IsValid()
}
