package shared

import (
	"math"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ID is an opaque entity identifier shared by every store.
type ID string

// Opaque ids: uuids, hex object ids, or slugs. No whitespace or separators
// that would collide with cache key segments.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// IsValid checks if the ID is well formed.
func (i ID) IsValid() bool {
	return idRegex.MatchString(string(i))
}

// String returns the string representation.
func (i ID) String() string {
	return string(i)
}

// NewID generates a fresh identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates a caller-supplied identifier.
func ParseID(domain, raw string) (ID, error) {
	id := ID(strings.TrimSpace(raw))
	if !id.IsValid() {
		return "", NewDomainError(domain, "ParseID", ErrInvalidID, "malformed identifier")
	}
	return id, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Email Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Email is a normalized (trimmed, lowercase) address.
type Email string

// NewEmail validates and normalizes an address.
func NewEmail(raw string) (Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", ErrInvalidEmail
	}
	return Email(normalized), nil
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rating represents a comment rating value (1-5 stars).
type Rating int

const (
	MinRating Rating = 1
	MaxRating Rating = 5
)

// IsValid checks if the rating is within valid range.
func (r Rating) IsValid() bool {
	return r >= MinRating && r <= MaxRating
}

// Int returns the underlying int value.
func (r Rating) Int() int {
	return int(r)
}

// NewRating creates a new Rating with validation.
func NewRating(value int) (Rating, error) {
	if value < int(MinRating) || value > int(MaxRating) {
		return 0, ErrInvalidRating
	}
	return Rating(value), nil
}

// AverageRating returns the arithmetic mean rounded to one decimal place.
// An empty slice averages to 0.
func AverageRating(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += int(r)
	}
	return RoundTo(float64(sum)/float64(len(ratings)), 1)
}

// RoundTo rounds v half away from zero to the given number of decimals.
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
