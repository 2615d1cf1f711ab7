package user

import (
	"time"

	"github.com/coursehub/coursehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Status - статус прохождения курса.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// IsValid проверяет, что статус известен.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// ProgressEntry - прогресс пользователя по одному курсу.
type ProgressEntry struct {
	CourseID  string    `json:"courseId"`
	Status    Status    `json:"status"`
	StartDate time.Time `json:"startDate"`
	Progress  float64   `json:"progress"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVATION
// Статус не является конечным автоматом: он пересчитывается целиком при
// каждом обновлении. Откат COMPLETED -> IN_PROGRESS допустим.
// ══════════════════════════════════════════════════════════════════════════════

// DeriveStatus выводит статус из процента прохождения.
func DeriveStatus(progress float64) Status {
	switch {
	case progress <= 0:
		return StatusNotStarted
	case progress >= 100:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// ComputeProgress возвращает процент пройденных уроков, ограниченный [0, 100].
// Курс без уроков даёт ошибку валидации: процент не определён.
func ComputeProgress(completedLessons, totalLessons int) (float64, error) {
	if totalLessons <= 0 {
		return 0, shared.ErrCourseHasNoLessons
	}
	if completedLessons <= 0 {
		return 0, nil
	}
	if completedLessons >= totalLessons {
		return 100, nil
	}
	// completed*100/total, not completed/total*100: keeps whole fractions exact.
	return float64(completedLessons) * 100 / float64(totalLessons), nil
}
