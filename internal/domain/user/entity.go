// Package user содержит доменную модель пользователя платформы и его
// прогресса по курсам.
package user

import (
	"strings"
	"time"

	"github.com/coursehub/coursehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// MinPasswordLength - минимальная длина пароля при регистрации.
const MinPasswordLength = 6

// User - учётная запись пользователя. Хранится в документном хранилище.
// Записи CoursesProgress меняет только сверщик прогресса.
type User struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	PasswordHash    string          `json:"-"`
	Name            string          `json:"name"`
	CoursesProgress []ProgressEntry `json:"coursesProgress"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewUserParams - параметры для создания пользователя.
type NewUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
}

// NewUser создаёт пользователя с пустым списком прогресса.
// Хэширование пароля выполняется снаружи домена.
func NewUser(params NewUserParams) (*User, error) {
	email, err := shared.NewEmail(params.Email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.ErrInvalidName
	}

	if params.PasswordHash == "" {
		return nil, shared.ValidationError("user", "NewUser", "password hash is required")
	}

	id := params.ID
	if id == "" {
		id = shared.NewID().String()
	} else if !shared.ID(id).IsValid() {
		return nil, shared.NewDomainError("user", "NewUser", shared.ErrInvalidID, "malformed user id")
	}

	now := time.Now().UTC()
	return &User{
		ID:              id,
		Email:           email.String(),
		PasswordHash:    params.PasswordHash,
		Name:            name,
		CoursesProgress: []ProgressEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ProgressFor возвращает запись прогресса по курсу.
func (u *User) ProgressFor(courseID string) (ProgressEntry, bool) {
	for _, p := range u.CoursesProgress {
		if p.CourseID == courseID {
			return p, true
		}
	}
	return ProgressEntry{}, false
}

// UpsertProgress обновляет запись прогресса по courseID на месте или
// добавляет новую со свежей датой начала. StartDate существующей записи
// не трогается. Статус всегда выводится из процента заново.
func (u *User) UpsertProgress(courseID string, progress float64, now time.Time) (ProgressEntry, bool) {
	status := DeriveStatus(progress)

	for i := range u.CoursesProgress {
		if u.CoursesProgress[i].CourseID != courseID {
			continue
		}
		u.CoursesProgress[i].Progress = progress
		u.CoursesProgress[i].Status = status
		u.CoursesProgress[i].UpdatedAt = now
		u.UpdatedAt = now
		return u.CoursesProgress[i], false
	}

	entry := ProgressEntry{
		CourseID:  courseID,
		Status:    status,
		StartDate: now,
		Progress:  progress,
		UpdatedAt: now,
	}
	u.CoursesProgress = append(u.CoursesProgress, entry)
	u.UpdatedAt = now
	return entry, true
}

// Public возвращает пользователя без хэша пароля.
func (u *User) Public() Public {
	return Public{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Public - представление пользователя без секретов.
type Public struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
