// Package session содержит записи кэша: сессии пользователей и зеркала
// прогресса. Кэш не является источником истины.
package session

import (
	"context"
	"time"
)

// Record - сессия пользователя по ключу session:{userId}.
// Создаётся при входе, TTL нет: инвалидация только полной очисткой кэша.
// Наличие записи - единственная проверка авторизации на запрос.
type Record struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProgressMirror - копия записи прогресса по ключу user:{userId}:course:{courseId}.
// Может отставать от документного хранилища.
type ProgressMirror struct {
	UserID   string  `json:"userId"`
	CourseID string  `json:"courseId"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// Store определяет операции кэша.
type Store interface {
	// SaveSession записывает сессию без TTL.
	SaveSession(ctx context.Context, record Record) error

	// GetSession возвращает сессию.
	// Возвращает shared.ErrSessionNotFound, если записи нет.
	GetSession(ctx context.Context, userID string) (*Record, error)

	// SetProgressMirror записывает поля status и progress.
	SetProgressMirror(ctx context.Context, mirror ProgressMirror) error

	// GetProgressMirror возвращает зеркало.
	// Возвращает ошибку с видом shared.ErrNotFound при промахе.
	GetProgressMirror(ctx context.Context, userID, courseID string) (*ProgressMirror, error)

	// GetProgressMirrors возвращает зеркала пользователя по списку курсов.
	// Отсутствующие зеркала просто пропускаются.
	GetProgressMirrors(ctx context.Context, userID string, courseIDs []string) (map[string]ProgressMirror, error)

	// FlushAll очищает кэш целиком (включая сессии).
	FlushAll(ctx context.Context) error
}
