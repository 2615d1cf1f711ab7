package user

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Пользователи живут в документном хранилище. Реализации находятся в
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции документного хранилища для пользователей.
type Repository interface {
	// FindByID возвращает пользователя по ID.
	// Возвращает ошибку с видом shared.ErrNotFound, если пользователь не найден.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail возвращает пользователя по email.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Create сохраняет нового пользователя.
	// Возвращает shared.ErrEmailTaken, если email уже занят.
	Create(ctx context.Context, user *User) error

	// UpsertProgress атомарно меняет одну запись прогресса по courseID:
	// обновляет progress и status на месте (StartDate сохраняется) или
	// добавляет новую запись. Остальные записи списка не затрагиваются, так
	// что конкурентные обновления разных курсов одного пользователя не
	// теряют друг друга. Для одной пары (user, course) побеждает последняя
	// запись. Возвращает итоговую запись и признак того, что она создана.
	UpsertProgress(ctx context.Context, userID, courseID string, progress float64, now time.Time) (ProgressEntry, bool, error)

	// InsertMany сохраняет пачку пользователей.
	InsertMany(ctx context.Context, users []*User) error

	// ListIDs возвращает идентификаторы всех пользователей (для фоновых задач).
	ListIDs(ctx context.Context) ([]string, error)
}
