package course

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Курсы живут в документном хранилище (MongoDB, PostgreSQL JSONB или память).
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции документного хранилища для курсов.
type Repository interface {
	// FindByID возвращает курс по ID.
	// Возвращает ошибку с видом shared.ErrNotFound, если курс не найден.
	FindByID(ctx context.Context, id string) (*Course, error)

	// List возвращает все курсы каталога.
	List(ctx context.Context) ([]*Course, error)

	// ListIDs возвращает идентификаторы всех курсов (для фоновых задач).
	ListIDs(ctx context.Context) ([]string, error)

	// Create сохраняет новый курс.
	Create(ctx context.Context, course *Course) error

	// InsertMany сохраняет пачку курсов.
	InsertMany(ctx context.Context, courses []*Course) error

	// UpdateRating записывает агрегированный рейтинг.
	// Остальные поля курса не меняются.
	UpdateRating(ctx context.Context, id string, rating float64) error
}
