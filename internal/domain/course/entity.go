// Package course содержит доменную модель каталога курсов.
package course

import (
	"sort"
	"strings"
	"time"

	"github.com/coursehub/coursehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Course - курс каталога. Хранится в документном хранилище.
// Поле Rating производное: его пишет только агрегатор рейтинга.
type Course struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ShortDescription string    `json:"shortDescription,omitempty"`
	Description      string    `json:"description,omitempty"`
	ImageURL         string    `json:"imageUrl,omitempty"`
	BannerURL        string    `json:"bannerUrl,omitempty"`
	Units            []Unit    `json:"units"`
	Rating           float64   `json:"rating"`
	EnrolledUsers    int       `json:"enrolledUsers"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Unit - раздел курса.
type Unit struct {
	Name    string   `json:"name"`
	Order   int      `json:"order"`
	Lessons []Lesson `json:"lessons"`
}

// Lesson - урок внутри раздела.
type Lesson struct {
	Name        string       `json:"name"`
	Order       int          `json:"order"`
	VideoURL    string       `json:"videoUrl,omitempty"`
	Description string       `json:"description,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment - материал к уроку.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Summary - краткая карточка курса для списков.
type Summary struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"shortDescription,omitempty"`
	ImageURL         string  `json:"imageUrl,omitempty"`
	Rating           float64 `json:"rating"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CONSTRUCTOR
// ══════════════════════════════════════════════════════════════════════════════

// NewCourseParams - параметры для создания курса.
type NewCourseParams struct {
	ID               string
	Name             string
	ShortDescription string
	Description      string
	ImageURL         string
	BannerURL        string
	Units            []Unit
}

// NewCourse создаёт курс с нулевым рейтингом и счётчиком записавшихся.
// Порядок разделов и уроков нормализуется по позиции, если не задан.
func NewCourse(params NewCourseParams) (*Course, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.ErrInvalidCourseName
	}

	id := params.ID
	if id == "" {
		id = shared.NewID().String()
	} else if !shared.ID(id).IsValid() {
		return nil, shared.NewDomainError("course", "NewCourse", shared.ErrInvalidID, "malformed course id")
	}

	units := normalizeUnits(params.Units)
	for _, u := range units {
		if strings.TrimSpace(u.Name) == "" {
			return nil, shared.ValidationError("course", "NewCourse", "unit name is required")
		}
		for _, l := range u.Lessons {
			if strings.TrimSpace(l.Name) == "" {
				return nil, shared.ValidationError("course", "NewCourse", "lesson name is required")
			}
		}
	}

	now := time.Now().UTC()
	return &Course{
		ID:               id,
		Name:             name,
		ShortDescription: strings.TrimSpace(params.ShortDescription),
		Description:      strings.TrimSpace(params.Description),
		ImageURL:         params.ImageURL,
		BannerURL:        params.BannerURL,
		Units:            units,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func normalizeUnits(units []Unit) []Unit {
	out := make([]Unit, len(units))
	for i, u := range units {
		if u.Order == 0 {
			u.Order = i + 1
		}
		lessons := make([]Lesson, len(u.Lessons))
		for j, l := range u.Lessons {
			if l.Order == 0 {
				l.Order = j + 1
			}
			lessons[j] = l
		}
		sort.SliceStable(lessons, func(a, b int) bool { return lessons[a].Order < lessons[b].Order })
		u.Lessons = lessons
		out[i] = u
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Order < out[b].Order })
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// BEHAVIOUR
// ══════════════════════════════════════════════════════════════════════════════

// TotalLessons возвращает сумму уроков по всем текущим разделам курса.
// Значение не кэшируется: каталог может меняться между обновлениями прогресса.
func (c *Course) TotalLessons() int {
	total := 0
	for _, u := range c.Units {
		total += len(u.Lessons)
	}
	return total
}

// Summary возвращает краткую карточку курса.
func (c *Course) Summary() Summary {
	return Summary{
		ID:               c.ID,
		Name:             c.Name,
		ShortDescription: c.ShortDescription,
		ImageURL:         c.ImageURL,
		Rating:           c.Rating,
	}
}
