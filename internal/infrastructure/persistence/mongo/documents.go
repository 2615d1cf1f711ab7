package mongo

import (
	"time"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/user"
)

// Stored shapes. Domain types carry json tags only, so the bson layout is
// declared here and converted at the repository boundary.

type attachmentDoc struct {
	Name string `bson:"name"`
	URL  string `bson:"url"`
}

type lessonDoc struct {
	Name        string          `bson:"name"`
	Order       int             `bson:"order"`
	VideoURL    string          `bson:"videoUrl,omitempty"`
	Description string          `bson:"description,omitempty"`
	Attachments []attachmentDoc `bson:"attachments,omitempty"`
}

type unitDoc struct {
	Name    string      `bson:"name"`
	Order   int         `bson:"order"`
	Lessons []lessonDoc `bson:"lessons"`
}

type courseDoc struct {
	ID               string    `bson:"_id"`
	Name             string    `bson:"name"`
	ShortDescription string    `bson:"shortDescription,omitempty"`
	Description      string    `bson:"description,omitempty"`
	ImageURL         string    `bson:"imageUrl,omitempty"`
	BannerURL        string    `bson:"bannerUrl,omitempty"`
	Units            []unitDoc `bson:"units"`
	Rating           float64   `bson:"rating"`
	EnrolledUsers    int       `bson:"enrolledUsers"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

type progressDoc struct {
	CourseID  string    `bson:"courseId"`
	Status    string    `bson:"status"`
	StartDate time.Time `bson:"startDate"`
	Progress  float64   `bson:"progress"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type userDoc struct {
	ID              string        `bson:"_id"`
	Email           string        `bson:"email"`
	PasswordHash    string        `bson:"passwordHash"`
	Name            string        `bson:"name"`
	CoursesProgress []progressDoc `bson:"coursesProgress"`
	CreatedAt       time.Time     `bson:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt"`
}

func fromCourse(c *course.Course) courseDoc {
	units := make([]unitDoc, 0, len(c.Units))
	for _, u := range c.Units {
		lessons := make([]lessonDoc, 0, len(u.Lessons))
		for _, l := range u.Lessons {
			var atts []attachmentDoc
			for _, a := range l.Attachments {
				atts = append(atts, attachmentDoc{Name: a.Name, URL: a.URL})
			}
			lessons = append(lessons, lessonDoc{
				Name:        l.Name,
				Order:       l.Order,
				VideoURL:    l.VideoURL,
				Description: l.Description,
				Attachments: atts,
			})
		}
		units = append(units, unitDoc{Name: u.Name, Order: u.Order, Lessons: lessons})
	}
	return courseDoc{
		ID:               c.ID,
		Name:             c.Name,
		ShortDescription: c.ShortDescription,
		Description:      c.Description,
		ImageURL:         c.ImageURL,
		BannerURL:        c.BannerURL,
		Units:            units,
		Rating:           c.Rating,
		EnrolledUsers:    c.EnrolledUsers,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func (d courseDoc) toCourse() *course.Course {
	units := make([]course.Unit, 0, len(d.Units))
	for _, u := range d.Units {
		lessons := make([]course.Lesson, 0, len(u.Lessons))
		for _, l := range u.Lessons {
			var atts []course.Attachment
			for _, a := range l.Attachments {
				atts = append(atts, course.Attachment{Name: a.Name, URL: a.URL})
			}
			lessons = append(lessons, course.Lesson{
				Name:        l.Name,
				Order:       l.Order,
				VideoURL:    l.VideoURL,
				Description: l.Description,
				Attachments: atts,
			})
		}
		units = append(units, course.Unit{Name: u.Name, Order: u.Order, Lessons: lessons})
	}
	return &course.Course{
		ID:               d.ID,
		Name:             d.Name,
		ShortDescription: d.ShortDescription,
		Description:      d.Description,
		ImageURL:         d.ImageURL,
		BannerURL:        d.BannerURL,
		Units:            units,
		Rating:           d.Rating,
		EnrolledUsers:    d.EnrolledUsers,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func fromUser(u *user.User) userDoc {
	progress := make([]progressDoc, 0, len(u.CoursesProgress))
	for _, p := range u.CoursesProgress {
		progress = append(progress, fromProgress(p))
	}
	return userDoc{
		ID:              u.ID,
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		Name:            u.Name,
		CoursesProgress: progress,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func fromProgress(p user.ProgressEntry) progressDoc {
	return progressDoc{
		CourseID:  p.CourseID,
		Status:    p.Status.String(),
		StartDate: p.StartDate,
		Progress:  p.Progress,
		UpdatedAt: p.UpdatedAt,
	}
}

func (d userDoc) toUser() *user.User {
	progress := make([]user.ProgressEntry, 0, len(d.CoursesProgress))
	for _, p := range d.CoursesProgress {
		progress = append(progress, user.ProgressEntry{
			CourseID:  p.CourseID,
			Status:    user.Status(p.Status),
			StartDate: p.StartDate,
			Progress:  p.Progress,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return &user.User{
		ID:              d.ID,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		Name:            d.Name,
		CoursesProgress: progress,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
