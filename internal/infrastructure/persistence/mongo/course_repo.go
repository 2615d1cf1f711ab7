package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
)

// CourseRepository implements course.Repository on the courses collection.
type CourseRepository struct {
	coll *mongo.Collection
}

var _ course.Repository = (*CourseRepository)(nil)

// FindByID returns a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*course.Course, error) {
	var doc courseDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, storeError("FindCourse", err)
	}
	return doc.toCourse(), nil
}

// List returns every course in creation order.
func (r *CourseRepository) List(ctx context.Context) ([]*course.Course, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, storeError("ListCourses", err)
	}

	var docs []courseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError("ListCourses", err)
	}

	courses := make([]*course.Course, 0, len(docs))
	for _, d := range docs {
		courses = append(courses, d.toCourse())
	}
	return courses, nil
}

// ListIDs returns the ids of every course.
func (r *CourseRepository) ListIDs(ctx context.Context) ([]string, error) {
	return distinctIDs(ctx, r.coll, "ListCourseIDs")
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	if _, err := r.coll.InsertOne(ctx, fromCourse(c)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.ErrCourseAlreadyExists
		}
		return storeError("CreateCourse", err)
	}
	return nil
}

// InsertMany upserts courses with one unordered bulk write.
func (r *CourseRepository) InsertMany(ctx context.Context, courses []*course.Course) error {
	if len(courses) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(courses))
	for _, c := range courses {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": c.ID}).
			SetReplacement(fromCourse(c)).
			SetUpsert(true))
	}
	if _, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return storeError("InsertCourses", err)
	}
	return nil
}

// UpdateRating sets only the rating field.
func (r *CourseRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"rating": rating}})
	if err != nil {
		return storeError("UpdateRating", err)
	}
	if res.MatchedCount == 0 {
		return shared.ErrCourseNotFound
	}
	return nil
}

func distinctIDs(ctx context.Context, coll *mongo.Collection, op string) ([]string, error) {
	values, err := coll.Distinct(ctx, "_id", bson.D{})
	if err != nil {
		return nil, storeError(op, err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}
