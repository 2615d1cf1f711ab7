package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/user"
)

// UserRepository implements user.Repository on the users collection.
type UserRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*UserRepository)(nil)

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "FindUser")
}

// FindByEmail returns a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "FindUserByEmail")
}

// Create inserts a new user. The unique email index reports duplicates.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if _, err := r.coll.InsertOne(ctx, fromUser(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.ErrEmailTaken
		}
		return storeError("CreateUser", err)
	}
	return nil
}

// UpsertProgress sets progress and status on the matching coursesProgress
// element in place, or pushes a new element when the user has none for the
// course. Both are single-document updates that touch one element, so
// entries for other courses are never rewritten.
func (r *UserRepository) UpsertProgress(ctx context.Context, userID, courseID string, progress float64, now time.Time) (user.ProgressEntry, bool, error) {
	status := user.DeriveStatus(progress)

	// A concurrent first update for the same course can win the $push
	// between our $set miss and our own push; the second round then finds
	// its entry with $set.
	for attempt := 0; attempt < 2; attempt++ {
		entry, err := r.setProgress(ctx, userID, courseID, progress, status, now)
		if err == nil {
			return entry, false, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return user.ProgressEntry{}, false, storeError("UpsertProgress", err)
		}

		entry = user.ProgressEntry{CourseID: courseID, Status: status, StartDate: now, Progress: progress, UpdatedAt: now}
		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": userID, "coursesProgress.courseId": bson.M{"$ne": courseID}},
			progressPush(entry),
		)
		if err != nil {
			return user.ProgressEntry{}, false, storeError("UpsertProgress", err)
		}
		if res.MatchedCount == 1 {
			return entry, true, nil
		}
		// Nothing matched: the user is gone or the entry appeared meanwhile.
		if _, err := r.FindByID(ctx, userID); err != nil {
			return user.ProgressEntry{}, false, err
		}
	}
	return user.ProgressEntry{}, false, storeError("UpsertProgress", errors.New("progress entry changed concurrently"))
}

func (r *UserRepository) setProgress(ctx context.Context, userID, courseID string, progress float64, status user.Status, now time.Time) (user.ProgressEntry, error) {
	opts := options.FindOneAndUpdate().
		SetArrayFilters(options.ArrayFilters{Filters: []interface{}{bson.M{"e.courseId": courseID}}}).
		SetReturnDocument(options.After).
		SetProjection(bson.M{"coursesProgress": bson.M{"$elemMatch": bson.M{"courseId": courseID}}})

	var doc userDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "coursesProgress.courseId": courseID},
		progressSet(progress, status, now),
		opts,
	).Decode(&doc)
	if err != nil {
		return user.ProgressEntry{}, err
	}
	u := doc.toUser()
	if len(u.CoursesProgress) == 0 {
		return user.ProgressEntry{}, mongo.ErrNoDocuments
	}
	return u.CoursesProgress[0], nil
}

// progressSet updates the element bound to "e" by the array filter.
// startDate is not part of the update.
func progressSet(progress float64, status user.Status, now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"coursesProgress.$[e].progress":  progress,
		"coursesProgress.$[e].status":    status.String(),
		"coursesProgress.$[e].updatedAt": now,
		"updatedAt":                      now,
	}}
}

func progressPush(entry user.ProgressEntry) bson.M {
	return bson.M{
		"$push": bson.M{"coursesProgress": fromProgress(entry)},
		"$set":  bson.M{"updatedAt": entry.UpdatedAt},
	}
}

// InsertMany upserts users with one unordered bulk write.
func (r *UserRepository) InsertMany(ctx context.Context, users []*user.User) error {
	if len(users) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(users))
	for _, u := range users {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": u.ID}).
			SetReplacement(fromUser(u)).
			SetUpsert(true))
	}
	if _, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.ErrEmailTaken
		}
		return storeError("InsertUsers", err)
	}
	return nil
}

// ListIDs returns the ids of every user.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	return distinctIDs(ctx, r.coll, "ListUserIDs")
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, op string) (*user.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrUserNotFound
		}
		return nil, storeError(op, err)
	}
	return doc.toUser(), nil
}
