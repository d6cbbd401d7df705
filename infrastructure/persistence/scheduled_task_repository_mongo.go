package persistence

import (
	"context"
	"errors"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ScheduledTaskRepositoryMongo keeps tasks in a MongoDB collection.
type ScheduledTaskRepositoryMongo struct {
	collection *mongo.Collection
}

func NewScheduledTaskRepositoryMongo(client *mongo.Client, database string) *ScheduledTaskRepositoryMongo {
	if database == "" {
		database = "social_publisher"
	}
	return &ScheduledTaskRepositoryMongo{collection: client.Database(database).Collection("scheduled_tasks")}
}

// EnsureIndexes creates the task_id unique index and the pending scan index.
func (r *ScheduledTaskRepositoryMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "schedule_time", Value: 1}}},
	})
	return err
}

func (r *ScheduledTaskRepositoryMongo) Create(ctx context.Context, t *model.ScheduledTask) error {
	_, err := r.collection.InsertOne(ctx, t)
	return err
}

func (r *ScheduledTaskRepositoryMongo) Get(ctx context.Context, taskID, userID string) (*model.ScheduledTask, error) {
	filter := bson.M{"task_id": taskID}
	if userID != "" {
		filter["user_id"] = userID
	}
	var t model.ScheduledTask
	if err := r.collection.FindOne(ctx, filter).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("scheduled task not found")
		}
		return nil, err
	}
	return &t, nil
}

func (r *ScheduledTaskRepositoryMongo) ListByUser(ctx context.Context, userID string, status model.TaskStatus) ([]model.ScheduledTask, error) {
	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *ScheduledTaskRepositoryMongo) ListPending(ctx context.Context) ([]model.ScheduledTask, error) {
	return r.find(ctx, bson.M{"status": model.TaskStatusPending}, options.Find().SetSort(pendingSort))
}

// pendingSort returns the oldest trigger first so rehydration handles
// overdue tasks before future ones.
var pendingSort = bson.D{{Key: "schedule_time", Value: 1}}

func (r *ScheduledTaskRepositoryMongo) MarkCompleted(ctx context.Context, taskID, postID string, at time.Time) (bool, error) {
	return r.transition(ctx, taskID, completedSet(postID, at))
}

func (r *ScheduledTaskRepositoryMongo) MarkFailed(ctx context.Context, taskID, reason string, at time.Time) (bool, error) {
	return r.transition(ctx, taskID, failedSet(reason, at))
}

func (r *ScheduledTaskRepositoryMongo) transition(ctx context.Context, taskID string, set bson.M) (bool, error) {
	filter, update := pendingTransition(taskID, set)
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// pendingTransition only matches a task that is still pending, so terminal
// states are never overwritten.
func pendingTransition(taskID string, set bson.M) (filter, update bson.M) {
	return bson.M{"task_id": taskID, "status": model.TaskStatusPending}, bson.M{"$set": set}
}

func completedSet(postID string, at time.Time) bson.M {
	return bson.M{
		"status":         model.TaskStatusCompleted,
		"result_post_id": postID,
		"executed_at":    at,
		"updated_at":     at,
	}
}

func failedSet(reason string, at time.Time) bson.M {
	return bson.M{
		"status":        model.TaskStatusFailed,
		"error_message": reason,
		"executed_at":   at,
		"updated_at":    at,
	}
}

func (r *ScheduledTaskRepositoryMongo) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]model.ScheduledTask, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func(cursor *mongo.Cursor, ctx context.Context) {
		if err := cursor.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing cursor")
		}
	}(cursor, ctx)

	tasks := make([]model.ScheduledTask, 0)
	for cursor.Next(ctx) {
		var t model.ScheduledTask
		if err := cursor.Decode(&t); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while decoding scheduled task")
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, cursor.Err()
}
