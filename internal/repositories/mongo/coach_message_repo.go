package mongo

import (
	"context"
	"time"

	"github.com/yoockh/nutricoach/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CoachMessagesCollection = "coach_messages"

type CoachMessageRepository interface {
	Insert(ctx context.Context, m *models.CoachMessage) error
	// Latest returns up to limit messages in chronological order.
	Latest(ctx context.Context, chatID string, limit int64) ([]models.CoachMessage, error)
	DeleteByChat(ctx context.Context, chatID string) error
}

type coachMessageRepo struct {
	col *mongo.Collection
	ttl time.Duration
}

func NewCoachMessageRepo(db *mongo.Database, ttl time.Duration) CoachMessageRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &coachMessageRepo{col: db.Collection(CoachMessagesCollection), ttl: ttl}
}

func (r *coachMessageRepo) Insert(ctx context.Context, m *models.CoachMessage) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.ExpiresAt.IsZero() {
		m.ExpiresAt = m.Timestamp.Add(r.ttl)
	}
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *coachMessageRepo) Latest(ctx context.Context, chatID string, limit int64) ([]models.CoachMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	cur, err := r.col.Find(ctx,
		bson.M{"chat_id": chatID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CoachMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *coachMessageRepo) DeleteByChat(ctx context.Context, chatID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"chat_id": chatID})
	return err
}
