package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type CoachMessage struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID  string             `bson:"chat_id" json:"chat_id"`
	Role    string             `bson:"role" json:"role"` // user|assistant
	Content string             `bson:"content" json:"content"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
