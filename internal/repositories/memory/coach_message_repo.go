package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yoockh/nutricoach/internal/models"
)

// CoachMessageRepo keeps coach history per chat in memory.
type CoachMessageRepo struct {
	mu   sync.Mutex
	rows map[string][]models.CoachMessage
}

func NewCoachMessageRepo() *CoachMessageRepo {
	return &CoachMessageRepo{rows: map[string][]models.CoachMessage{}}
}

func (r *CoachMessageRepo) Insert(_ context.Context, m *models.CoachMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	r.rows[m.ChatID] = append(r.rows[m.ChatID], *m)
	return nil
}

func (r *CoachMessageRepo) Latest(_ context.Context, chatID string, limit int64) ([]models.CoachMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.rows[chatID]
	if limit > 0 && int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	return append([]models.CoachMessage(nil), all...), nil
}

func (r *CoachMessageRepo) DeleteByChat(_ context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, chatID)
	return nil
}
