package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/utils"
)

// ProfileRepo keeps profiles in process memory. It backs tests and the
// STORE=memory development mode. Every read and write copies the record so
// callers never share state with the map.
type ProfileRepo struct {
	mu      sync.Mutex
	rows    map[string]*models.Profile
	saveErr error
	loadErr error
	saves   int
	creates int
}

func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{rows: map[string]*models.Profile{}}
}

// WithSaveError makes subsequent Save calls fail with err wrapped as
// UNAVAILABLE. Pass nil to clear.
func (r *ProfileRepo) WithSaveError(err error) *ProfileRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
	return r
}

// WithLoadError makes subsequent Load calls fail.
func (r *ProfileRepo) WithLoadError(err error) *ProfileRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadErr = err
	return r
}

// Put stores p as is, bypassing Create. Tests use it to seed state.
func (r *ProfileRepo) Put(p *models.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.ChatID] = p.Clone()
}

// Saves returns how many successful Save calls happened.
func (r *ProfileRepo) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// Creates returns how many records Create actually inserted.
func (r *ProfileRepo) Creates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

func (r *ProfileRepo) Load(_ context.Context, chatID string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadErr != nil {
		return nil, utils.E(utils.CodeUnavailable, "MemoryProfileRepo.Load", "failed to load profile", r.loadErr)
	}
	p, ok := r.rows[chatID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProfileRepo) Create(_ context.Context, chatID string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.rows[chatID]; ok {
		return p.Clone(), nil
	}
	now := time.Now().UTC()
	p := &models.Profile{ChatID: chatID, StepCursor: 1, CurrentWeek: 1, CreatedAt: now, UpdatedAt: now}
	r.rows[chatID] = p
	r.creates++
	return p.Clone(), nil
}

func (r *ProfileRepo) Save(_ context.Context, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return utils.E(utils.CodeUnavailable, "MemoryProfileRepo.Save", "failed to save profile", r.saveErr)
	}
	p.UpdatedAt = time.Now().UTC()
	r.rows[p.ChatID] = p.Clone()
	r.saves++
	return nil
}

func (r *ProfileRepo) Delete(_ context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[chatID]; !ok {
		return utils.ErrNotFound
	}
	delete(r.rows, chatID)
	return nil
}
