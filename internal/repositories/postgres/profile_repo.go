package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository interface {
	Load(ctx context.Context, chatID string) (*models.Profile, error)
	Create(ctx context.Context, chatID string) (*models.Profile, error)
	Save(ctx context.Context, p *models.Profile) error
	Delete(ctx context.Context, chatID string) error
}

type profileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) Load(ctx context.Context, chatID string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, "ProfileRepo.Load", "failed to load profile", err)
	}
	return &p, nil
}

// Create inserts a fresh record; when a concurrent create won the race the
// existing row is returned instead.
func (r *profileRepo) Create(ctx context.Context, chatID string) (*models.Profile, error) {
	now := time.Now().UTC()
	p := &models.Profile{
		ChatID:      chatID,
		StepCursor:  1,
		CurrentWeek: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoNothing: true,
		}).
		Create(p).Error
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, "ProfileRepo.Create", "failed to create profile", err)
	}
	return r.Load(ctx, chatID)
}

func (r *profileRepo) Save(ctx context.Context, p *models.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return utils.E(utils.CodeUnavailable, "ProfileRepo.Save", "failed to save profile", err)
	}
	return nil
}

func (r *profileRepo) Delete(ctx context.Context, chatID string) error {
	res := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&models.Profile{})
	if res.Error != nil {
		return utils.E(utils.CodeUnavailable, "ProfileRepo.Delete", "failed to delete profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
