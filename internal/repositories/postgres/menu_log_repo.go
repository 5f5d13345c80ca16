package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/utils"
	"gorm.io/gorm"
)

type MenuLogRepo interface {
	Insert(ctx context.Context, log *models.MenuLog) error
	LatestByChat(ctx context.Context, chatID string, n int) ([]models.MenuLog, error)
	GetByID(ctx context.Context, id string) (*models.MenuLog, error)
}

type menuLogRepo struct {
	db *gorm.DB
}

func NewMenuLogRepo(db *gorm.DB) MenuLogRepo {
	return &menuLogRepo{db: db}
}

func (r *menuLogRepo) Insert(ctx context.Context, log *models.MenuLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *menuLogRepo) LatestByChat(ctx context.Context, chatID string, n int) ([]models.MenuLog, error) {
	if n <= 0 {
		n = 5
	}
	var rows []models.MenuLog
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(n).
		Find(&rows).Error
	return rows, err
}

func (r *menuLogRepo) GetByID(ctx context.Context, id string) (*models.MenuLog, error) {
	var row models.MenuLog
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
