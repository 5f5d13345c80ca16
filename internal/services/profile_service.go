package services

import (
	"context"
	"errors"

	"github.com/yoockh/nutricoach/internal/cache"
	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/onboarding"
	pgrepo "github.com/yoockh/nutricoach/internal/repositories/postgres"
	"github.com/yoockh/nutricoach/internal/utils"
)

// ProfileService backs the admin API.
type ProfileService interface {
	Get(ctx context.Context, chatID string) (*models.Profile, error)
	Delete(ctx context.Context, chatID string) error
	// Menus lists the chat's most recent generated plans, newest first.
	Menus(ctx context.Context, chatID string, n int) ([]models.MenuLog, error)
	Menu(ctx context.Context, id string) (*models.MenuLog, error)
}

type profileService struct {
	store  onboarding.Store
	locker onboarding.Locker
	cache  cache.Cache
	coach  CoachService
	menus  pgrepo.MenuLogRepo
}

// NewProfileService builds the admin service. coach and menus may be nil.
func NewProfileService(store onboarding.Store, locker onboarding.Locker, c cache.Cache, coach CoachService, menus pgrepo.MenuLogRepo) ProfileService {
	return &profileService{store: store, locker: locker, cache: c, coach: coach, menus: menus}
}

func (s *profileService) Get(ctx context.Context, chatID string) (*models.Profile, error) {
	const op = "ProfileService.Get"

	if chatID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "chat_id is required", nil)
	}
	p, err := s.store.Load(ctx, chatID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, err
	}
	return p, nil
}

// Delete removes the profile and everything keyed by the chat.
func (s *profileService) Delete(ctx context.Context, chatID string) error {
	const op = "ProfileService.Delete"

	if chatID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "chat_id is required", nil)
	}

	unlock, err := s.locker.Lock(ctx, onboarding.LockKey(chatID))
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to acquire chat lock", err)
	}
	defer unlock()

	if err := s.store.Delete(ctx, chatID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return err
	}
	_ = s.cache.Del(ctx, coachKey(chatID), pendingKey(chatID), resetKey(chatID))
	if s.coach != nil {
		return s.coach.Forget(ctx, chatID)
	}
	return nil
}

func (s *profileService) Menus(ctx context.Context, chatID string, n int) ([]models.MenuLog, error) {
	const op = "ProfileService.Menus"

	if s.menus == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "menu history is not stored", nil)
	}
	if n <= 0 || n > 50 {
		n = 10
	}
	rows, err := s.menus.LatestByChat(ctx, chatID, n)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to list menus", err)
	}
	return rows, nil
}

func (s *profileService) Menu(ctx context.Context, id string) (*models.MenuLog, error) {
	const op = "ProfileService.Menu"

	if s.menus == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "menu history is not stored", nil)
	}
	row, err := s.menus.GetByID(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "menu not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load menu", err)
	}
	return row, nil
}
