package onboarding

import (
	"context"
	"errors"

	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/utils"
)

// Store is the profile persistence the machine needs. Load returns
// utils.ErrNotFound when the chat has no record. Create is idempotent per
// chat id. Save and Delete fail with an UNAVAILABLE AppError when storage
// does.
type Store interface {
	Load(ctx context.Context, chatID string) (*models.Profile, error)
	Create(ctx context.Context, chatID string) (*models.Profile, error)
	Save(ctx context.Context, p *models.Profile) error
	Delete(ctx context.Context, chatID string) error
}

// Locker serializes work on one key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LockKey is the critical-section key for one chat.
func LockKey(chatID string) string { return "onboarding:" + chatID }

// Process handles one event for its chat: lock, load or create, decide, save
// when something changed. The returned profile is the stored state after the
// event. A failed save leaves the stored record untouched and is returned as
// is.
func (m *Machine) Process(ctx context.Context, store Store, locker Locker, ev Event) (Outcome, *models.Profile, error) {
	const op = "Onboarding.Process"

	if ev.ChatID == "" {
		return Outcome{}, nil, utils.E(utils.CodeInvalidArgument, op, "chat_id is required", nil)
	}

	unlock, err := locker.Lock(ctx, LockKey(ev.ChatID))
	if err != nil {
		return Outcome{}, nil, utils.E(utils.CodeUnavailable, op, "failed to acquire chat lock", err)
	}
	defer unlock()

	stored, created, err := loadOrCreate(ctx, store, ev.ChatID)
	if err != nil {
		return Outcome{}, nil, err
	}

	p := stored.Clone()
	out := m.Apply(p, ev)
	out.Created = created

	if !out.Changed {
		return out, stored, nil
	}
	if err := store.Save(ctx, p); err != nil {
		return Outcome{}, stored, err
	}
	return out, p, nil
}

// Reset wipes the chat's record and starts onboarding again. Callers only
// reach it after the user confirmed.
func (m *Machine) Reset(ctx context.Context, store Store, locker Locker, chatID string) (Outcome, *models.Profile, error) {
	const op = "Onboarding.Reset"

	if chatID == "" {
		return Outcome{}, nil, utils.E(utils.CodeInvalidArgument, op, "chat_id is required", nil)
	}

	unlock, err := locker.Lock(ctx, LockKey(chatID))
	if err != nil {
		return Outcome{}, nil, utils.E(utils.CodeUnavailable, op, "failed to acquire chat lock", err)
	}
	defer unlock()

	if err := store.Delete(ctx, chatID); err != nil && !errors.Is(err, utils.ErrNotFound) {
		return Outcome{}, nil, err
	}
	p, err := store.Create(ctx, chatID)
	if err != nil {
		return Outcome{}, nil, err
	}
	return Outcome{Prompt: stepPrompt(p, &m.steps[0], ""), Created: true}, p, nil
}

// Update runs fn on the chat's stored profile inside the same critical
// section Process uses, and saves the result. It is how code outside the
// questionnaire (plan generation) writes derived fields.
func Update(ctx context.Context, store Store, locker Locker, chatID string, fn func(p *models.Profile) error) (*models.Profile, error) {
	const op = "Onboarding.Update"

	unlock, err := locker.Lock(ctx, LockKey(chatID))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to acquire chat lock", err)
	}
	defer unlock()

	stored, err := store.Load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	p := stored.Clone()
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func loadOrCreate(ctx context.Context, store Store, chatID string) (*models.Profile, bool, error) {
	p, err := store.Load(ctx, chatID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return nil, false, err
	}
	p, err = store.Create(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}
