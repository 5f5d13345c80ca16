package onboarding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yoockh/nutricoach/internal/cache"
	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/repositories/memory"
	"github.com/yoockh/nutricoach/internal/utils"
)

func TestProcessCreatesOnFirstContact(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	store := memory.NewProfileRepo()

	out, p, err := m.Process(ctx, store, cache.NewKeyedMutex(), Event{ChatID: "42", Kind: EventButton, Payload: "sexo_M"})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !out.Created || p.StepCursor != 2 || p.Sex != "Masculino" {
		t.Fatalf("unexpected outcome %+v profile %+v", out, p)
	}

	stored, err := store.Load(ctx, "42")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.StepCursor != 2 || stored.Sex != "Masculino" {
		t.Fatalf("expected saved profile, got %+v", stored)
	}
	if store.Creates() != 1 {
		t.Fatalf("expected one create, got %d", store.Creates())
	}
}

func TestProcessDoesNotSaveUnchanged(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	store := memory.NewProfileRepo()
	locker := cache.NewKeyedMutex()

	if _, _, err := m.Process(ctx, store, locker, Event{ChatID: "42", Kind: EventText, Payload: "quizás"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if store.Saves() != 0 {
		t.Fatalf("rejected answer must not be saved, got %d saves", store.Saves())
	}
}

func TestProcessSaveFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	store := memory.NewProfileRepo()
	locker := cache.NewKeyedMutex()

	if _, _, err := m.Process(ctx, store, locker, Event{ChatID: "42", Kind: EventButton, Payload: "sexo_F"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	store.WithSaveError(errors.New("connection refused"))
	_, p, err := m.Process(ctx, store, locker, Event{ChatID: "42", Kind: EventText, Payload: "35"})
	if !IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if p == nil || p.StepCursor != 2 || p.Age != nil {
		t.Fatalf("expected the stored profile back, got %+v", p)
	}

	store.WithSaveError(nil)
	stored, _ := store.Load(ctx, "42")
	if stored.StepCursor != 2 || stored.Age != nil {
		t.Fatalf("failed save must not commit, got %+v", stored)
	}

	// the retry goes through exactly once
	if _, p, err = m.Process(ctx, store, locker, Event{ChatID: "42", Kind: EventText, Payload: "35"}); err != nil || p.StepCursor != 3 {
		t.Fatalf("retry failed: %v %+v", err, p)
	}
}

func TestProcessRejectsMissingChatID(t *testing.T) {
	_, _, err := NewMachine().Process(context.Background(), memory.NewProfileRepo(), cache.NewKeyedMutex(), Event{Kind: EventText, Payload: "hola"})
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func seedAt(store *memory.ProfileRepo, cursor int) {
	m := NewMachine()
	p := fresh("42")
	for i := 0; i < cursor-1; i++ {
		for _, a := range answers[i] {
			m.Apply(p, Event{ChatID: "42", Kind: EventText, Payload: a})
		}
	}
	store.Put(p)
}

func TestConcurrentTogglesAreLinearized(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	store := memory.NewProfileRepo()
	locker := cache.NewKeyedMutex()
	seedAt(store, 6)

	var wg sync.WaitGroup
	for _, o := range goalOptions {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			if _, _, err := m.Process(ctx, store, locker, Event{ChatID: "42", Kind: EventButton, Payload: "objetivo_" + tag}); err != nil {
				t.Errorf("toggle %s: %v", tag, err)
			}
		}(o.Tag)
	}
	wg.Wait()

	p, _ := store.Load(ctx, "42")
	if got := DecodeTags(p.GoalTags); len(got) != len(goalOptions) {
		t.Fatalf("expected %d tags, got %v", len(goalOptions), got.Sorted())
	}
	if p.StepCursor != 6 {
		t.Fatalf("toggles must not advance, cursor %d", p.StepCursor)
	}
}

func TestDuplicateDoneAdvancesOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	store := memory.NewProfileRepo()
	locker := cache.NewKeyedMutex()
	seedAt(store, 6)
	if _, _, err := m.Process(ctx, store, locker, Event{ChatID: "42", Kind: EventButton, Payload: "objetivo_mente"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		advanced int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, _, err := m.Process(ctx, store, locker, Event{ChatID: "42", Kind: EventButton, Payload: "objetivo_done"})
			if err != nil {
				t.Errorf("done: %v", err)
				return
			}
			if out.Changed {
				mu.Lock()
				advanced++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, _ := store.Load(ctx, "42")
	if p.StepCursor != 7 || advanced != 1 {
		t.Fatalf("expected one advance to 7, got %d advances and cursor %d", advanced, p.StepCursor)
	}
}

func TestResetClearsProfile(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()
	store := memory.NewProfileRepo()
	seedAt(store, 9)

	out, p, err := m.Reset(ctx, store, cache.NewKeyedMutex(), "42")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if p.StepCursor != 1 || p.Sex != "" || p.GoalTags != "" || p.LikedFoods != "" {
		t.Fatalf("expected cleared profile, got %+v", p)
	}
	if out.Prompt.Field != FieldSex {
		t.Fatalf("expected sex prompt, got %s", out.Prompt.Field)
	}

	// reset of an unknown chat still starts onboarding
	if _, p, err = m.Reset(ctx, store, cache.NewKeyedMutex(), "7"); err != nil || p.StepCursor != 1 {
		t.Fatalf("reset of new chat: %v %+v", err, p)
	}
}

func TestUpdateWritesDerivedFields(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProfileRepo()
	seedAt(store, 16)

	p, err := Update(ctx, store, cache.NewKeyedMutex(), "42", func(p *models.Profile) error {
		kcal := 2300
		p.TargetCalories = &kcal
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	stored, _ := store.Load(ctx, "42")
	if stored.TargetCalories == nil || *stored.TargetCalories != 2300 || p.StepCursor != 0 {
		t.Fatalf("unexpected stored profile %+v", stored)
	}

	if _, err := Update(ctx, store, cache.NewKeyedMutex(), "missing", func(*models.Profile) error { return nil }); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
