package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/cache"
	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/nutrition"
	"github.com/yoockh/nutricoach/internal/onboarding"
	"github.com/yoockh/nutricoach/internal/providers/llm"
	pgrepo "github.com/yoockh/nutricoach/internal/repositories/postgres"
	"github.com/yoockh/nutricoach/internal/storage"
	"github.com/yoockh/nutricoach/internal/utils"
	"gorm.io/datatypes"
)

const (
	planDays       = 7
	planPendingTTL = 10 * time.Minute
)

var ErrProfileIncomplete = errors.New("profile is not complete")

// PlanQueue hands a generation job to the workers.
type PlanQueue interface {
	Enqueue(ctx context.Context, chatID string) error
}

type PlanService interface {
	// Request queues a plan for chatID. It reports false when one is already
	// being generated.
	Request(ctx context.Context, chatID string) (bool, error)
	// Generate builds, stores and returns a plan. Workers call it.
	Generate(ctx context.Context, chatID string) (*models.MealPlan, error)
	Targets(p *models.Profile) (nutrition.Targets, error)
}

type PlanDeps struct {
	Store    onboarding.Store
	Locker   onboarding.Locker
	Cache    cache.Cache
	Queue    PlanQueue
	LLM      llm.Provider
	MenuLogs pgrepo.MenuLogRepo // optional
	Archive  storage.Uploader   // optional
	Logger   *logrus.Logger
}

type planService struct {
	PlanDeps
}

func NewPlanService(d PlanDeps) PlanService {
	return &planService{PlanDeps: d}
}

func pendingKey(chatID string) string { return "plan:pending:" + chatID }

func (s *planService) Request(ctx context.Context, chatID string) (bool, error) {
	const op = "PlanService.Request"

	p, err := s.Store.Load(ctx, chatID)
	if err != nil {
		return false, err
	}
	if !p.Complete() {
		return false, utils.E(utils.CodeConflict, op, "profile is not complete", ErrProfileIncomplete)
	}

	ok, err := s.Cache.SetNX(ctx, pendingKey(chatID), time.Now().UTC(), planPendingTTL)
	if err != nil {
		return false, utils.E(utils.CodeUnavailable, op, "failed to mark plan as pending", err)
	}
	if !ok {
		return false, nil
	}
	if err := s.Queue.Enqueue(ctx, chatID); err != nil {
		_ = s.Cache.Del(ctx, pendingKey(chatID))
		return false, utils.E(utils.CodeUnavailable, op, "failed to enqueue plan", err)
	}
	return true, nil
}

func (s *planService) Targets(p *models.Profile) (nutrition.Targets, error) {
	const op = "PlanService.Targets"

	if p == nil || p.Age == nil || p.HeightCM == nil || p.WeightKG == nil {
		return nutrition.Targets{}, utils.E(utils.CodeConflict, op, "profile is missing body data", ErrProfileIncomplete)
	}
	t, err := nutrition.Compute(nutrition.Input{
		Sex:      p.Sex,
		Age:      *p.Age,
		HeightCM: *p.HeightCM,
		WeightKG: *p.WeightKG,
		Activity: p.ActivityLevel,
		Goals:    onboarding.DecodeTags(p.GoalTags).Sorted(),
	})
	if err != nil {
		return nutrition.Targets{}, utils.E(utils.CodeInvalidArgument, op, "profile values out of range", err)
	}
	return t, nil
}

// planParams is what the model receives and what the menu log keeps.
type planParams struct {
	Days      int               `json:"days"`
	Week      int               `json:"week"`
	Targets   nutrition.Targets `json:"targets"`
	Profile   string            `json:"profile"`
	Diets     []string          `json:"diet_styles"`
	Equipment []string          `json:"equipment"`
	Cooking   int               `json:"max_cooking_minutes,omitempty"`
	Weeks     int               `json:"plan_duration_weeks,omitempty"`
}

func (s *planService) Generate(ctx context.Context, chatID string) (*models.MealPlan, error) {
	const op = "PlanService.Generate"
	defer func() { _ = s.Cache.Del(context.WithoutCancel(ctx), pendingKey(chatID)) }()

	log := s.Logger.WithFields(logrus.Fields{"chat_id": chatID, "op": op})

	p, err := s.Store.Load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !p.Complete() {
		return nil, utils.E(utils.CodeConflict, op, "profile is not complete", ErrProfileIncomplete)
	}
	if s.LLM == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "no language model configured", nil)
	}

	targets, err := s.Targets(p)
	if err != nil {
		return nil, err
	}

	params := planParams{
		Days:      planDays,
		Week:      1,
		Targets:   targets,
		Profile:   profileSummary(p),
		Diets:     onboarding.DecodeTags(p.DietStyleTags).Sorted(),
		Equipment: onboarding.DecodeTags(p.EquipmentTags).Sorted(),
	}
	if p.CookingTimeMinutes != nil {
		params.Cooking = *p.CookingTimeMinutes
	}
	if p.PlanDurationWeeks != nil {
		params.Weeks = *p.PlanDurationWeeks
	}
	paramsJSON, _ := json.Marshal(params)

	raw, err := s.LLM.Generate(ctx, llm.Request{
		System:      planSystemPrompt,
		Prompt:      planPrompt(paramsJSON),
		JSON:        true,
		Temperature: 0.4,
	})
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "language model call failed", err)
	}

	plan, planJSON, err := ParsePlan(raw)
	if err != nil {
		log.WithError(err).Warn("model returned an unusable plan")
		return nil, utils.E(utils.CodeInternal, op, "invalid meal plan", err)
	}

	macros, _ := json.Marshal(targets)
	// the model call runs unlocked; a reset in the meantime discards the plan
	_, err = onboarding.Update(ctx, s.Store, s.Locker, chatID, func(cur *models.Profile) error {
		if !cur.Complete() {
			return utils.E(utils.CodeConflict, op, "profile changed during generation", ErrProfileIncomplete)
		}
		kcal := targets.Calories
		cur.TargetCalories = &kcal
		cur.MacroTargets = datatypes.JSON(macros)
		cur.ActiveMenu = datatypes.JSON(planJSON)
		cur.CurrentWeek = 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, log, chatID, paramsJSON, planJSON)
	return plan, nil
}

// record writes the menu log and archive copy. Both are best effort: the plan
// is already on the profile.
func (s *planService) record(ctx context.Context, log *logrus.Entry, chatID string, params, plan []byte) {
	row := &models.MenuLog{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Params:    datatypes.JSON(params),
		MenuJSON:  datatypes.JSON(plan),
		CreatedAt: time.Now().UTC(),
	}

	if s.Archive != nil {
		name := storage.PlanObjectName(chatID, row.ID)
		path, err := s.Archive.Upload(ctx, name, storage.PlanContentType, bytes.NewReader(plan))
		if err != nil {
			log.WithError(err).Warn("plan archive upload failed")
		}
		row.ArchivePath = path
	}
	if s.MenuLogs != nil {
		if err := s.MenuLogs.Insert(ctx, row); err != nil {
			log.WithError(err).Error("failed to insert menu log")
		}
	}
}

func planPrompt(params []byte) string {
	return "Genera un plan de comidas con estos parámetros:\n" + string(params) + "\n\n" +
		`Devuelve exactamente este formato: {"title": string, "days": [{"day": 1, "kcal": number, ` +
		`"meals": [{"slot": "desayuno|comida|cena|snack", "name": string, "description": string, ` +
		`"ingredients": [string], "kcal": number, "protein_g": number, "fat_g": number, "carbs_g": number}]}], "notes": string}. ` +
		"Incluye un elemento en days por cada día pedido."
}

// ParsePlan decodes and validates a model response. Code fences and text
// around the JSON object are tolerated. The returned bytes are the
// re-encoded plan.
func ParsePlan(raw string) (*models.MealPlan, []byte, error) {
	s := strings.TrimSpace(raw)
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, nil, errors.New("no JSON object in response")
	}

	var plan models.MealPlan
	if err := json.Unmarshal([]byte(s[start:end+1]), &plan); err != nil {
		return nil, nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}
	for i := range plan.Days {
		if plan.Days[i].Day == 0 {
			plan.Days[i].Day = i + 1
		}
	}
	b, err := json.Marshal(plan)
	if err != nil {
		return nil, nil, err
	}
	return &plan, b, nil
}
