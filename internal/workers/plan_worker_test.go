package workers

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/nutrition"
	"github.com/yoockh/nutricoach/internal/onboarding"
)

type stubPlans struct {
	plan  *models.MealPlan
	err   error
	calls int
}

func (s *stubPlans) Request(context.Context, string) (bool, error) { return true, nil }

func (s *stubPlans) Generate(_ context.Context, _ string) (*models.MealPlan, error) {
	s.calls++
	return s.plan, s.err
}

func (s *stubPlans) Targets(*models.Profile) (nutrition.Targets, error) {
	return nutrition.Targets{}, nil
}

type sent struct {
	chatID string
	prompt onboarding.Prompt
}

type recorder struct {
	mu   sync.Mutex
	sent []sent
	done chan struct{}
}

func (r *recorder) Send(_ context.Context, chatID string, p onboarding.Prompt) error {
	r.mu.Lock()
	r.sent = append(r.sent, sent{chatID: chatID, prompt: p})
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return nil
}

func (r *recorder) Acknowledge(context.Context, string, string) error { return nil }

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func onePlan() *models.MealPlan {
	return &models.MealPlan{
		Title: "Semana 1",
		Days: []models.PlanDay{{
			Day:   1,
			Kcal:  2000,
			Meals: []models.Meal{{Slot: "Desayuno", Name: "Avena", Kcal: 400}},
		}},
	}
}

func TestRunPlanJobSendsPlan(t *testing.T) {
	plans := &stubPlans{plan: onePlan()}
	rec := &recorder{}

	RunPlanJob(context.Background(), plans, rec, quiet(), time.Second, "42")

	if plans.calls != 1 {
		t.Fatalf("expected 1 Generate call, got %d", plans.calls)
	}
	if len(rec.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(rec.sent))
	}
	got := rec.sent[0]
	if got.chatID != "42" {
		t.Errorf("expected chat 42, got %q", got.chatID)
	}
	if !strings.Contains(got.prompt.Text, "Avena") {
		t.Errorf("expected day summary in message, got %q", got.prompt.Text)
	}
	if len(got.prompt.Choices) == 0 {
		t.Error("expected main menu buttons with the plan")
	}
}

func TestRunPlanJobReportsFailureOnce(t *testing.T) {
	plans := &stubPlans{err: errors.New("model down")}
	rec := &recorder{}

	RunPlanJob(context.Background(), plans, rec, quiet(), time.Second, "42")

	if len(rec.sent) != 1 {
		t.Fatalf("expected exactly 1 failure message, got %d", len(rec.sent))
	}
	if !strings.Contains(rec.sent[0].prompt.Text, "/plan") {
		t.Errorf("expected retry hint, got %q", rec.sent[0].prompt.Text)
	}
}

func TestInlineQueueRunsJob(t *testing.T) {
	plans := &stubPlans{plan: onePlan()}
	rec := &recorder{done: make(chan struct{}, 1)}
	q := &InlineQueue{Plans: plans, Dispatcher: rec, Logger: quiet()}

	if err := q.Enqueue(context.Background(), "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.sent[0].chatID != "7" {
		t.Errorf("expected chat 7, got %q", rec.sent[0].chatID)
	}
}

func TestStartRequiresDependencies(t *testing.T) {
	p := &PlanWorkerPool{}
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
