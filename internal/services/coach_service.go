package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/providers/llm"
	mongorepo "github.com/yoockh/nutricoach/internal/repositories/mongo"
	"github.com/yoockh/nutricoach/internal/utils"
)

type CoachService interface {
	// Reply answers one user message with the profile and recent history as
	// context. Both turns are stored.
	Reply(ctx context.Context, p *models.Profile, text string) (string, error)
	Forget(ctx context.Context, chatID string) error
}

type coachService struct {
	llm     llm.Provider
	history mongorepo.CoachMessageRepository
	limit   int64
	log     *logrus.Logger
}

func NewCoachService(provider llm.Provider, history mongorepo.CoachMessageRepository, limit int, log *logrus.Logger) CoachService {
	if limit <= 0 {
		limit = 10
	}
	return &coachService{llm: provider, history: history, limit: int64(limit), log: log}
}

func (s *coachService) Reply(ctx context.Context, p *models.Profile, text string) (string, error) {
	const op = "CoachService.Reply"

	text = strings.TrimSpace(text)
	if p == nil || text == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "profile and text are required", nil)
	}
	if s.llm == nil {
		return "", utils.E(utils.CodeUnavailable, op, "no language model configured", nil)
	}

	past, err := s.history.Latest(ctx, p.ChatID, s.limit)
	if err != nil {
		s.log.WithError(err).WithField("chat_id", p.ChatID).Warn("coach history unavailable")
		past = nil
	}
	turns := make([]llm.Turn, 0, len(past))
	for _, m := range past {
		turns = append(turns, llm.Turn{Role: m.Role, Text: m.Content})
	}

	reply, err := s.llm.Generate(ctx, llm.Request{
		System:      coachSystemPrompt + "\n\n" + profileSummary(p),
		History:     turns,
		Prompt:      text,
		Temperature: 0.7,
	})
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "language model call failed", err)
	}

	for _, m := range []*models.CoachMessage{
		{ChatID: p.ChatID, Role: models.RoleUser, Content: text},
		{ChatID: p.ChatID, Role: models.RoleAssistant, Content: reply},
	} {
		if err := s.history.Insert(ctx, m); err != nil {
			s.log.WithError(err).WithField("chat_id", p.ChatID).Warn("failed to store coach message")
		}
	}
	return reply, nil
}

func (s *coachService) Forget(ctx context.Context, chatID string) error {
	if err := s.history.DeleteByChat(ctx, chatID); err != nil {
		return utils.E(utils.CodeUnavailable, "CoachService.Forget", "failed to delete coach history", err)
	}
	return nil
}
