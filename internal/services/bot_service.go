package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/cache"
	"github.com/yoockh/nutricoach/internal/dispatch"
	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/onboarding"
	"github.com/yoockh/nutricoach/internal/providers/stt"
	"github.com/yoockh/nutricoach/internal/utils"
)

const maxVoiceBytes = 10 << 20

// Inbound is one decoded user action from any channel.
type Inbound struct {
	ChatID      string
	Kind        onboarding.EventKind
	Payload     string
	CallbackID  string
	VoiceFileID string
}

// FileResolver turns a transport file id into a download URL.
type FileResolver interface {
	FileURL(fileID string) (string, error)
}

type BotService interface {
	Handle(ctx context.Context, in Inbound) error
}

type BotDeps struct {
	Machine    *onboarding.Machine
	Store      onboarding.Store
	Locker     onboarding.Locker
	Cache      cache.Cache
	Dispatcher dispatch.Dispatcher
	Coach      CoachService
	Plans      PlanService

	// voice answers, optional
	STT         stt.Provider
	Files       FileResolver
	STTLanguage string
	HTTPClient  *http.Client

	CoachTTL time.Duration
	Logger   *logrus.Logger
}

type botService struct {
	BotDeps
}

func NewBotService(d BotDeps) BotService {
	if d.CoachTTL <= 0 {
		d.CoachTTL = 30 * time.Minute
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &botService{BotDeps: d}
}

func coachKey(chatID string) string { return "coach:mode:" + chatID }

// resetKey marks an outstanding reset confirmation prompt. A confirm button
// only resets while the mark exists, and consuming it is atomic.
func resetKey(chatID string) string { return "reset:pending:" + chatID }

const resetPromptTTL = 10 * time.Minute

var slashCommands = map[string]bool{
	"start": true, "reset": true, "menu": true, "plan": true,
	"macros": true, "coach": true, "help": true,
}

// bare words that count as commands without a slash
var bareCommands = map[string]bool{"start": true, "reset": true, "menu": true}

var menuButtons = map[string]string{
	MenuPlan:   "plan",
	MenuMacros: "macros",
	MenuCoach:  "coach",
	MenuReset:  "reset",
	MenuMain:   "menu",
}

// ParseCommand recognizes "/start", "/start@bot", "Start/" and a few bare
// words.
func ParseCommand(text string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return "", false
	}
	slash := strings.HasPrefix(t, "/") || strings.HasSuffix(t, "/")
	t = strings.Trim(t, "/")
	if f := strings.Fields(t); len(f) > 0 {
		if !slash && len(f) > 1 {
			return "", false
		}
		t = f[0]
	}
	if i := strings.IndexByte(t, '@'); i >= 0 {
		t = t[:i]
	}
	if slash {
		return t, slashCommands[t]
	}
	return t, bareCommands[t]
}

func (s *botService) Handle(ctx context.Context, in Inbound) error {
	const op = "BotService.Handle"

	if in.ChatID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "chat_id is required", nil)
	}
	if in.CallbackID != "" {
		defer func() {
			if err := s.Dispatcher.Acknowledge(ctx, in.CallbackID, ""); err != nil {
				s.Logger.WithError(err).WithField("chat_id", in.ChatID).Warn("callback ack failed")
			}
		}()
	}

	if in.VoiceFileID != "" {
		text, ok := s.transcribe(ctx, in.ChatID, in.VoiceFileID)
		if !ok {
			return nil
		}
		in.Kind, in.Payload = onboarding.EventText, text
	}

	payload := strings.TrimSpace(in.Payload)
	switch in.Kind {
	case onboarding.EventText:
		if cmd, ok := ParseCommand(payload); ok {
			return s.command(ctx, in.ChatID, cmd)
		}
		if strings.HasPrefix(payload, "/") {
			s.send(ctx, in.ChatID, message(helpText))
			return nil
		}
		if s.coaching(ctx, in.ChatID) {
			return s.coach(ctx, in.ChatID, payload)
		}
	case onboarding.EventButton:
		switch payload {
		case onboarding.ResetConfirm:
			return s.confirmReset(ctx, in.ChatID)
		case onboarding.ResetCancel:
			if err := s.Cache.Del(ctx, resetKey(in.ChatID)); err != nil {
				s.Logger.WithError(err).WithField("chat_id", in.ChatID).Warn("failed to clear reset confirmation")
			}
			return s.resumeExisting(ctx, in.ChatID)
		}
		if cmd, ok := menuButtons[payload]; ok {
			return s.command(ctx, in.ChatID, cmd)
		}
	}

	return s.onboard(ctx, onboarding.Event{ChatID: in.ChatID, Kind: in.Kind, Payload: payload})
}

func (s *botService) onboard(ctx context.Context, ev onboarding.Event) error {
	log := s.Logger.WithFields(logrus.Fields{"chat_id": ev.ChatID, "op": "BotService.onboard"})

	out, _, err := s.Machine.Process(ctx, s.Store, s.Locker, ev)
	if err != nil {
		if onboarding.IsPersistence(err) {
			log.WithError(err).Error("profile write failed")
			s.send(ctx, ev.ChatID, message(retryText))
		}
		return err
	}

	if out.Restarted {
		log.WithError(onboarding.ErrUnknownStep).Warn("stored step cursor out of range, onboarding restarted")
	}
	if out.Err != nil {
		log.WithError(out.Err).Debug("answer rejected")
	}
	if out.Created {
		s.send(ctx, ev.ChatID, message(onboarding.WelcomeText))
	}

	switch {
	case out.Finished:
		s.send(ctx, ev.ChatID, MainMenu(onboarding.CompleteText))
	case out.Complete:
		s.send(ctx, ev.ChatID, MainMenu(alreadyDoneText))
	default:
		s.send(ctx, ev.ChatID, out.Prompt)
	}
	return nil
}

func (s *botService) command(ctx context.Context, chatID, cmd string) error {
	switch cmd {
	case "start", "reset":
		p, err := s.Store.Load(ctx, chatID)
		if err != nil && !errors.Is(err, utils.ErrNotFound) {
			return err
		}
		if p != nil && (p.Complete() || s.Machine.Answered(p)) {
			if err := s.Cache.SetJSON(ctx, resetKey(chatID), true, resetPromptTTL); err != nil {
				s.Logger.WithError(err).WithField("chat_id", chatID).Error("failed to record reset confirmation")
				s.send(ctx, chatID, message(retryText))
				return utils.E(utils.CodeUnavailable, "BotService.command", "failed to record reset confirmation", err)
			}
			s.send(ctx, chatID, onboarding.ResetPrompt())
			return nil
		}
		if p == nil {
			return s.onboard(ctx, onboarding.Event{ChatID: chatID, Kind: onboarding.EventResume})
		}
		s.send(ctx, chatID, message(onboarding.WelcomeText))
		return s.resume(ctx, chatID, menuText)

	case "menu":
		if err := s.Cache.Del(ctx, coachKey(chatID)); err != nil {
			s.Logger.WithError(err).WithField("chat_id", chatID).Warn("failed to clear coach mode")
		}
		return s.resume(ctx, chatID, menuText)

	case "help":
		s.send(ctx, chatID, message(helpText))
		return nil
	}

	p, ok, err := s.requireComplete(ctx, chatID)
	if !ok {
		return err
	}

	switch cmd {
	case "plan":
		queued, err := s.Plans.Request(ctx, chatID)
		if err != nil {
			s.Logger.WithError(err).WithField("chat_id", chatID).Error("plan request failed")
			s.send(ctx, chatID, message(planFailedText))
			return err
		}
		if queued {
			s.send(ctx, chatID, message(planQueuedText))
		} else {
			s.send(ctx, chatID, message(planPendingText))
		}

	case "macros":
		t, err := s.Plans.Targets(p)
		if err != nil {
			return err
		}
		s.send(ctx, chatID, MainMenu(macrosText(t)))

	case "coach":
		if err := s.Cache.SetJSON(ctx, coachKey(chatID), true, s.CoachTTL); err != nil {
			return utils.E(utils.CodeUnavailable, "BotService.command", "failed to enter coach mode", err)
		}
		s.send(ctx, chatID, message(coachIntroText))
	}
	return nil
}

// requireComplete loads the profile and, when onboarding is still running,
// points the user back at the current question.
func (s *botService) requireComplete(ctx context.Context, chatID string) (*models.Profile, bool, error) {
	p, err := s.Store.Load(ctx, chatID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, false, err
	}
	if p != nil && p.Complete() {
		return p, true, nil
	}
	s.send(ctx, chatID, message(needProfileText))
	return nil, false, s.resume(ctx, chatID, menuText)
}

// resume re-emits whatever the chat was looking at: the current question,
// or the main menu when onboarding is done.
func (s *botService) resume(ctx context.Context, chatID, menu string) error {
	out, _, err := s.Machine.Process(ctx, s.Store, s.Locker, onboarding.Event{ChatID: chatID, Kind: onboarding.EventResume})
	if err != nil {
		if onboarding.IsPersistence(err) {
			s.send(ctx, chatID, message(retryText))
		}
		return err
	}
	if out.Complete {
		s.send(ctx, chatID, MainMenu(menu))
		return nil
	}
	s.send(ctx, chatID, out.Prompt)
	return nil
}

// resumeExisting is resume for chats that may have no record yet; it never
// creates one.
func (s *botService) resumeExisting(ctx context.Context, chatID string) error {
	if _, err := s.Store.Load(ctx, chatID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			s.send(ctx, chatID, message(helpText))
			return nil
		}
		return err
	}
	return s.resume(ctx, chatID, menuText)
}

// confirmReset resets only when this chat has an outstanding reset prompt.
// Stale, unsolicited and duplicate confirmations re-emit the current prompt.
func (s *botService) confirmReset(ctx context.Context, chatID string) error {
	log := s.Logger.WithFields(logrus.Fields{"chat_id": chatID, "op": "BotService.confirmReset"})

	pending, err := s.Cache.Take(ctx, resetKey(chatID))
	if err != nil {
		log.WithError(err).Error("reset confirmation lookup failed")
		s.send(ctx, chatID, message(retryText))
		return utils.E(utils.CodeUnavailable, "BotService.confirmReset", "reset confirmation lookup failed", err)
	}
	if !pending {
		log.Debug("reset confirmation without a pending prompt ignored")
		return s.resumeExisting(ctx, chatID)
	}
	return s.reset(ctx, chatID)
}

func (s *botService) reset(ctx context.Context, chatID string) error {
	log := s.Logger.WithFields(logrus.Fields{"chat_id": chatID, "op": "BotService.reset"})

	out, _, err := s.Machine.Reset(ctx, s.Store, s.Locker, chatID)
	if err != nil {
		log.WithError(err).Error("reset failed")
		if onboarding.IsPersistence(err) {
			s.send(ctx, chatID, message(retryText))
		}
		return err
	}
	if err := s.Cache.Del(ctx, coachKey(chatID), pendingKey(chatID), resetKey(chatID)); err != nil {
		log.WithError(err).Warn("failed to clear chat cache")
	}
	if s.Coach != nil {
		if err := s.Coach.Forget(ctx, chatID); err != nil {
			log.WithError(err).Warn("failed to clear coach history")
		}
	}
	log.Info("profile reset")

	s.send(ctx, chatID, message(onboarding.WelcomeText))
	s.send(ctx, chatID, out.Prompt)
	return nil
}

func (s *botService) coaching(ctx context.Context, chatID string) bool {
	var on bool
	hit, err := s.Cache.GetJSON(ctx, coachKey(chatID), &on)
	if err != nil {
		s.Logger.WithError(err).WithField("chat_id", chatID).Warn("coach mode lookup failed")
		return false
	}
	return hit && on
}

func (s *botService) coach(ctx context.Context, chatID, text string) error {
	p, err := s.Store.Load(ctx, chatID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return err
	}
	if p == nil || !p.Complete() {
		if err := s.Cache.Del(ctx, coachKey(chatID)); err != nil {
			s.Logger.WithError(err).WithField("chat_id", chatID).Warn("failed to clear coach mode")
		}
		return s.onboard(ctx, onboarding.Event{ChatID: chatID, Kind: onboarding.EventText, Payload: text})
	}

	// keep the mode alive while the conversation goes on
	if err := s.Cache.SetJSON(ctx, coachKey(chatID), true, s.CoachTTL); err != nil {
		s.Logger.WithError(err).WithField("chat_id", chatID).Warn("failed to extend coach mode")
	}

	reply, err := s.Coach.Reply(ctx, p, text)
	if err != nil {
		s.Logger.WithError(err).WithField("chat_id", chatID).Warn("coach reply failed")
		s.send(ctx, chatID, message(coachDownText))
		return nil
	}
	s.send(ctx, chatID, onboarding.Prompt{
		Text:    reply,
		Choices: []onboarding.Choice{{Label: "⬅️ Menú", Value: MenuMain}},
	})
	return nil
}

func (s *botService) transcribe(ctx context.Context, chatID, fileID string) (string, bool) {
	log := s.Logger.WithFields(logrus.Fields{"chat_id": chatID, "op": "BotService.transcribe"})

	if s.STT == nil || s.Files == nil {
		s.send(ctx, chatID, message(voiceDisabledText))
		return "", false
	}

	audio, err := s.download(ctx, fileID)
	if err != nil {
		log.WithError(err).Warn("voice download failed")
		s.send(ctx, chatID, message(voiceFailedText))
		return "", false
	}

	text, conf, err := s.STT.Transcribe(ctx, audio, s.STTLanguage)
	if err != nil {
		log.WithError(err).Warn("stt failed")
		s.send(ctx, chatID, message(voiceFailedText))
		return "", false
	}
	log.WithField("confidence", conf).Debug("voice transcribed")
	return text, true
}

func (s *botService) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := s.Files.FileURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice download: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("voice download: empty body")
	}
	return body, nil
}

// send delivers p. Transport failures are logged and not retried.
func (s *botService) send(ctx context.Context, chatID string, p onboarding.Prompt) {
	if err := s.Dispatcher.Send(ctx, chatID, p); err != nil {
		s.Logger.WithError(err).WithField("chat_id", chatID).Warn("send failed")
	}
}
