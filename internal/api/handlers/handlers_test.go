package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/models"
	"github.com/yoockh/nutricoach/internal/onboarding"
	"github.com/yoockh/nutricoach/internal/services"
	"github.com/yoockh/nutricoach/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type stubBot struct {
	mu  sync.Mutex
	got []services.Inbound
	err error
}

func (b *stubBot) Handle(_ context.Context, in services.Inbound) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, in)
	return b.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func postUpdate(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/telegram/webhook", h.Telegram)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookDecodesUpdates(t *testing.T) {
	cases := []struct {
		name string
		body string
		want services.Inbound
	}{
		{
			name: "text",
			body: `{"update_id":1,"message":{"message_id":5,"chat":{"id":42,"type":"private"},"text":"/start"}}`,
			want: services.Inbound{ChatID: "42", Kind: onboarding.EventText, Payload: "/start"},
		},
		{
			name: "voice",
			body: `{"update_id":2,"message":{"message_id":6,"chat":{"id":42,"type":"private"},"voice":{"file_id":"F1","duration":3}}}`,
			want: services.Inbound{ChatID: "42", Kind: onboarding.EventText, VoiceFileID: "F1"},
		},
		{
			name: "button",
			body: `{"update_id":3,"callback_query":{"id":"cb9","data":"sexo_masculino","message":{"message_id":7,"chat":{"id":-100,"type":"private"}}}}`,
			want: services.Inbound{ChatID: "-100", Kind: onboarding.EventButton, Payload: "sexo_masculino", CallbackID: "cb9"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bot := &stubBot{}
			w := postUpdate(t, NewWebhookHandler(bot, quietLogger()), tc.body)

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if len(bot.got) != 1 {
				t.Fatalf("expected 1 handled update, got %d", len(bot.got))
			}
			if bot.got[0] != tc.want {
				t.Errorf("expected %+v, got %+v", tc.want, bot.got[0])
			}
		})
	}
}

func TestWebhookAlwaysAnswersOK(t *testing.T) {
	cases := map[string]string{
		"bad json":    `{"update_id":`,
		"sticker":     `{"update_id":4,"message":{"message_id":8,"chat":{"id":42,"type":"private"},"sticker":{"file_id":"S"}}}`,
		"edited only": `{"update_id":5,"edited_message":{"message_id":9,"chat":{"id":42,"type":"private"},"text":"x"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			bot := &stubBot{}
			w := postUpdate(t, NewWebhookHandler(bot, quietLogger()), body)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if len(bot.got) != 0 {
				t.Fatalf("expected update to be ignored, got %+v", bot.got)
			}
		})
	}

	bot := &stubBot{err: utils.E(utils.CodeUnavailable, "test", "store down", nil)}
	w := postUpdate(t, NewWebhookHandler(bot, quietLogger()),
		`{"update_id":6,"message":{"message_id":10,"chat":{"id":42,"type":"private"},"text":"hola"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on handler error, got %d", w.Code)
	}
}

func TestClientInbound(t *testing.T) {
	in, ok := clientInbound("web:u1", wsClientMsg{Type: "button", Data: "goal_grasa"})
	if !ok || in.Kind != onboarding.EventButton || in.CallbackID != "web:u1" || in.Payload != "goal_grasa" {
		t.Fatalf("unexpected button inbound %+v", in)
	}
	in, ok = clientInbound("web:u1", wsClientMsg{Type: "text", Text: "30"})
	if !ok || in.Kind != onboarding.EventText || in.Payload != "30" {
		t.Fatalf("unexpected text inbound %+v", in)
	}
	if _, ok := clientInbound("web:u1", wsClientMsg{Type: "text"}); ok {
		t.Error("expected empty text to be rejected")
	}
	if _, ok := clientInbound("web:u1", wsClientMsg{Type: "audio"}); ok {
		t.Error("expected unknown type to be rejected")
	}
}

type stubProfiles struct {
	profile *models.Profile
	menus   []models.MenuLog
	err     error
	deleted string
	limit   int
}

func (s *stubProfiles) Get(context.Context, string) (*models.Profile, error) {
	return s.profile, s.err
}

func (s *stubProfiles) Delete(_ context.Context, chatID string) error {
	s.deleted = chatID
	return s.err
}

func (s *stubProfiles) Menus(_ context.Context, _ string, n int) ([]models.MenuLog, error) {
	s.limit = n
	return s.menus, s.err
}

func (s *stubProfiles) Menu(_ context.Context, id string) (*models.MenuLog, error) {
	for i := range s.menus {
		if s.menus[i].ID == id {
			return &s.menus[i], nil
		}
	}
	return nil, utils.E(utils.CodeNotFound, "ProfileService.Menu", "menu not found", utils.ErrNotFound)
}

func profileRouter(svc services.ProfileService) *gin.Engine {
	h := NewProfileHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", c.GetHeader("X-Request-Id")) })
	r.GET("/admin/profiles/:chat_id", h.Get)
	r.DELETE("/admin/profiles/:chat_id", h.Delete)
	r.GET("/admin/profiles/:chat_id/menus", h.Menus)
	r.GET("/admin/menus/:id", h.Menu)
	return r
}

func TestProfileGet(t *testing.T) {
	svc := &stubProfiles{profile: &models.Profile{ChatID: "42", StepCursor: 3, Sex: "masculino"}}
	w := httptest.NewRecorder()
	profileRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/profiles/42", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Profile  models.Profile `json:"profile"`
		Complete bool           `json:"complete"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Profile.ChatID != "42" || body.Complete {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestProfileGetNotFound(t *testing.T) {
	svc := &stubProfiles{err: utils.E(utils.CodeNotFound, "ProfileService.Get", "profile not found", utils.ErrNotFound)}
	w := httptest.NewRecorder()
	profileRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/profiles/7", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var e APIError
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Code != utils.CodeNotFound || e.Message != "profile not found" {
		t.Errorf("unexpected error body %+v", e)
	}
}

func TestProfileRejectsMalformedChatID(t *testing.T) {
	svc := &stubProfiles{}
	r := profileRouter(svc)

	for _, id := range []string{"abc", "web:", "12a"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/admin/profiles/"+id, nil)
		req.Header.Set("X-Request-Id", "req-"+id)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", id, w.Code)
		}
		var e APIError
		_ = json.Unmarshal(w.Body.Bytes(), &e)
		if e.Code != utils.CodeInvalidArgument || e.RequestID != "req-"+id {
			t.Errorf("%s: unexpected error body %+v", id, e)
		}
	}
	if svc.deleted != "" {
		t.Fatalf("service must not be called, deleted %q", svc.deleted)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/profiles/web:u1", nil))
	if w.Code != http.StatusNoContent || svc.deleted != "web:u1" {
		t.Fatalf("expected web chat deleted, got %d %q", w.Code, svc.deleted)
	}
}

func TestWebChatIDNeedsSubject(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if _, ok := webChatID(c); ok || w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a subject, got %d", w.Code)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Set("user_id", "u1")
	if id, ok := webChatID(c); !ok || id != "web:u1" {
		t.Fatalf("unexpected chat id %q", id)
	}
}

func TestProfileDelete(t *testing.T) {
	svc := &stubProfiles{}
	w := httptest.NewRecorder()
	profileRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/profiles/42", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if svc.deleted != "42" {
		t.Errorf("expected chat 42 deleted, got %q", svc.deleted)
	}
}

func TestProfileMenus(t *testing.T) {
	svc := &stubProfiles{menus: []models.MenuLog{{ID: "m1", ChatID: "42"}}}
	r := profileRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/profiles/42/menus?limit=3", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.limit != 3 {
		t.Errorf("expected limit 3, got %d", svc.limit)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/menus/m1", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"m1"`) {
		t.Fatalf("expected menu m1, got %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/menus/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestWriteErrorPlainError(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) { writeError(c, errors.New("boom")) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Errorf("internal error text leaked: %s", w.Body.String())
	}
}
