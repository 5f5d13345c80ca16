package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yoockh/nutricoach/internal/onboarding"
)

type recordingDispatcher struct {
	sent  []string
	acked []string
}

func (r *recordingDispatcher) Send(_ context.Context, chatID string, _ onboarding.Prompt) error {
	r.sent = append(r.sent, chatID)
	return nil
}

func (r *recordingDispatcher) Acknowledge(_ context.Context, callbackID, _ string) error {
	r.acked = append(r.acked, callbackID)
	return nil
}

func TestMuxRoutesByPrefix(t *testing.T) {
	tg, web := &recordingDispatcher{}, &recordingDispatcher{}
	mux := NewMux(tg).Handle(WebPrefix, web)

	ctx := context.Background()
	_ = mux.Send(ctx, "12345", onboarding.Prompt{Text: "hola"})
	_ = mux.Send(ctx, "web:abc", onboarding.Prompt{Text: "hola"})
	_ = mux.Acknowledge(ctx, "cb-1", "")

	if len(tg.sent) != 1 || tg.sent[0] != "12345" || len(tg.acked) != 1 {
		t.Fatalf("unexpected telegram calls %+v", tg)
	}
	if len(web.sent) != 1 || web.sent[0] != "web:abc" {
		t.Fatalf("unexpected web calls %+v", web)
	}
}

func TestTextPutsWarningFirst(t *testing.T) {
	got := Text(onboarding.Prompt{Text: "¿Qué edad tienes?", Warning: "Número no válido."})
	if !strings.HasPrefix(got, "⚠️ Número no válido.") || !strings.HasSuffix(got, "¿Qué edad tienes?") {
		t.Fatalf("unexpected text %q", got)
	}
	if Text(onboarding.Prompt{Text: "hola"}) != "hola" {
		t.Fatalf("expected plain text without warning")
	}
}

func TestKeyboardLayout(t *testing.T) {
	choices := []onboarding.Choice{
		{Label: "Airfryer", Value: "equip_airfryer", Selected: true},
		{Label: "Horno", Value: "equip_horno"},
		{Label: "Micro", Value: "equip_micro"},
		{Label: "Continuar ✅", Value: "equip_done"},
	}
	kb := Keyboard(choices)
	if kb == nil || len(kb.InlineKeyboard) != 3 {
		t.Fatalf("expected 3 rows, got %+v", kb)
	}
	if kb.InlineKeyboard[0][0].Text != "✅ Airfryer" {
		t.Fatalf("expected selected mark, got %q", kb.InlineKeyboard[0][0].Text)
	}
	last := kb.InlineKeyboard[2]
	if len(last) != 1 || *last[0].CallbackData != "equip_done" {
		t.Fatalf("expected done button alone on the last row, got %+v", last)
	}
	if Keyboard(nil) != nil {
		t.Fatalf("expected no keyboard without choices")
	}
}

func newTestBot(t *testing.T, handle func(method string, r *http.Request) string) *tgbotapi.BotAPI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		w.Header().Set("Content-Type", "application/json")
		if method == "getMe" {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"NutriCoach","username":"nutricoach_bot"}}`))
			return
		}
		_, _ = w.Write([]byte(handle(method, r)))
	}))
	t.Cleanup(srv.Close)

	bot, err := tgbotapi.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return bot
}

func TestTelegramSendRendersKeyboard(t *testing.T) {
	var (
		mu     sync.Mutex
		params = map[string]string{}
	)
	bot := newTestBot(t, func(method string, r *http.Request) string {
		mu.Lock()
		defer mu.Unlock()
		_ = r.ParseForm()
		params["method"] = method
		params["chat_id"] = r.FormValue("chat_id")
		params["text"] = r.FormValue("text")
		params["reply_markup"] = r.FormValue("reply_markup")
		return `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`
	})

	p := onboarding.Prompt{
		Field: onboarding.FieldSex,
		Text:  "¿Cuál es tu sexo?",
		Choices: []onboarding.Choice{
			{Label: "Masculino", Value: "sexo_M"},
			{Label: "Femenino", Value: "sexo_F"},
		},
	}
	if err := NewTelegram(bot).Send(context.Background(), "42", p); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if params["method"] != "sendMessage" || params["chat_id"] != "42" || params["text"] != p.Text {
		t.Fatalf("unexpected request %+v", params)
	}
	var markup tgbotapi.InlineKeyboardMarkup
	if err := json.Unmarshal([]byte(params["reply_markup"]), &markup); err != nil {
		t.Fatalf("reply_markup: %v", err)
	}
	if len(markup.InlineKeyboard) != 1 || *markup.InlineKeyboard[0][1].CallbackData != "sexo_F" {
		t.Fatalf("unexpected keyboard %+v", markup)
	}
}

func TestTelegramSendRejectsNonNumericChat(t *testing.T) {
	bot := newTestBot(t, func(string, *http.Request) string { return `{"ok":true,"result":true}` })
	if err := NewTelegram(bot).Send(context.Background(), "web:abc", onboarding.Prompt{Text: "x"}); err == nil {
		t.Fatalf("expected error for non numeric chat id")
	}
}
