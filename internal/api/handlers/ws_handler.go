package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nutricoach/internal/dispatch"
	"github.com/yoockh/nutricoach/internal/onboarding"
	"github.com/yoockh/nutricoach/internal/services"
)

// WSHandler is the browser chat channel. A client talks to the same bot as
// Telegram users under the chat id "web:<user id>".
type WSHandler struct {
	bot      services.BotService
	redis    *redis.Client
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(bot services.BotService, rdb *redis.Client, log *logrus.Logger, allowedOrigin string) *WSHandler {
	return &WSHandler{
		bot:   bot,
		redis: rdb,
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigin == "" || r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

type wsClientMsg struct {
	Type string `json:"type"` // text|button|resume
	Text string `json:"text"`
	Data string `json:"data"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// clientInbound maps a browser message to the bot's input.
func clientInbound(chatID string, msg wsClientMsg) (services.Inbound, bool) {
	switch msg.Type {
	case "text":
		if msg.Text == "" {
			return services.Inbound{}, false
		}
		return services.Inbound{ChatID: chatID, Kind: onboarding.EventText, Payload: msg.Text}, true
	case "button":
		if msg.Data == "" {
			return services.Inbound{}, false
		}
		return services.Inbound{ChatID: chatID, Kind: onboarding.EventButton, Payload: msg.Data, CallbackID: chatID}, true
	case "resume":
		return services.Inbound{ChatID: chatID, Kind: onboarding.EventResume}, true
	default:
		return services.Inbound{}, false
	}
}

// GET /ws/chat
func (h *WSHandler) Chat(c *gin.Context) {
	chatID, ok := webChatID(c)
	if !ok {
		return
	}
	log := h.log.WithField("chat_id", chatID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.redis.Subscribe(ctx, dispatch.OutChannel(chatID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.WithError(err).Warn("subscribe failed")
		return
	}

	// reader: WS -> bot
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
				continue
			}
			in, ok := clientInbound(chatID, msg)
			if !ok {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
				continue
			}
			if err := h.bot.Handle(ctx, in); err != nil {
				log.WithError(err).Error("web message handling failed")
			}
		}
	}()

	// writer: Redis Pub/Sub -> WS
	msgs := pubsub.Channel()
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			wc.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			wc.mu.Unlock()
			if err != nil {
				return
			}
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
