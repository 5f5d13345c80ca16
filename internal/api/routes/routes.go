package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/nutricoach/internal/api/handlers"
	"github.com/yoockh/nutricoach/internal/api/middleware"
)

type Deps struct {
	Webhook *handlers.WebhookHandler
	Profile *handlers.ProfileHandler
	WS      *handlers.WSHandler // nil without redis

	WebhookSecret string
	JWTSecret     string
	JWTIssuer     string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.POST("/telegram/webhook", middleware.TelegramSecret(d.WebhookSecret), d.Webhook.Telegram)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWTSecret, d.JWTIssuer))

	if d.WS != nil {
		auth.GET("/ws/chat", d.WS.Chat)
	}

	admin := auth.Group("/admin", middleware.RequireAdmin())
	admin.GET("/profiles/:chat_id", d.Profile.Get)
	admin.DELETE("/profiles/:chat_id", d.Profile.Delete)
	admin.GET("/profiles/:chat_id/menus", d.Profile.Menus)
	admin.GET("/menus/:id", d.Profile.Menu)
}
