package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/nutricoach/config"
	"github.com/yoockh/nutricoach/internal/api/middleware"
	"github.com/yoockh/nutricoach/internal/api/routes"
	"github.com/yoockh/nutricoach/internal/dispatch"
	"github.com/yoockh/nutricoach/internal/logger"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer a.close()

	if err := a.startWorkers(ctx); err != nil {
		log.WithError(err).Fatal("plan workers failed to start")
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, a.routes(cfg))

	if a.bot != nil && cfg.PublicBaseURL != "" {
		url := cfg.PublicBaseURL + "/telegram/webhook"
		if err := dispatch.SetWebhook(a.bot, url, cfg.WebhookSecret); err != nil {
			log.WithError(err).Error("setWebhook failed")
		} else {
			log.WithField("url", url).Info("telegram webhook registered")
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "store": cfg.Store}).Info("nutricoach listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}
