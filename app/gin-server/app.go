package main

import (
	"context"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/nutricoach/config"
	"github.com/yoockh/nutricoach/internal/api/handlers"
	"github.com/yoockh/nutricoach/internal/api/routes"
	"github.com/yoockh/nutricoach/internal/cache"
	"github.com/yoockh/nutricoach/internal/dispatch"
	"github.com/yoockh/nutricoach/internal/onboarding"
	"github.com/yoockh/nutricoach/internal/providers/llm"
	"github.com/yoockh/nutricoach/internal/providers/stt"
	"github.com/yoockh/nutricoach/internal/repositories/memory"
	mongorepo "github.com/yoockh/nutricoach/internal/repositories/mongo"
	pgrepo "github.com/yoockh/nutricoach/internal/repositories/postgres"
	"github.com/yoockh/nutricoach/internal/services"
	"github.com/yoockh/nutricoach/internal/storage"
	"github.com/yoockh/nutricoach/internal/workers"
)

type app struct {
	log *logrus.Logger
	rdb *redis.Client
	bot *tgbotapi.BotAPI

	botSvc     services.BotService
	profileSvc services.ProfileService
	pool       *workers.PlanWorkerPool

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
}

// build wires the process. STORE=postgres needs Postgres and Redis; Mongo,
// Vertex AI, Speech-to-Text, GCS and Telegram are each optional.
func build(ctx context.Context, cfg config.Settings, log *logrus.Logger) (*app, error) {
	a := &app{log: log}

	var (
		store    onboarding.Store
		locker   onboarding.Locker
		kv       cache.Cache
		history  mongorepo.CoachMessageRepository
		menuLogs pgrepo.MenuLogRepo
	)

	if cfg.Store == config.StorePostgres {
		if err := config.InitPostgres(); err != nil {
			return nil, err
		}
		if err := config.MigratePostgres(); err != nil {
			return nil, err
		}
		log.Info("postgres connected")

		if err := config.InitRedis(); err != nil {
			return nil, err
		}
		a.rdb = config.RedisClient
		a.closers = append(a.closers, a.rdb.Close)
		log.Info("redis connected")

		store = pgrepo.NewProfileRepo(config.PostgresDB)
		menuLogs = pgrepo.NewMenuLogRepo(config.PostgresDB)
		locker = cache.NewRedisLocker(a.rdb, cfg.LockTTL)
		kv = cache.NewRedisCache(a.rdb)
	} else {
		log.Warn("STORE=memory: profiles are lost on restart")
		store = memory.NewProfileRepo()
		locker = cache.NewKeyedMutex()
		kv = cache.NewMemoryCache()
	}

	if config.MongoConfigured() {
		if err := config.InitMongo(); err != nil {
			return nil, err
		}
		if err := config.EnsureMongoIndexes(cfg.MongoDB); err != nil {
			log.WithError(err).Warn("mongo index creation failed")
		}
		a.closers = append(a.closers, func() error { return config.MongoClient.Disconnect(context.Background()) })
		history = mongorepo.NewCoachMessageRepo(config.MongoClient.Database(cfg.MongoDB), 0)
		log.Info("mongo connected")
	} else {
		history = memory.NewCoachMessageRepo()
	}

	var model llm.Provider
	if cfg.VertexProject != "" {
		v, err := llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, v.Close)
		model = v
	} else {
		log.Warn("VERTEX_PROJECT not set: coach and plans are disabled")
	}

	var speech stt.Provider
	var archive storage.Uploader
	if cfg.VertexProject != "" {
		if s, err := stt.NewGoogleSpeech(ctx); err != nil {
			log.WithError(err).Warn("speech-to-text unavailable")
		} else {
			a.closers = append(a.closers, s.Close)
			speech = s
		}
	}
	if cfg.GCSBucket != "" {
		u, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, u.Close)
		archive = u
	}

	var def dispatch.Dispatcher = dispatch.LogDispatcher{Logger: log}
	var files services.FileResolver
	if cfg.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			return nil, err
		}
		a.bot = bot
		tg := dispatch.NewTelegram(bot)
		def, files = tg, tg
		log.WithField("bot", bot.Self.UserName).Info("telegram connected")
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN not set: replies go to the log")
	}
	mux := dispatch.NewMux(def)
	if a.rdb != nil {
		mux.Handle(dispatch.WebPrefix, dispatch.NewPubSub(a.rdb))
	}

	var queue services.PlanQueue
	inline := &workers.InlineQueue{Dispatcher: mux, Logger: log}
	if a.rdb != nil {
		a.pool = &workers.PlanWorkerPool{
			Redis:          a.rdb,
			Dispatcher:     mux,
			NumWorkers:     cfg.PlanWorkers,
			Logger:         log,
			ConsumerPrefix: hostname(),
		}
		queue = a.pool
	} else {
		queue = inline
	}

	coach := services.NewCoachService(model, history, cfg.CoachHistory, log)
	plans := services.NewPlanService(services.PlanDeps{
		Store:    store,
		Locker:   locker,
		Cache:    kv,
		Queue:    queue,
		LLM:      model,
		MenuLogs: menuLogs,
		Archive:  archive,
		Logger:   log,
	})
	inline.Plans = plans
	if a.pool != nil {
		a.pool.Plans = plans
	}

	a.botSvc = services.NewBotService(services.BotDeps{
		Machine:     onboarding.NewMachine(),
		Store:       store,
		Locker:      locker,
		Cache:       kv,
		Dispatcher:  mux,
		Coach:       coach,
		Plans:       plans,
		STT:         speech,
		Files:       files,
		STTLanguage: cfg.STTLanguage,
		CoachTTL:    cfg.CoachModeTTL,
		Logger:      log,
	})
	a.profileSvc = services.NewProfileService(store, locker, kv, coach, menuLogs)
	return a, nil
}

func (a *app) startWorkers(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Start(ctx)
}

func (a *app) routes(cfg config.Settings) routes.Deps {
	d := routes.Deps{
		Webhook:       handlers.NewWebhookHandler(a.botSvc, a.log),
		Profile:       handlers.NewProfileHandler(a.profileSvc),
		WebhookSecret: cfg.WebhookSecret,
		JWTSecret:     cfg.JWTSecret,
		JWTIssuer:     cfg.JWTIssuer,
	}
	if a.rdb != nil {
		d.WS = handlers.NewWSHandler(a.botSvc, a.rdb, a.log, cfg.WSOrigin)
	}
	return d
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "nutricoach"
	}
	return h
}
