// Command botctl is the operator CLI: Telegram webhook management and
// profile inspection against the configured stores.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yoockh/nutricoach/config"
	"github.com/yoockh/nutricoach/internal/cache"
	"github.com/yoockh/nutricoach/internal/dispatch"
	"github.com/yoockh/nutricoach/internal/logger"
	"github.com/yoockh/nutricoach/internal/onboarding"
	mongorepo "github.com/yoockh/nutricoach/internal/repositories/mongo"
	pgrepo "github.com/yoockh/nutricoach/internal/repositories/postgres"
	"github.com/yoockh/nutricoach/internal/services"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "botctl",
		Short:        "NutriCoach operator tools",
		SilenceUsage: true,
	}
	cmd.AddCommand(newWebhookCmd())
	cmd.AddCommand(newProfileCmd())
	return cmd
}

func telegramBot() (*tgbotapi.BotAPI, config.Settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}
	if cfg.TelegramToken == "" {
		return nil, cfg, errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	return bot, cfg, err
}

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "webhook", Short: "Manage the Telegram webhook"}

	set := &cobra.Command{
		Use:   "set [url]",
		Short: "Register the webhook (defaults to PUBLIC_BASE_URL/telegram/webhook)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, cfg, err := telegramBot()
			if err != nil {
				return err
			}
			url := cfg.PublicBaseURL + "/telegram/webhook"
			if len(args) == 1 {
				url = args[0]
			} else if cfg.PublicBaseURL == "" {
				return errors.New("pass a url or set PUBLIC_BASE_URL")
			}
			if err := dispatch.SetWebhook(bot, url, cfg.WebhookSecret); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "webhook set:", url)
			return nil
		},
	}

	var dropPending bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bot, _, err := telegramBot()
			if err != nil {
				return err
			}
			if err := dispatch.DeleteWebhook(bot, dropPending); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "webhook deleted")
			return nil
		},
	}
	del.Flags().BoolVar(&dropPending, "drop-pending", false, "Discard updates Telegram is still holding")

	info := &cobra.Command{
		Use:   "info",
		Short: "Show the webhook Telegram has on file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bot, _, err := telegramBot()
			if err != nil {
				return err
			}
			wi, err := bot.GetWebhookInfo()
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"url":                  wi.URL,
				"pending_update_count": wi.PendingUpdateCount,
				"last_error_message":   wi.LastErrorMessage,
				"max_connections":      wi.MaxConnections,
			})
		},
	}

	cmd.AddCommand(set, del, info)
	return cmd
}

// profileService connects to Postgres, plus Redis and Mongo when they are
// configured, so a reset takes the same lock the server does.
func profileService() (services.ProfileService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := config.InitPostgres(); err != nil {
		return nil, nil, err
	}
	log := logger.New()
	store := pgrepo.NewProfileRepo(config.PostgresDB)
	cleanup := []func(){}

	var (
		locker onboarding.Locker = cache.NewKeyedMutex()
		kv     cache.Cache       = cache.NewMemoryCache()
	)
	if config.RedisConfigured() {
		if err := config.InitRedis(); err != nil {
			return nil, nil, err
		}
		locker = cache.NewRedisLocker(config.RedisClient, cfg.LockTTL)
		kv = cache.NewRedisCache(config.RedisClient)
		cleanup = append(cleanup, func() { _ = config.RedisClient.Close() })
	}

	var coach services.CoachService
	if config.MongoConfigured() {
		if err := config.InitMongo(); err != nil {
			return nil, nil, err
		}
		history := mongorepo.NewCoachMessageRepo(config.MongoClient.Database(cfg.MongoDB), 0)
		coach = services.NewCoachService(nil, history, cfg.CoachHistory, log)
		cleanup = append(cleanup, func() { _ = config.MongoClient.Disconnect(context.Background()) })
	}

	done := func() {
		for _, f := range cleanup {
			f()
		}
	}
	return services.NewProfileService(store, locker, kv, coach, pgrepo.NewMenuLogRepo(config.PostgresDB)), done, nil
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "profile", Short: "Inspect or reset a chat's profile"}

	show := &cobra.Command{
		Use:   "show <chat_id>",
		Short: "Print the stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := profileService()
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			p, err := svc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}

	reset := &cobra.Command{
		Use:   "reset <chat_id>",
		Short: "Delete the profile and coach history; the next message starts onboarding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := profileService()
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
			defer cancel()
			if err := svc.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "profile deleted:", args[0])
			return nil
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
