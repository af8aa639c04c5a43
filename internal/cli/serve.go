package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"study-planner/internal/app"
	"study-planner/internal/bot"
	"study-planner/internal/config"
	"study-planner/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Telegram bot when a token is set, and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			return run(cmd.Context(), a, true)
		})
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run only the Telegram bot and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.TelegramToken == "" {
			return errors.New("TELEGRAM_TOKEN is required")
		}
		return withApp(func(a *app.App) error {
			return run(cmd.Context(), a, false)
		})
	},
}

func run(ctx context.Context, a *app.App, withHTTP bool) error {
	a.Warmup(ctx)

	var telegram *bot.Bot
	if cfg.TelegramToken != "" {
		var err error
		telegram, err = bot.New(cfg.TelegramToken, bot.Deps{
			Tasks:    a.Tasks,
			Plans:    a.Plans,
			Settings: a.Settings,
			Trigger:  a.Allocator,
			Location: cfg.Location,
		})
		if err != nil {
			return err
		}
	}

	scheduler, err := a.Scheduler()
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, ctx := errgroup.WithContext(ctx)
	if withHTTP {
		server := web.NewServer(web.Deps{
			Tasks:     a.Tasks,
			Plans:     a.Plans,
			Settings:  a.Settings,
			Trigger:   a.Allocator,
			StaticDir: cfg.StaticDir,
		})
		g.Go(func() error { return server.Run(ctx, cfg.HTTPAddr) })
	}
	if telegram != nil {
		g.Go(func() error { return telegram.Start(ctx) })
	}

	config.Logger.Info("study planner started")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	config.Logger.Info("shutdown complete")
	return nil
}
