package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"card_pricer/internal/application"
	"card_pricer/internal/config"
	"card_pricer/pkg/contextx"
	"card_pricer/pkg/logx"
)

type commandContext struct {
	cfg config.Config
	log *slog.Logger
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "card-pricer",
		Short:         "Fair-value estimation for trading cards from sold listings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
				return fmt.Errorf("LOG_LEVEL: %w", err)
			}

			cc.cfg = cfg
			cc.log = logx.NewLogger(os.Stderr, level, cfg.App.LogNoColor).
				With(slog.String("app", cfg.App.Name), slog.String("version", cfg.App.Version))
			slog.SetDefault(cc.log)

			cmd.SetContext(contextx.WithLogger(cmd.Context(), cc.log))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newScrapeCommand(cc))
	rootCmd.AddCommand(newWorkerCommand(cc))
	rootCmd.AddCommand(newScheduleCommand(cc))
	rootCmd.AddCommand(newEnqueueCommand(cc))

	return rootCmd
}

// withApp собирает приложение на время fn и освобождает браузеры и
// соединения даже после отмены ctx.
func (cc *commandContext) withApp(ctx context.Context, fn func(ctx context.Context, app *application.App) error) error {
	app, err := application.New(cc.cfg)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	app.LogConfig(ctx)

	return fn(ctx, app)
}
