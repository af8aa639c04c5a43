package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"study-planner/internal/app"
	"study-planner/internal/config"
)

var (
	appVersion = "dev"
	configFile string
	cfg        config.Config
)

// SetVersion sets the version injected via ldflags.
func SetVersion(version string) {
	appVersion = version
}

var rootCmd = &cobra.Command{
	Use:   "studyplanner",
	Short: "Daily study planner",
	Long: `studyplanner keeps a backlog of study tasks with deadlines, estimates how
long each takes and picks what fits into today's free time.

It serves a JSON API and a Telegram bot over the same task store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		config.InitLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "studyplanner %s\n", appVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./studyplanner.yaml)")
	rootCmd.AddCommand(versionCmd, serveCmd, botCmd, allocateCmd, estimateCmd, retrainCmd, seedCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// withApp opens the application for one command and closes it afterwards.
func withApp(fn func(a *app.App) error) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			config.Logger.WithError(err).Warn("close database")
		}
	}()
	return fn(a)
}
