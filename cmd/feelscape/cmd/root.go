package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.pilab.hu/feelscape/config"
	"go.pilab.hu/feelscape/log"
	"go.pilab.hu/feelscape/tracing"
)

const appName = "feelscape"

var (
	cfgFile        string
	v              = viper.New()
	cfg            *config.Config
	appLogger      log.Logger
	tracerProvider *sdktrace.TracerProvider
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "feelscape is a mood journal with a synced account profile",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}

		var err error
		cfg, err = config.LoadConfig(v)
		if err != nil {
			return err
		}

		level, parseErr := zerolog.ParseLevel(cfg.LogLevel)
		if parseErr != nil {
			level = zerolog.InfoLevel
		}
		appLogger = log.Install(level, cfg.LogPretty)
		if parseErr != nil {
			appLogger.Warn(cmd.Context(), "Invalid log_level configured, defaulting to 'info'",
				map[string]interface{}{"configured_log_level": cfg.LogLevel})
		}

		if cfg.Tracing {
			tracerProvider, err = tracing.InitTracerProvider(cfg.OtelServiceName, os.Stderr)
			if err != nil {
				return fmt.Errorf("failed to initialize TracerProvider: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if tracerProvider == nil {
			return nil
		}
		return tracerProvider.Shutdown(context.WithoutCancel(cmd.Context()))
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if appLogger != nil {
			appLogger.Error(context.Background(), "Command failed", err)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is ./%s.yaml or $HOME/.%s/%s.yaml)", appName, appName, appName))
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("mongo-uri", "", "MongoDB connection string")
	flags.String("local-db", "", "path of the local journal database")
	flags.String("session-backend", "", "device session store: local, memory or redis")

	cobra.CheckErr(v.BindPFlag("log_level", flags.Lookup("log-level")))
	cobra.CheckErr(v.BindPFlag("mongo_uri", flags.Lookup("mongo-uri")))
	cobra.CheckErr(v.BindPFlag("local_db_path", flags.Lookup("local-db")))
	cobra.CheckErr(v.BindPFlag("session_backend", flags.Lookup("session-backend")))

	rootCmd.AddCommand(signInCmd, signUpCmd, signOutCmd, whoamiCmd, profileCmd, moodCmd, journalCmd, serveCmd)
}
