package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lendloop/internal/app"
	"lendloop/internal/config"
	"lendloop/internal/platform/logger"
	"lendloop/internal/platform/tracer"
)

var (
	cfgPath    string
	apiURL     string
	home       string
	passphrase string
	backend    string

	appCtx   *app.App
	log      *zap.Logger
	shutdown func(context.Context) error
)

func Execute() error {
	root := &cobra.Command{
		Use:           "lendloop",
		Short:         "Buy, sell, rent and lend things with your neighbours",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("cannot load config: %w", err)
			}
			if apiURL != "" {
				cfg.API.URL = apiURL
			}
			if home != "" {
				cfg.Session.Home = home
			}
			if passphrase != "" {
				cfg.Session.Passphrase = passphrase
			}
			if backend != "" {
				cfg.Session.Backend = backend
			}

			log = logger.New(logger.Config{
				Level:      cfg.Logger.Level,
				Encoding:   cfg.Logger.Encoding,
				TimeFormat: cfg.Logger.TimeFormat,
			})
			shutdown, err = tracer.Init(cmd.Context(), tracer.Config{
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				Environment: cfg.Env,
				SampleRatio: cfg.Tracing.SampleRatio,
			}, log)
			if err != nil {
				return err
			}

			appCtx, err = app.New(cmd.Context(), cfg, log)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			err := appCtx.Close()
			if shutdown != nil {
				_ = shutdown(context.Background())
			}
			_ = log.Sync()
			return err
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("LENDLOOP_CONFIG"), "config file (yaml)")
	root.PersistentFlags().StringVar(&apiURL, "api", "", "marketplace GraphQL endpoint")
	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.lendloop)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase sealing the token file")
	root.PersistentFlags().StringVar(&backend, "session", "", "token slot backend: memory, file, redis or postgres")

	root.AddCommand(
		loginCmd(), registerCmd(), logoutCmd(), whoamiCmd(),
		listingsCmd(), historyCmd(),
		createCmd(), editCmd(), deleteCmd(),
		buyCmd(), rentCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
