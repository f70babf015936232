package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AzaLess/guesswho/internal/config"
	"github.com/AzaLess/guesswho/internal/db"
	"github.com/AzaLess/guesswho/internal/game"
	"github.com/AzaLess/guesswho/internal/notify"
	"github.com/AzaLess/guesswho/internal/server"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const shutdownTimeout = 15 * time.Second

type options struct {
	addr        string
	envFile     string
	autoMigrate bool
	verbose     bool
}

func newCmd(opts *options) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GUESSWHO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "guesswho",
		Short:         "Serves the guess-who party game API.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&opts.addr, "addr", "a", ":8080", "address to listen on (env: GUESSWHO_ADDR)")
	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (env: GUESSWHO_ENV_FILE)")
	fs.BoolVar(&opts.autoMigrate, "auto-migrate", false, "create missing tables on startup (env: GUESSWHO_AUTO_MIGRATE)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level (env: GUESSWHO_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

func run(ctx context.Context, opts *options) error {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		log.WithError(err).Warn("failed to load dotenv file")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if opts.autoMigrate {
		cfg.AutoMigrate = true
	}
	config.ConfigureLogging(cfg)

	conn, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if sqlDB, err := conn.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(conn); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		log.Info("database schema migrated")
	}

	engineOpts := []game.Option{}
	if cfg.NATSURL != "" {
		nc, err := notify.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Drain()
		engineOpts = append(engineOpts, game.WithNotifier(notify.NewPublisher(nc, cfg.NATSSubjectPrefix)))
		log.WithField("url", nc.ConnectedUrl()).Info("publishing game notifications")
	}

	engine := game.New(conn, cfg, engineOpts...)
	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           server.New(engine, cfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("guesswho server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
