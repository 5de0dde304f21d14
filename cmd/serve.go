package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/theorybot/internal/bot"
	"github.com/example/theorybot/internal/catalog"
	"github.com/example/theorybot/internal/config"
	"github.com/example/theorybot/internal/database"
	"github.com/example/theorybot/internal/logger"
	"github.com/example/theorybot/internal/quiz"
	"github.com/example/theorybot/internal/ratelimit"
	"github.com/example/theorybot/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	questions, store, err := openData(ctx, cfg, log)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.Limiter())

	b, err := bot.New(cfg.Telegram.Token, cfg.Bot(), log)
	if err != nil {
		closeStore(store, log)
		return err
	}

	engine := quiz.New(store, questions, limiter, b, cfg.Engine(), log)
	if _, err := engine.Restore(ctx); err != nil {
		log.WithError(err).Warn("Continuing without restored sessions")
	}

	jobs := scheduler.New(log)
	err = jobs.Add(scheduler.Job{
		Name:  "flush-attempts",
		Every: cfg.Database.BatchInterval,
		Run:   store.Flush,
	})
	if err == nil {
		err = jobs.Add(scheduler.Job{
			Name:  "sweep-buckets",
			Every: cfg.RateLimit.SweepInterval,
			Run: func(ctx context.Context) error {
				if removed := limiter.Sweep(); removed > 0 {
					log.WithField("removed", removed).Debug("Swept idle rate limit buckets")
				}
				return nil
			},
		})
	}
	if err == nil {
		err = jobs.Add(scheduler.Job{
			Name:  "sweep-sessions",
			Every: cfg.Quiz.SweepInterval,
			Run: func(ctx context.Context) error {
				if removed := engine.SweepSessions(); removed > 0 {
					log.WithField("removed", removed).Debug("Dropped idle quiz sessions")
				}
				return nil
			},
		})
	}
	if err != nil {
		engine.Close()
		closeStore(store, log)
		return err
	}
	jobs.Start()

	// In-flight updates finish their storage calls after a signal
	b.Start(context.WithoutCancel(ctx), engine)

	log.Info("Bot is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info("Shutting down")

	b.Stop()
	engine.Close()
	jobs.Stop()
	closeStore(store, log)

	log.Info("Bot stopped successfully")
	return nil
}

// openData loads the question corpus and opens the store concurrently
func openData(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*catalog.Catalog, *database.Store, error) {
	questions := catalog.New(log, cfg.Sources()...)

	var store *database.Store
	g, gctx := errgroup.WithContext(ctx)
	g.Go(questions.Load)
	g.Go(func() error {
		s, err := database.Open(gctx, cfg.Store(), log)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		store = s
		return nil
	})
	if err := g.Wait(); err != nil {
		if store != nil {
			closeStore(store, log)
		}
		return nil, nil, err
	}

	for _, lang := range questions.Languages() {
		log.WithFields(logrus.Fields{"language": lang, "count": questions.Count(lang)}).Info("Questions available")
	}
	return questions, store, nil
}

// closeStore flushes buffered attempts and closes the database
func closeStore(store *database.Store, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := store.Close(ctx); err != nil {
		log.WithError(err).Error("Error closing database")
	}
}
