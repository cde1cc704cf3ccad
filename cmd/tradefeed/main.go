package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tradefeed/config"
	"tradefeed/db"
	"tradefeed/genbatch"
	"tradefeed/joblock"
	"tradefeed/ops"
	"tradefeed/persona"
	"tradefeed/post"
	"tradefeed/reddit"
	"tradefeed/reply"
	"tradefeed/topic"
)

func main() {
	jobFlag := flag.String("job", "serve", "one of: serve, seed-topics, ghost-replies")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("bootstrap database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	feed := reddit.NewClient(cfg.RedditBaseURL)
	defer feed.Close()

	gen := genbatch.NewClient(cfg.GenBaseURL, cfg.GenAPIKey, cfg.GenModel)
	defer gen.Close()

	postRepo := post.NewRepository(pool)
	topicRepo := topic.NewRepository(pool)
	personaRepo := persona.NewRepository(pool)

	topicService := topic.NewService(topic.ServiceParams{
		Feed:      feed,
		Store:     topicRepo,
		Logger:    logger,
		Channels:  cfg.RedditChannels,
		Limit:     cfg.TopicFetchLimit,
		MinLength: cfg.TopicMinLength,
		Retention: cfg.TopicRetention,
	})

	replyService := reply.NewService(reply.ServiceParams{
		Personas:          personaRepo,
		Targets:           postRepo,
		Writer:            postRepo,
		Batch:             gen,
		Guard:             joblock.NewRepository(pool),
		Logger:            logger,
		TargetLimit:       cfg.TargetLimit,
		RepliesPerPersona: cfg.RepliesPerPersona,
		MaxTokens:         cfg.GenMaxTokens,
		ReplyMaxLength:    cfg.ReplyMaxLength,
		PollInterval:      cfg.PollInterval,
		PollMaxAttempts:   cfg.PollMaxAttempts,
	})

	switch *jobFlag {
	case "seed-topics":
		runCtx, cancel := context.WithTimeout(ctx, cfg.RunDeadline)
		defer cancel()
		if _, err := topicService.Refresh(runCtx); err != nil {
			logger.Error("seed-topics run failed", "error", err)
			os.Exit(1)
		}
	case "ghost-replies":
		runCtx, cancel := context.WithTimeout(ctx, cfg.RunDeadline)
		defer cancel()
		if _, err := replyService.Run(runCtx); err != nil {
			logger.Error("ghost-replies run failed", "error", err)
			os.Exit(1)
		}
	case "serve":
		if err := cfg.ValidateServe(); err != nil {
			logger.Error("serve config invalid", "error", err)
			os.Exit(1)
		}
		deps := serveDeps{
			topics:   topicService,
			replies:  replyService,
			runs:     joblock.NewRepository(pool),
			personas: persona.NewService(personaRepo),
			queue:    topicRepo,
		}
		if err := serve(ctx, cfg, deps, logger); err != nil {
			logger.Error("ops server failed", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("unknown job", "job", *jobFlag)
		os.Exit(2)
	}
}

type serveDeps struct {
	topics   ops.TopicRefresher
	replies  ops.ReplyRunner
	runs     ops.RunLister
	personas ops.PersonaAdmin
	queue    ops.TopicQueue
}

func serve(ctx context.Context, cfg config.Config, deps serveDeps, logger *slog.Logger) error {
	server := ops.NewServer(deps.topics, deps.replies, deps.runs, deps.personas, deps.queue,
		ops.NewTokenService(cfg.OperatorKeyHash, cfg.JWTSecret), logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("ops server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(level string) *slog.Logger {
	var parsed slog.Level
	switch level {
	case "debug":
		parsed = slog.LevelDebug
	case "warn":
		parsed = slog.LevelWarn
	case "error":
		parsed = slog.LevelError
	default:
		parsed = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parsed})
	return slog.New(handler)
}
