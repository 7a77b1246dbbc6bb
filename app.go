package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/mlaakso/sharewatch/internal/collector"
	"github.com/mlaakso/sharewatch/internal/config"
	"github.com/mlaakso/sharewatch/internal/feed"
	"github.com/mlaakso/sharewatch/internal/groups"
	"github.com/mlaakso/sharewatch/internal/notify"
	"github.com/mlaakso/sharewatch/internal/scheduler"
	"github.com/mlaakso/sharewatch/internal/store"
)

// httpClientTimeout bounds every outbound request so a hung connection can
// never stall a bounded invocation.
const httpClientTimeout = 30 * time.Second

// app holds the assembled component graph for one command invocation.
type app struct {
	logger    *slog.Logger
	store     *store.SQLiteStore
	feed      *feed.Client
	source    *config.FileResourceSource
	collector *collector.Collector
	invoker   *scheduler.TimerInvoker
	scheduler *scheduler.BatchScheduler
	producer  *groups.Producer
}

// newApp wires every component from the loaded configuration. The returned
// app owns the state database; callers must Close it.
func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	st, err := store.Open(ctx, loadedCfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	// Bearer-token transport for the API client; contexts passed per
	// request still control cancellation.
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: loadedCfg.Token})
	apiHTTP := oauth2.NewClient(ctx, tokenSource)
	apiHTTP.Timeout = httpClientTimeout

	feedClient := feed.NewClient(loadedCfg.APIBaseURL, apiHTTP, logger)

	source, err := config.NewFileResourceSource(loadedCfg.ResourcesPath, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("loading watch list: %w", err)
	}

	notifier := notify.New(loadedCfg.WebhookURL, &http.Client{Timeout: httpClientTimeout}, logger)

	coll := collector.New(source, feedClient, st, notifier, loadedDurations.GraceWindow, logger)

	invoker := scheduler.NewTimerInvoker(logger)

	worker := groups.NewWorker(feedClient, logger)

	sched := scheduler.New(st, invoker, st, worker, scheduler.Config{
		ChunkSize:     loadedCfg.ChunkSize,
		ItemPause:     loadedDurations.ItemPause,
		ReinvokeDelay: loadedDurations.ReinvokeDelay,
	}, logger)

	a := &app{
		logger:    logger,
		store:     st,
		feed:      feedClient,
		source:    source,
		collector: coll,
		invoker:   invoker,
		scheduler: sched,
		producer:  groups.NewProducer(feedClient, logger),
	}

	// Route chunk continuations back into the scheduler. The background
	// context is deliberate: a chunk fired by the timer should finish even
	// while the surrounding command is tearing down; cancellation is
	// cooperative at chunk boundaries.
	invoker.Register(scheduler.ContinueHandler, func() {
		if err := sched.ContinueChunk(context.Background()); err != nil {
			logger.Error("chunk continuation failed", slog.String("error", err.Error()))
		}
	})

	return a, nil
}

// Close stops pending timers and releases the state database.
func (a *app) Close() {
	a.invoker.Stop()

	if err := a.store.Close(); err != nil {
		a.logger.Error("closing store", slog.String("error", err.Error()))
	}
}
