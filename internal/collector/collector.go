// Package collector runs incremental permission-change collection passes.
// Each pass queries the activity feed per watched resource from that
// resource's watermark, advances the watermark, deduplicates findings, and
// hands surviving events to the notifier.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlaakso/sharewatch/internal/feed"
)

// WatchedResource identifies one folder subtree to monitor. Rows come from
// an external tabular source and are read-only here.
type WatchedResource struct {
	ID           string
	Name         string
	Enabled      bool
	NotifyTarget string
}

// ResourceSource yields the ordered watch list.
type ResourceSource interface {
	Resources(ctx context.Context) ([]WatchedResource, error)
}

// ActivityFeed queries permission-change activity on a subtree since a
// point in time. feed.Client satisfies it.
type ActivityFeed interface {
	QueryActivity(ctx context.Context, ancestorID string, since time.Time) ([]feed.Activity, error)
}

// WatermarkStore persists per-resource watermarks. store.SQLiteStore
// satisfies it. GetWatermark returns the zero time for unseen resources.
type WatermarkStore interface {
	GetWatermark(ctx context.Context, resourceID string) (time.Time, error)
	AdvanceWatermark(ctx context.Context, resourceID string, t time.Time) error
}

// Notifier delivers one change event. Delivery failure is logged by the
// collector and the event dropped for this run — never retried.
type Notifier interface {
	Notify(ctx context.Context, event *ChangeEvent) error
}

// Stats summarizes one collection pass.
type Stats struct {
	Resources   int // enabled resources processed
	Failed      int // resources whose feed query failed
	Events      int // deduplicated events
	Duplicates  int // raw activities dropped as duplicates
	Undelivered int // events whose delivery failed
}

// Collector drives collection passes. It is stateless between passes; all
// cursor state lives in the watermark store.
type Collector struct {
	source ResourceSource
	feed   ActivityFeed
	marks  WatermarkStore
	notify Notifier
	logger *slog.Logger

	// graceWindow is how far back the first observation of a resource
	// looks. Bounds the initial scan for resources with no watermark.
	graceWindow time.Duration

	// nowFunc returns the current time. Tests override this.
	nowFunc func() time.Time
}

// New creates a Collector.
func New(source ResourceSource, feed ActivityFeed, marks WatermarkStore, notify Notifier, graceWindow time.Duration, logger *slog.Logger) *Collector {
	return &Collector{
		source:      source,
		feed:        feed,
		marks:       marks,
		notify:      notify,
		graceWindow: graceWindow,
		logger:      logger,
		nowFunc:     time.Now,
	}
}

// CollectAll runs one collection pass over every enabled watched resource.
// A feed query failure for one resource is logged and skipped; it never
// aborts the others. The watermark is advanced to "now" for every resource
// — including after a failed query — which bounds re-scan cost at the
// acknowledged risk of missing events generated during a failed window.
func (c *Collector) CollectAll(ctx context.Context) (*Stats, error) {
	resources, err := c.source.Resources(ctx)
	if err != nil {
		return nil, fmt.Errorf("collector: load watch list: %w", err)
	}

	stats := &Stats{}
	seen := make(map[string]struct{})

	var events []ChangeEvent

	for i := range resources {
		res := &resources[i]
		if !res.Enabled {
			continue
		}

		stats.Resources++

		resEvents, err := c.collectResource(ctx, res, seen, stats)
		if err != nil {
			stats.Failed++
			c.logger.Error("collection failed for resource",
				slog.String("resource_id", res.ID),
				slog.String("name", res.Name),
				slog.String("error", err.Error()),
			)

			continue
		}

		events = append(events, resEvents...)
	}

	stats.Events = len(events)
	c.deliver(ctx, events, stats)

	c.logger.Info("collection pass complete",
		slog.Int("resources", stats.Resources),
		slog.Int("failed", stats.Failed),
		slog.Int("events", stats.Events),
		slog.Int("duplicates", stats.Duplicates),
	)

	return stats, nil
}

// collectResource queries one resource's activity since its watermark and
// advances the watermark to now. The advance is unconditional and happens
// even when the query failed (the deferred call), so a broken resource
// cannot grow an unbounded re-scan window.
func (c *Collector) collectResource(ctx context.Context, res *WatchedResource, seen map[string]struct{}, stats *Stats) ([]ChangeEvent, error) {
	now := c.nowFunc()
	since, err := c.sinceFor(ctx, res.ID, now)
	if err != nil {
		return nil, err
	}

	defer func() {
		if advErr := c.marks.AdvanceWatermark(ctx, res.ID, now); advErr != nil {
			c.logger.Error("failed to advance watermark",
				slog.String("resource_id", res.ID),
				slog.String("error", advErr.Error()),
			)
		}
	}()

	c.logger.Debug("collecting resource",
		slog.String("resource_id", res.ID),
		slog.String("name", res.Name),
		slog.Time("since", since),
	)

	activities, err := c.feed.QueryActivity(ctx, res.ID, since)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}

	var events []ChangeEvent

	for i := range activities {
		key := activityKey(&activities[i])
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}

		seen[key] = struct{}{}
		events = append(events, eventsFromActivity(&activities[i], res.NotifyTarget)...)
	}

	return events, nil
}

// sinceFor returns the query window start for a resource: the stored
// watermark, or now minus the grace window on first observation.
func (c *Collector) sinceFor(ctx context.Context, resourceID string, now time.Time) (time.Time, error) {
	mark, err := c.marks.GetWatermark(ctx, resourceID)
	if err != nil {
		return time.Time{}, fmt.Errorf("get watermark: %w", err)
	}

	if mark.IsZero() {
		return now.Add(-c.graceWindow), nil
	}

	return mark, nil
}

// deliver hands each event to the notifier. Failures are logged and counted;
// the event is considered lost for this run.
func (c *Collector) deliver(ctx context.Context, events []ChangeEvent, stats *Stats) {
	for i := range events {
		if err := c.notify.Notify(ctx, &events[i]); err != nil {
			stats.Undelivered++
			c.logger.Error("notification delivery failed",
				slog.String("target_id", events[i].TargetID),
				slog.String("target_name", events[i].TargetName),
				slog.String("error", err.Error()),
			)
		}
	}
}
