// Package resolve reconstructs full ancestor paths for drive items through
// repeated metadata lookups, with per-session memoization and graceful
// degradation when ancestors are inaccessible.
package resolve

import (
	"context"
	"log/slog"

	"github.com/mlaakso/sharewatch/internal/feed"
)

// MetadataClient is the metadata lookup surface the resolver needs, defined
// here per the "accept interfaces, return structs" convention. feed.Client
// satisfies it.
type MetadataClient interface {
	GetItem(ctx context.Context, itemID string) (*feed.Item, error)
	GetDrive(ctx context.Context, driveID string) (*feed.Drive, error)
}

// Cache memoizes item metadata lookups for the lifetime of one resolution
// session. Failed lookups (deleted items, permission denied, transient
// errors) are cached as misses and never retried within the session, so
// repeated resolutions sharing ancestors do not re-issue failing requests.
//
// A Cache is not safe for concurrent use; create one per resolution pass.
type Cache struct {
	meta   MetadataClient
	logger *slog.Logger

	items   map[string]*feed.Item
	missing map[string]struct{}
}

// NewCache creates an empty session cache over the given metadata client.
func NewCache(meta MetadataClient, logger *slog.Logger) *Cache {
	return &Cache{
		meta:    meta,
		logger:  logger,
		items:   make(map[string]*feed.Item),
		missing: make(map[string]struct{}),
	}
}

// Get returns the metadata for an item, fetching it on first use. Returns
// (nil, false) for items that could not be fetched; the miss is remembered.
func (c *Cache) Get(ctx context.Context, itemID string) (*feed.Item, bool) {
	if item, ok := c.items[itemID]; ok {
		return item, true
	}

	if _, miss := c.missing[itemID]; miss {
		return nil, false
	}

	item, err := c.meta.GetItem(ctx, itemID)
	if err != nil {
		c.logger.Debug("metadata lookup failed, caching miss",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)

		c.missing[itemID] = struct{}{}

		return nil, false
	}

	c.items[itemID] = item

	return item, true
}
