package resolve

import (
	"context"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/mlaakso/sharewatch/internal/feed"
)

// maxWalkDepth bounds the ancestor walk. Parent chains are a tree by
// construction, but malformed data must not spin the resolver forever.
const maxWalkDepth = 1000

// Path is the result of resolving an item's ancestor chain.
type Path struct {
	// Parts holds display names ordered root-first; an ancestor that could
	// not be fetched appears as its raw ID so the path never silently
	// truncates without trace.
	Parts []string
	// Depth is the number of ancestors in Parts (len(Parts) - 1).
	Depth int
	// DriveName is the containing shared drive's display name, empty when
	// the item is user-owned or the drive lookup failed.
	DriveName string
}

// Resolver walks ancestor chains to produce root-to-item paths.
type Resolver struct {
	cache  *Cache
	meta   MetadataClient
	logger *slog.Logger
}

// New creates a Resolver sharing the given session cache.
func New(cache *Cache, meta MetadataClient, logger *slog.Logger) *Resolver {
	return &Resolver{cache: cache, meta: meta, logger: logger}
}

// NewSession creates a Resolver with a fresh cache scoped to one resolution
// pass.
func NewSession(meta MetadataClient, logger *slog.Logger) *Resolver {
	return New(NewCache(meta, logger), meta, logger)
}

// Resolve walks the ancestor chain of the given item and returns its full
// path. Multi-parent items follow only the first listed parent — one
// canonical location per item. The walk stops at an item with no parents,
// at an ancestor that cannot be fetched (rendered by raw ID), or at the
// depth bound.
func (r *Resolver) Resolve(ctx context.Context, item *feed.Item) *Path {
	parts := []string{cleanName(item.Name)}
	parentID := firstParent(item)

	for depth := 0; parentID != "" && depth < maxWalkDepth; depth++ {
		ancestor, ok := r.cache.Get(ctx, parentID)
		if !ok {
			// Unresolvable ancestor: keep its ID in the path and stop.
			parts = append([]string{parentID}, parts...)
			break
		}

		parts = append([]string{cleanName(ancestor.Name)}, parts...)
		parentID = firstParent(ancestor)
	}

	if parentID != "" && len(parts) > maxWalkDepth {
		r.logger.Warn("ancestor walk hit depth bound",
			slog.String("item_id", item.ID),
			slog.Int("depth", len(parts)-1),
		)
	}

	p := &Path{
		Parts: parts,
		Depth: len(parts) - 1,
	}

	if item.DriveID != "" {
		p.DriveName = r.driveName(ctx, item.DriveID)
	}

	return p
}

// driveName resolves a shared drive's display name. Failure yields an empty
// name, never an error: the container label is decoration, not identity.
func (r *Resolver) driveName(ctx context.Context, driveID string) string {
	drive, err := r.meta.GetDrive(ctx, driveID)
	if err != nil {
		r.logger.Debug("drive name lookup failed",
			slog.String("drive_id", driveID),
			slog.String("error", err.Error()),
		)

		return ""
	}

	return cleanName(drive.Name)
}

// firstParent returns the canonical (first listed) parent ID, or empty for
// root items.
func firstParent(item *feed.Item) string {
	if len(item.Parents) == 0 {
		return ""
	}

	return item.Parents[0]
}

// cleanName NFC-normalizes a display name. Remote APIs return names in mixed
// Unicode normalization forms; comparing or displaying them requires one.
func cleanName(name string) string {
	return norm.NFC.String(name)
}
