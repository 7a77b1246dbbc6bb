package config

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"

	"github.com/BurntSushi/toml"

	"github.com/mlaakso/sharewatch/internal/collector"
)

// resourcesFile is the TOML shape of the watch list.
type resourcesFile struct {
	Resources []resourceRow `toml:"resource"`
}

type resourceRow struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	Enabled      bool   `toml:"enabled"`
	NotifyTarget string `toml:"notify_target"`
}

// LoadResources reads the watched-resource list from a TOML file. Order is
// preserved; rows without an ID are rejected.
func LoadResources(path string) ([]collector.WatchedResource, error) {
	var parsed resourcesFile

	md, err := toml.DecodeFile(path, &parsed)
	if err != nil {
		return nil, fmt.Errorf("parsing resources file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md, path); err != nil {
		return nil, err
	}

	resources := make([]collector.WatchedResource, 0, len(parsed.Resources))

	for i, row := range parsed.Resources {
		if row.ID == "" {
			return nil, fmt.Errorf("resources file %s: entry %d has no id", path, i+1)
		}

		resources = append(resources, collector.WatchedResource{
			ID:           row.ID,
			Name:         row.Name,
			Enabled:      row.Enabled,
			NotifyTarget: row.NotifyTarget,
		})
	}

	return resources, nil
}

// FileResourceSource serves the watch list from a TOML file, rereading it
// only when Reload is called (the daemon's config watcher drives reloads).
// Safe for concurrent use.
type FileResourceSource struct {
	path   string
	logger *slog.Logger

	mu        stdsync.RWMutex
	resources []collector.WatchedResource
}

// NewFileResourceSource loads the watch list eagerly so a broken file fails
// at startup, not mid-pass.
func NewFileResourceSource(path string, logger *slog.Logger) (*FileResourceSource, error) {
	resources, err := LoadResources(path)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded watch list",
		slog.String("path", path),
		slog.Int("resources", len(resources)),
	)

	return &FileResourceSource{
		path:      path,
		logger:    logger,
		resources: resources,
	}, nil
}

// Resources returns the current watch list.
func (f *FileResourceSource) Resources(_ context.Context) ([]collector.WatchedResource, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]collector.WatchedResource, len(f.resources))
	copy(out, f.resources)

	return out, nil
}

// Reload rereads the file. A parse failure keeps the previous list — a
// half-saved edit must not empty the watch list mid-daemon.
func (f *FileResourceSource) Reload() error {
	resources, err := LoadResources(f.path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.resources = resources
	f.mu.Unlock()

	f.logger.Info("watch list reloaded",
		slog.String("path", f.path),
		slog.Int("resources", len(resources)),
	)

	return nil
}

// Path returns the file path backing this source.
func (f *FileResourceSource) Path() string {
	return f.path
}

// Compile-time interface check.
var _ collector.ResourceSource = (*FileResourceSource)(nil)
