package groups

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlaakso/sharewatch/internal/feed"
	"github.com/mlaakso/sharewatch/internal/resolve"
	"github.com/mlaakso/sharewatch/internal/scheduler"
)

// maxSummaryPaths caps how many resolved paths go into one status summary.
// Groups shared into hundreds of trees still get a readable status row.
const maxSummaryPaths = 10

// sharesClient is the feed surface the worker needs: metadata lookups for
// path resolution plus the shared-item search. feed.Client satisfies it.
type sharesClient interface {
	resolve.MetadataClient
	ListSharedWith(ctx context.Context, principal, pageToken string) (*feed.ItemPage, error)
}

// Worker processes one group per work item: it enumerates the items shared
// with the group, resolves each item's full path, and returns a summary for
// the status sink.
type Worker struct {
	client sharesClient
	logger *slog.Logger
}

// NewWorker creates a Worker over the given client.
func NewWorker(client sharesClient, logger *slog.Logger) *Worker {
	return &Worker{client: client, logger: logger}
}

// Process handles one group. The resolver's session cache is scoped to the
// item, so ancestor lookups repeat across groups but never within one.
func (w *Worker) Process(ctx context.Context, item scheduler.WorkItem) (string, error) {
	groupEmail := item.Key

	w.logger.Debug("scanning group shares", slog.String("group", groupEmail))

	resolver := resolve.NewSession(w.client, w.logger)

	var (
		paths     []string
		total     int
		pageToken string
	)

	for page := 0; page < maxListPages; page++ {
		ip, err := w.client.ListSharedWith(ctx, groupEmail, pageToken)
		if err != nil {
			return "", fmt.Errorf("list shares for %s: %w", groupEmail, err)
		}

		for i := range ip.Items {
			total++

			if len(paths) >= maxSummaryPaths {
				continue
			}

			p := resolver.Resolve(ctx, &ip.Items[i])
			paths = append(paths, renderPath(p))
		}

		if ip.NextPageToken == "" {
			break
		}

		pageToken = ip.NextPageToken
	}

	summary := fmt.Sprintf("%d shared trees", total)
	if len(paths) > 0 {
		summary += ": " + strings.Join(paths, "; ")
	}

	if total > maxSummaryPaths {
		summary += fmt.Sprintf("; … %d more", total-maxSummaryPaths)
	}

	w.logger.Info("group scan complete",
		slog.String("group", groupEmail),
		slog.Int("shared_trees", total),
	)

	return summary, nil
}

// renderPath joins a resolved path for display, prefixing the shared drive
// name when present.
func renderPath(p *resolve.Path) string {
	joined := strings.Join(p.Parts, "/")
	if p.DriveName != "" {
		return p.DriveName + ":" + joined
	}

	return joined
}

// Compile-time interface check.
var _ scheduler.Worker = (*Worker)(nil)
