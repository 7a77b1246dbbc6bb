// Package groups builds and processes the group-share scan: one work item
// per directory group, each resolving the folder trees shared with that
// group.
package groups

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlaakso/sharewatch/internal/feed"
	"github.com/mlaakso/sharewatch/internal/scheduler"
)

// maxListPages bounds directory pagination.
const maxListPages = 1000

// Directory is the group enumeration surface. feed.Client satisfies it.
type Directory interface {
	ListGroups(ctx context.Context, pageToken string) (*feed.GroupPage, error)
	ListGroupMembers(ctx context.Context, groupEmail, pageToken string) (*feed.MemberPage, error)
}

// Producer enumerates directory groups into an ordered work item list for
// the batch scheduler.
type Producer struct {
	dir    Directory
	logger *slog.Logger
}

// NewProducer creates a Producer over the given directory client.
func NewProducer(dir Directory, logger *slog.Logger) *Producer {
	return &Producer{dir: dir, logger: logger}
}

// BuildItems pages through every directory group and returns one work item
// per group, keyed by group email. The payload carries the display name so
// the status table stays readable without another directory round trip.
func (p *Producer) BuildItems(ctx context.Context) ([]scheduler.WorkItem, error) {
	var (
		items     []scheduler.WorkItem
		pageToken string
	)

	for page := 0; page < maxListPages; page++ {
		gp, err := p.dir.ListGroups(ctx, pageToken)
		if err != nil {
			return nil, fmt.Errorf("groups: list groups: %w", err)
		}

		for _, g := range gp.Groups {
			items = append(items, scheduler.WorkItem{
				Key:     g.Email,
				Payload: fmt.Sprintf("%s (%d members)", g.Name, g.MemberCount),
			})
		}

		if gp.NextPageToken == "" {
			p.logger.Info("built scan work list",
				slog.Int("groups", len(items)),
				slog.Int("pages", page+1),
			)

			return items, nil
		}

		pageToken = gp.NextPageToken
	}

	return nil, fmt.Errorf("groups: group listing exceeded %d pages", maxListPages)
}
