package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// GetItem fetches metadata for a single drive item. Inaccessible or deleted
// items surface as ErrNotFound / ErrPermissionDenied via errors.Is.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	c.logger.Debug("fetching item metadata", slog.String("item_id", itemID))

	var raw rawItem

	path := "/files/" + url.PathEscape(itemID) + "?fields=id,name,parents,driveId"
	if err := c.do(ctx, "GET", path, nil, &raw); err != nil {
		return nil, fmt.Errorf("feed: get item %s: %w", itemID, err)
	}

	return &Item{
		ID:      raw.ID,
		Name:    raw.Name,
		Parents: raw.Parents,
		DriveID: raw.DriveID,
	}, nil
}

// GetDrive fetches the display name of a shared drive.
func (c *Client) GetDrive(ctx context.Context, driveID string) (*Drive, error) {
	c.logger.Debug("fetching drive metadata", slog.String("drive_id", driveID))

	var raw struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	if err := c.do(ctx, "GET", "/drives/"+url.PathEscape(driveID), nil, &raw); err != nil {
		return nil, fmt.Errorf("feed: get drive %s: %w", driveID, err)
	}

	return &Drive{ID: raw.ID, Name: raw.Name}, nil
}

// ListSharedWith returns one page of items shared with the given principal
// (a group or user email). Pass an empty pageToken for the first page.
func (c *Client) ListSharedWith(ctx context.Context, principal, pageToken string) (*ItemPage, error) {
	c.logger.Debug("listing shared items",
		slog.String("principal", principal),
		slog.Bool("first_page", pageToken == ""),
	)

	q := url.Values{}
	q.Set("sharedWith", principal)
	q.Set("fields", "id,name,parents,driveId")

	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var resp struct {
		Files         []rawItem `json:"files"`
		NextPageToken string    `json:"nextPageToken"`
	}

	if err := c.do(ctx, "GET", "/files?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("feed: list items shared with %s: %w", principal, err)
	}

	page := &ItemPage{NextPageToken: resp.NextPageToken}

	for i := range resp.Files {
		page.Items = append(page.Items, Item{
			ID:      resp.Files[i].ID,
			Name:    resp.Files[i].Name,
			Parents: resp.Files[i].Parents,
			DriveID: resp.Files[i].DriveID,
		})
	}

	return page, nil
}
