package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// ListGroups returns one page of directory groups. Pass an empty pageToken
// for the first page.
func (c *Client) ListGroups(ctx context.Context, pageToken string) (*GroupPage, error) {
	c.logger.Debug("listing directory groups", slog.Bool("first_page", pageToken == ""))

	path := "/groups"
	if pageToken != "" {
		path += "?pageToken=" + url.QueryEscape(pageToken)
	}

	var resp struct {
		Groups []struct {
			Email              string `json:"email"`
			Name               string `json:"name"`
			DirectMembersCount int    `json:"directMembersCount"`
		} `json:"groups"`
		NextPageToken string `json:"nextPageToken"`
	}

	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("feed: list groups: %w", err)
	}

	page := &GroupPage{NextPageToken: resp.NextPageToken}

	for i := range resp.Groups {
		page.Groups = append(page.Groups, Group{
			Email:       resp.Groups[i].Email,
			Name:        resp.Groups[i].Name,
			MemberCount: resp.Groups[i].DirectMembersCount,
		})
	}

	return page, nil
}

// ListGroupMembers returns one page of members for the given group.
func (c *Client) ListGroupMembers(ctx context.Context, groupEmail, pageToken string) (*MemberPage, error) {
	c.logger.Debug("listing group members", slog.String("group", groupEmail))

	path := "/groups/" + url.PathEscape(groupEmail) + "/members"
	if pageToken != "" {
		path += "?pageToken=" + url.QueryEscape(pageToken)
	}

	var resp struct {
		Members []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"members"`
		NextPageToken string `json:"nextPageToken"`
	}

	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, fmt.Errorf("feed: list members of %s: %w", groupEmail, err)
	}

	page := &MemberPage{NextPageToken: resp.NextPageToken}

	for i := range resp.Members {
		page.Members = append(page.Members, Member{
			Email: resp.Members[i].Email,
			Role:  resp.Members[i].Role,
		})
	}

	return page, nil
}
