package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// maxActivityPages bounds pagination so a misbehaving server cannot spin
// the collector forever.
const maxActivityPages = 1000

// activityQueryRequest is the JSON body for the activity query endpoint.
type activityQueryRequest struct {
	AncestorID string `json:"ancestorId"`
	Filter     string `json:"filter"`
	PageToken  string `json:"pageToken,omitempty"`
}

type activityQueryResponse struct {
	Activities    []rawActivity `json:"activities"`
	NextPageToken string        `json:"nextPageToken"`
}

// QueryActivity returns every permission-change activity recorded under the
// given subtree since the given time, following pagination to exhaustion.
// Records the feed cannot attribute or that carry no permission detail are
// dropped during normalization.
func (c *Client) QueryActivity(ctx context.Context, ancestorID string, since time.Time) ([]Activity, error) {
	filter := fmt.Sprintf("detail.action_detail_case:PERMISSION_CHANGE time >= %q",
		since.UTC().Format(time.RFC3339))

	c.logger.Debug("querying activity feed",
		slog.String("ancestor_id", ancestorID),
		slog.Time("since", since),
	)

	var (
		activities []Activity
		pageToken  string
	)

	for page := 0; page < maxActivityPages; page++ {
		req := activityQueryRequest{
			AncestorID: ancestorID,
			Filter:     filter,
			PageToken:  pageToken,
		}

		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("feed: encoding activity query: %w", err)
		}

		var resp activityQueryResponse
		if err := c.do(ctx, "POST", "/activity:query", bytes.NewReader(body), &resp); err != nil {
			return nil, fmt.Errorf("feed: activity query for %s: %w", ancestorID, err)
		}

		for i := range resp.Activities {
			if a, ok := normalizeActivity(&resp.Activities[i]); ok {
				activities = append(activities, a)
			}
		}

		if resp.NextPageToken == "" {
			return activities, nil
		}

		pageToken = resp.NextPageToken
	}

	return nil, fmt.Errorf("feed: activity query for %s exceeded %d pages", ancestorID, maxActivityPages)
}

// normalizeActivity converts a raw activity record into the typed form.
// Returns ok=false for records without a permission-change detail or without
// a drive item target — these carry nothing the collector can report.
func normalizeActivity(raw *rawActivity) (Activity, bool) {
	if raw.Detail.PermissionChange == nil {
		return Activity{}, false
	}

	a := Activity{
		Added:   normalizePermissions(raw.Detail.PermissionChange.Added),
		Removed: normalizePermissions(raw.Detail.PermissionChange.Removed),
	}

	if len(a.Added) == 0 && len(a.Removed) == 0 {
		return Activity{}, false
	}

	if ts, err := time.Parse(time.RFC3339, raw.Timestamp); err == nil {
		a.Timestamp = ts
	}

	for i := range raw.Targets {
		if di := raw.Targets[i].DriveItem; di != nil {
			a.TargetID = strings.TrimPrefix(di.Name, "items/")
			a.Target = di.Title

			break
		}
	}

	if a.TargetID == "" {
		return Activity{}, false
	}

	for i := range raw.Actors {
		u := raw.Actors[i].User
		if u == nil || u.KnownUser == nil {
			continue
		}

		if u.KnownUser.Email != "" {
			a.Actor = u.KnownUser.Email
		} else {
			a.Actor = u.KnownUser.PersonName
		}

		break
	}

	return a, true
}

// normalizePermissions flattens raw permission entries, preserving every
// grantee hint so the collector can classify them by precedence.
func normalizePermissions(raws []rawPermission) []Permission {
	perms := make([]Permission, 0, len(raws))

	for i := range raws {
		p := Permission{Role: raws[i].Role}

		if u := raws[i].User; u != nil && u.KnownUser != nil {
			if u.KnownUser.Email != "" {
				p.UserEmail = u.KnownUser.Email
			} else {
				p.UserEmail = u.KnownUser.PersonName
			}
		}

		if g := raws[i].Group; g != nil {
			p.GroupEmail = g.Email
		}

		if d := raws[i].Domain; d != nil {
			p.Domain = d.Name
		}

		p.Anyone = raws[i].Anyone != nil

		perms = append(perms, p)
	}

	return perms
}
