package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, srv.Client(), testLogger())
}

func TestQueryActivityPaginatesAndNormalizes(t *testing.T) {
	var requests []activityQueryRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/activity:query", r.URL.Path)

		var req activityQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		if req.PageToken == "" {
			io.WriteString(w, `{
				"activities": [{
					"timestamp": "2026-03-14T12:00:30Z",
					"actors": [{"user": {"knownUser": {"email": "admin@example.com"}}}],
					"targets": [{"driveItem": {"name": "items/item-1", "title": "Budget"}}],
					"primaryActionDetail": {"permissionChange": {
						"addedPermissions": [
							{"role": "writer", "user": {"knownUser": {"email": "eve@example.com"}}},
							{"role": "reader", "group": {"email": "team@example.com", "title": "Team"}}
						]
					}}
				}],
				"nextPageToken": "page-2"
			}`)

			return
		}

		require.Equal(t, "page-2", req.PageToken)
		io.WriteString(w, `{
			"activities": [
				{
					"timestamp": "2026-03-14T12:05:00Z",
					"targets": [{"driveItem": {"name": "items/item-2", "title": "Plans"}}],
					"primaryActionDetail": {"permissionChange": {
						"removedPermissions": [{"role": "reader", "domain": {"name": "example.com"}}]
					}}
				},
				{
					"timestamp": "2026-03-14T12:06:00Z",
					"targets": [{"driveItem": {"name": "items/item-3", "title": "Renamed"}}],
					"primaryActionDetail": {}
				}
			]
		}`)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	since := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)

	activities, err := c.QueryActivity(context.Background(), "root-1", since)
	require.NoError(t, err)

	// The filter pins the action class and the window start.
	require.Len(t, requests, 2)
	assert.Equal(t, "root-1", requests[0].AncestorID)
	assert.Contains(t, requests[0].Filter, "PERMISSION_CHANGE")
	assert.Contains(t, requests[0].Filter, `"2026-03-14T11:00:00Z"`)

	// The rename record without permission detail was dropped.
	require.Len(t, activities, 2)

	first := activities[0]
	assert.Equal(t, "item-1", first.TargetID)
	assert.Equal(t, "Budget", first.Target)
	assert.Equal(t, "admin@example.com", first.Actor)
	assert.Equal(t, time.Date(2026, 3, 14, 12, 0, 30, 0, time.UTC), first.Timestamp)
	require.Len(t, first.Added, 2)
	assert.Equal(t, Permission{Role: "writer", UserEmail: "eve@example.com"}, first.Added[0])
	assert.Equal(t, Permission{Role: "reader", GroupEmail: "team@example.com"}, first.Added[1])

	second := activities[1]
	assert.Equal(t, "item-2", second.TargetID)
	assert.Empty(t, second.Actor)
	require.Len(t, second.Removed, 1)
	assert.Equal(t, Permission{Role: "reader", Domain: "example.com"}, second.Removed[0])
}

func TestGetItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/item-1", r.URL.Path)
		require.Equal(t, "id,name,parents,driveId", r.URL.Query().Get("fields"))

		io.WriteString(w, `{"id": "item-1", "name": "Budget", "parents": ["item-0"], "driveId": "drv-1"}`)
	}))
	defer srv.Close()

	item, err := newTestClient(srv).GetItem(context.Background(), "item-1")
	require.NoError(t, err)

	assert.Equal(t, &Item{
		ID:      "item-1",
		Name:    "Budget",
		Parents: []string{"item-0"},
		DriveID: "drv-1",
	}, item)
}

func TestGetItemNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("request-id", "req-123")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error": "item deleted"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetItem(context.Background(), "item-gone")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "req-123", apiErr.RequestID)
}

func TestGetDrive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/drives/drv-1", r.URL.Path)
		io.WriteString(w, `{"id": "drv-1", "name": "Team Files"}`)
	}))
	defer srv.Close()

	drive, err := newTestClient(srv).GetDrive(context.Background(), "drv-1")
	require.NoError(t, err)
	assert.Equal(t, &Drive{ID: "drv-1", Name: "Team Files"}, drive)
}

func TestListSharedWith(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		require.Equal(t, "team@example.com", r.URL.Query().Get("sharedWith"))
		require.Equal(t, "tok-1", r.URL.Query().Get("pageToken"))

		io.WriteString(w, `{
			"files": [{"id": "item-1", "name": "Budget", "parents": ["item-0"]}],
			"nextPageToken": "tok-2"
		}`)
	}))
	defer srv.Close()

	page, err := newTestClient(srv).ListSharedWith(context.Background(), "team@example.com", "tok-1")
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, "item-1", page.Items[0].ID)
	assert.Equal(t, "tok-2", page.NextPageToken)
}

func TestListGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups", r.URL.Path)

		io.WriteString(w, `{
			"groups": [
				{"email": "team@example.com", "name": "Team", "directMembersCount": 4},
				{"email": "ops@example.com", "name": "Ops", "directMembersCount": 9}
			]
		}`)
	}))
	defer srv.Close()

	page, err := newTestClient(srv).ListGroups(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, page.Groups, 2)
	assert.Equal(t, Group{Email: "team@example.com", Name: "Team", MemberCount: 4}, page.Groups[0])
	assert.Empty(t, page.NextPageToken)
}

func TestListGroupMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups/team@example.com/members", r.URL.Path)

		io.WriteString(w, `{
			"members": [{"email": "alice@example.com", "role": "OWNER"}],
			"nextPageToken": "tok-2"
		}`)
	}))
	defer srv.Close()

	page, err := newTestClient(srv).ListGroupMembers(context.Background(), "team@example.com", "")
	require.NoError(t, err)

	require.Len(t, page.Members, 1)
	assert.Equal(t, Member{Email: "alice@example.com", Role: "OWNER"}, page.Members[0])
	assert.Equal(t, "tok-2", page.NextPageToken)
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++

		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		io.WriteString(w, `{"id": "drv-1", "name": "Team Files"}`)
	}))
	defer srv.Close()

	drive, err := newTestClient(srv).GetDrive(context.Background(), "drv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "Team Files", drive.Name)
}

func TestBadRequestIsNotRetried(t *testing.T) {
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetDrive(context.Background(), "drv-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, 1, attempts)
}

func TestCanceledContextIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv).GetDrive(ctx, "drv-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrPermissionDenied},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusBadGateway, ErrServerError},
		{http.StatusOK, nil},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, classifyStatus(tc.code), "status %d", tc.code)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	withID := &APIError{StatusCode: 404, RequestID: "req-1", Message: "gone", Err: ErrNotFound}
	assert.True(t, strings.Contains(withID.Error(), "req-1"))

	withoutID := &APIError{StatusCode: 500, Message: "oops", Err: ErrServerError}
	assert.True(t, strings.Contains(withoutID.Error(), "HTTP 500"))
}
