package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlaakso/sharewatch/internal/collector"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() *collector.ChangeEvent {
	return &collector.ChangeEvent{
		TargetID:   "item-1",
		TargetName: "Budget",
		Change:     collector.ChangeAdded,
		Entity:     collector.Entity{Kind: collector.EntityUser, Identifier: "eve@example.com"},
		Role:       "WRITER",
		Actor:      "admin@example.com",
		When:       time.Date(2026, 3, 14, 12, 0, 30, 0, time.UTC),
	}
}

func TestNotifyPostsToDefaultURL(t *testing.T) {
	var got message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := New(srv.URL, srv.Client(), testLogger())
	require.NoError(t, n.Notify(context.Background(), sampleEvent()))

	assert.Contains(t, got.Text, `"Budget"`)
	assert.Contains(t, got.Text, "eve@example.com")
}

func TestNotifyTargetOverridesDefault(t *testing.T) {
	defaultHit, targetHit := 0, 0

	defaultSrv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		defaultHit++
	}))
	defer defaultSrv.Close()

	targetSrv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		targetHit++
	}))
	defer targetSrv.Close()

	event := sampleEvent()
	event.NotifyTarget = targetSrv.URL

	n := New(defaultSrv.URL, nil, testLogger())
	require.NoError(t, n.Notify(context.Background(), event))

	assert.Equal(t, 0, defaultHit)
	assert.Equal(t, 1, targetHit)
}

func TestNotifyNoURLDropsEvent(t *testing.T) {
	n := New("", nil, testLogger())
	require.NoError(t, n.Notify(context.Background(), sampleEvent()))
}

func TestNotifyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "rate limited")
	}))
	defer srv.Close()

	n := New(srv.URL, srv.Client(), testLogger())
	err := n.Notify(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name  string
		event collector.ChangeEvent
		want  string
	}{
		{
			name: "user grant",
			event: collector.ChangeEvent{
				TargetName: "Budget",
				Change:     collector.ChangeAdded,
				Entity:     collector.Entity{Kind: collector.EntityUser, Identifier: "eve@example.com"},
				Role:       "WRITER",
				Actor:      "admin@example.com",
				When:       time.Date(2026, 3, 14, 12, 0, 30, 0, time.UTC),
			},
			want: `Writer access to "Budget" granted to user eve@example.com by admin@example.com at 2026-03-14T12:00:30Z`,
		},
		{
			name: "domain revoke without actor",
			event: collector.ChangeEvent{
				TargetName: "Plans",
				Change:     collector.ChangeRemoved,
				Entity:     collector.Entity{Kind: collector.EntityDomain, Identifier: "example.com"},
				Role:       "reader",
				When:       time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC),
			},
			want: `Reader access to "Plans" revoked from everyone at example.com by someone at 2026-03-14T13:00:00Z`,
		},
		{
			name: "anyone link with no role",
			event: collector.ChangeEvent{
				TargetName: "Notes",
				Change:     collector.ChangeAdded,
				Entity:     collector.Entity{Kind: collector.EntityAnyone},
				When:       time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC),
			},
			want: `Unspecified access to "Notes" granted to anyone with the link by someone at 2026-03-14T14:00:00Z`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatEvent(&tc.event))
		})
	}
}
