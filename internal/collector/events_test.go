package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlaakso/sharewatch/internal/feed"
)

func TestClassifyEntityPrecedence(t *testing.T) {
	tests := []struct {
		name string
		perm feed.Permission
		want Entity
	}{
		{
			name: "user only",
			perm: feed.Permission{UserEmail: "eve@example.com"},
			want: Entity{Kind: EntityUser, Identifier: "eve@example.com"},
		},
		{
			name: "group only",
			perm: feed.Permission{GroupEmail: "team@example.com"},
			want: Entity{Kind: EntityGroup, Identifier: "team@example.com"},
		},
		{
			name: "domain only",
			perm: feed.Permission{Domain: "example.com"},
			want: Entity{Kind: EntityDomain, Identifier: "example.com"},
		},
		{
			name: "anyone",
			perm: feed.Permission{Anyone: true},
			want: Entity{Kind: EntityAnyone},
		},
		{
			name: "no hints",
			perm: feed.Permission{},
			want: Entity{Kind: EntityUnknown},
		},
		{
			// Ambiguous record carrying every hint: user wins.
			name: "user beats group domain and anyone",
			perm: feed.Permission{
				UserEmail:  "eve@example.com",
				GroupEmail: "team@example.com",
				Domain:     "example.com",
				Anyone:     true,
			},
			want: Entity{Kind: EntityUser, Identifier: "eve@example.com"},
		},
		{
			name: "group beats domain and anyone",
			perm: feed.Permission{
				GroupEmail: "team@example.com",
				Domain:     "example.com",
				Anyone:     true,
			},
			want: Entity{Kind: EntityGroup, Identifier: "team@example.com"},
		},
		{
			name: "domain beats anyone",
			perm: feed.Permission{Domain: "example.com", Anyone: true},
			want: Entity{Kind: EntityDomain, Identifier: "example.com"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyEntity(&tc.perm))
		})
	}
}

func TestEventsFromActivityFansOut(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 30, 0, time.UTC)
	a := feed.Activity{
		Timestamp: at,
		Actor:     "admin@example.com",
		TargetID:  "item-1",
		Target:    "Roadmap",
		Added: []feed.Permission{
			{Role: "writer", UserEmail: "eve@example.com"},
			{Role: "reader", GroupEmail: "team@example.com"},
		},
		Removed: []feed.Permission{
			{Role: "reader", Domain: "example.com"},
		},
	}

	events := eventsFromActivity(&a, "https://hooks.example.com/x")
	require.Len(t, events, 3)

	assert.Equal(t, ChangeAdded, events[0].Change)
	assert.Equal(t, EntityUser, events[0].Entity.Kind)
	assert.Equal(t, ChangeAdded, events[1].Change)
	assert.Equal(t, EntityGroup, events[1].Entity.Kind)
	assert.Equal(t, ChangeRemoved, events[2].Change)
	assert.Equal(t, EntityDomain, events[2].Entity.Kind)

	for _, e := range events {
		assert.Equal(t, "item-1", e.TargetID)
		assert.Equal(t, "Roadmap", e.TargetName)
		assert.Equal(t, "admin@example.com", e.Actor)
		assert.Equal(t, at, e.When)
		assert.Equal(t, "https://hooks.example.com/x", e.NotifyTarget)
	}
}

func TestActivityKeyMinuteBucket(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 5, 0, time.UTC)

	a := feed.Activity{
		TargetID: "item-1",
		Added:    []feed.Permission{{UserEmail: "eve@example.com"}},
	}

	a.Timestamp = base
	key1 := activityKey(&a)

	// Same minute bucket: identical key.
	a.Timestamp = base.Add(40 * time.Second)
	assert.Equal(t, key1, activityKey(&a))

	// Next minute: distinct key.
	a.Timestamp = base.Add(time.Minute)
	assert.NotEqual(t, key1, activityKey(&a))
}

func TestActivityKeyGranteeOrderInsensitive(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	a := feed.Activity{
		Timestamp: at,
		TargetID:  "item-1",
		Added: []feed.Permission{
			{UserEmail: "a@example.com"},
			{UserEmail: "b@example.com"},
		},
	}
	b := feed.Activity{
		Timestamp: at,
		TargetID:  "item-1",
		Added: []feed.Permission{
			{UserEmail: "b@example.com"},
			{UserEmail: "a@example.com"},
		},
	}

	assert.Equal(t, activityKey(&a), activityKey(&b))
}

func TestActivityKeyDistinguishesDirectionAndTarget(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	added := feed.Activity{
		Timestamp: at,
		TargetID:  "item-1",
		Added:     []feed.Permission{{UserEmail: "eve@example.com"}},
	}
	removed := feed.Activity{
		Timestamp: at,
		TargetID:  "item-1",
		Removed:   []feed.Permission{{UserEmail: "eve@example.com"}},
	}
	otherTarget := feed.Activity{
		Timestamp: at,
		TargetID:  "item-2",
		Added:     []feed.Permission{{UserEmail: "eve@example.com"}},
	}

	assert.NotEqual(t, activityKey(&added), activityKey(&removed))
	assert.NotEqual(t, activityKey(&added), activityKey(&otherTarget))
}
