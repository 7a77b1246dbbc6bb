package collector

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/mlaakso/sharewatch/internal/feed"
)

// ChangeKind says whether a permission entry was granted or revoked.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
)

// EntityKind is the strict tagged classification of a permission grantee.
// Raw records can carry ambiguous or multiple hints; classification happens
// once, at the boundary, so nothing downstream inspects ad hoc shapes.
type EntityKind string

const (
	EntityUser    EntityKind = "user"
	EntityGroup   EntityKind = "group"
	EntityDomain  EntityKind = "domain"
	EntityAnyone  EntityKind = "anyone"
	EntityUnknown EntityKind = "unknown"
)

// Entity is a classified permission grantee.
type Entity struct {
	Kind       EntityKind
	Identifier string // email, domain name, or empty for anyone/unknown
}

// ChangeEvent is one permission entry added to or removed from a watched
// item. Immutable once built.
type ChangeEvent struct {
	TargetID   string
	TargetName string
	Change     ChangeKind
	Entity     Entity
	Role       string
	Actor      string // who made the change, empty when unattributed
	When       time.Time

	// NotifyTarget routes delivery; copied from the watched resource the
	// event was observed under.
	NotifyTarget string
}

// classifyEntity maps a raw permission entry to a single entity. Precedence
// is fixed — user, group, domain, anyone, unknown — because user-level
// grants are the highest-priority alert class when a record carries more
// than one hint.
func classifyEntity(p *feed.Permission) Entity {
	switch {
	case p.UserEmail != "":
		return Entity{Kind: EntityUser, Identifier: p.UserEmail}
	case p.GroupEmail != "":
		return Entity{Kind: EntityGroup, Identifier: p.GroupEmail}
	case p.Domain != "":
		return Entity{Kind: EntityDomain, Identifier: p.Domain}
	case p.Anyone:
		return Entity{Kind: EntityAnyone}
	default:
		return Entity{Kind: EntityUnknown}
	}
}

// eventsFromActivity fans one activity record out into change events, one
// per permission entry added or removed.
func eventsFromActivity(a *feed.Activity, notifyTarget string) []ChangeEvent {
	events := make([]ChangeEvent, 0, len(a.Added)+len(a.Removed))

	appendEvents := func(perms []feed.Permission, change ChangeKind) {
		for i := range perms {
			events = append(events, ChangeEvent{
				TargetID:     a.TargetID,
				TargetName:   norm.NFC.String(a.Target),
				Change:       change,
				Entity:       classifyEntity(&perms[i]),
				Role:         perms[i].Role,
				Actor:        a.Actor,
				When:         a.Timestamp,
				NotifyTarget: notifyTarget,
			})
		}
	}

	appendEvents(a.Added, ChangeAdded)
	appendEvents(a.Removed, ChangeRemoved)

	return events
}

// activityKey builds the deduplication key for one activity: target ID,
// the sorted set of grantee identifiers, and the timestamp truncated to a
// one-minute bucket. Raw records repeating the same logical change — across
// overlapping watched subtrees or a re-scanned window after a crash —
// collapse onto the same key.
func activityKey(a *feed.Activity) string {
	ids := make([]string, 0, len(a.Added)+len(a.Removed))

	collect := func(perms []feed.Permission, prefix string) {
		for i := range perms {
			e := classifyEntity(&perms[i])
			ids = append(ids, prefix+string(e.Kind)+":"+e.Identifier)
		}
	}

	collect(a.Added, "+")
	collect(a.Removed, "-")
	sort.Strings(ids)

	bucket := a.Timestamp.Truncate(time.Minute).Unix()

	var b strings.Builder
	b.WriteString(a.TargetID)
	b.WriteByte('|')
	b.WriteString(strings.Join(ids, ","))
	b.WriteByte('|')
	b.WriteString(time.Unix(bucket, 0).UTC().Format(time.RFC3339))

	return b.String()
}
