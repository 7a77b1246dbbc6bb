package feed

import "time"

// Item is a drive item as returned by the metadata lookup endpoint.
// Fields are normalized from the API response — callers never see raw JSON.
type Item struct {
	ID      string
	Name    string
	Parents []string // ordered; the first entry is the canonical parent
	DriveID string   // containing shared drive, empty for user-owned items
}

// Drive identifies a shared drive (container) by ID and display name.
type Drive struct {
	ID   string
	Name string
}

// Group is a directory group as returned by the group listing endpoint.
type Group struct {
	Email       string
	Name        string
	MemberCount int
}

// Member is a single directory group member.
type Member struct {
	Email string
	Role  string
}

// Activity is one activity feed record scoped to a permission change.
// A single activity carries every permission entry granted or revoked by
// one user action; the collector fans these out into individual events.
type Activity struct {
	Timestamp time.Time
	Actor     string // primary actor identifier, empty when unattributed
	TargetID  string
	Target    string // display title of the changed item
	Added     []Permission
	Removed   []Permission
}

// Permission is one permission entry inside an activity record. The grantee
// hint fields come straight from the API and may be ambiguous or absent;
// classification into a single entity kind happens in the collector.
type Permission struct {
	Role       string
	UserEmail  string // set for grants to an individual account
	GroupEmail string // set for grants to a directory group
	Domain     string // set for domain-wide grants
	Anyone     bool   // set for anyone-with-link grants
}

// ActivityPage is one page of activity query results.
type ActivityPage struct {
	Activities    []Activity
	NextPageToken string
}

// GroupPage is one page of group enumeration results.
type GroupPage struct {
	Groups        []Group
	NextPageToken string
}

// MemberPage is one page of group member enumeration results.
type MemberPage struct {
	Members       []Member
	NextPageToken string
}

// ItemPage is one page of shared-item search results.
type ItemPage struct {
	Items         []Item
	NextPageToken string
}

// --- Raw wire types ---
// Unexported structs matching the JSON shapes of the activity API. Decoded
// once per response and immediately converted to the normalized types above.

type rawActivity struct {
	Timestamp string      `json:"timestamp"`
	Actors    []rawActor  `json:"actors"`
	Targets   []rawTarget `json:"targets"`
	Detail    rawDetail   `json:"primaryActionDetail"`
}

type rawActor struct {
	User *struct {
		KnownUser *struct {
			PersonName string `json:"personName"`
			Email      string `json:"email"`
		} `json:"knownUser"`
	} `json:"user"`
}

type rawTarget struct {
	DriveItem *struct {
		Name  string `json:"name"` // resource name, "items/<id>"
		Title string `json:"title"`
	} `json:"driveItem"`
}

type rawDetail struct {
	PermissionChange *struct {
		Added   []rawPermission `json:"addedPermissions"`
		Removed []rawPermission `json:"removedPermissions"`
	} `json:"permissionChange"`
}

type rawPermission struct {
	Role string `json:"role"`
	User *struct {
		KnownUser *struct {
			PersonName string `json:"personName"`
			Email      string `json:"email"`
		} `json:"knownUser"`
	} `json:"user"`
	Group *struct {
		Email string `json:"email"`
		Title string `json:"title"`
	} `json:"group"`
	Domain *struct {
		Name string `json:"name"`
	} `json:"domain"`
	Anyone *struct{} `json:"anyone"`
}

type rawItem struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Parents []string `json:"parents"`
	DriveID string   `json:"driveId"`
}
