package models

import "time"

// GroupType controls whether a group is discoverable.
type GroupType string

const (
	GroupPrivate GroupType = "private"
	GroupPublic  GroupType = "public"
)

// Relation is one row of a user's relationship to a group.
type Relation string

const (
	RelationMember  Relation = "member"
	RelationAdmin   Relation = "admin"
	RelationRequest Relation = "request"
)

// ChatGroup is a group chat. A user may be both member and admin; a user in
// Requests is in neither.
type ChatGroup struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Media       *MediaRef `json:"media,omitempty"`
	Members     []int     `json:"members"`
	Admins      []int     `json:"admins"`
	Requests    []int     `json:"requests"`
	GroupType   GroupType `json:"group_type"`
	CreatedBy   int       `json:"created_by"`
	UpdatedBy   *int      `json:"updated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasMember reports whether userID is in Members.
func (g ChatGroup) HasMember(userID int) bool { return containsID(g.Members, userID) }

// HasAdmin reports whether userID is in Admins.
func (g ChatGroup) HasAdmin(userID int) bool { return containsID(g.Admins, userID) }

// HasRequest reports whether userID is in Requests.
func (g ChatGroup) HasRequest(userID int) bool { return containsID(g.Requests, userID) }

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// GroupDraft holds the fields needed to create a group.
type GroupDraft struct {
	Title       string
	Description string
	GroupType   GroupType
	Members     []int
	CreatedBy   int
}

// GroupPatch updates mutable group fields; nil fields are left unchanged.
type GroupPatch struct {
	Title       *string
	Description *string
	GroupType   *GroupType
	UpdatedBy   int
}

// GroupFilter narrows ListGroups.
type GroupFilter struct {
	UserID        int
	IncludePublic bool
	All           bool
	Search        string
	Page          int
	Limit         int
}
