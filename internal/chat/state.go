package chat

import (
	"fmt"

	"community-chat/internal/models"
)

// RelationState is a user's relationship to one group.
type RelationState int

const (
	NoRelation RelationState = iota
	Pending
	Member
	Admin
)

func (s RelationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Member:
		return "member"
	case Admin:
		return "admin"
	default:
		return "none"
	}
}

// JoinAction drives the join-request state machine.
type JoinAction string

const (
	ActionRequest JoinAction = "request"
	ActionApprove JoinAction = "approve"
	ActionReject  JoinAction = "reject"
)

// RelationOf derives the user's state from the stored group. Admin wins over
// member; a request only counts when the user holds no other relation.
func RelationOf(group models.ChatGroup, userID int) RelationState {
	switch {
	case group.HasAdmin(userID):
		return Admin
	case group.HasMember(userID):
		return Member
	case group.HasRequest(userID):
		return Pending
	default:
		return NoRelation
	}
}

// Transition returns the state reached by applying action to from.
func Transition(from RelationState, action JoinAction) (RelationState, error) {
	switch {
	case from == NoRelation && action == ActionRequest:
		return Pending, nil
	case from == Pending && action == ActionApprove:
		return Member, nil
	case from == Pending && action == ActionReject:
		return NoRelation, nil
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
}
