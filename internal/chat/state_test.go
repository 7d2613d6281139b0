package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"community-chat/internal/models"
)

func TestRelationOf(t *testing.T) {
	group := models.ChatGroup{Members: []int{1, 2}, Admins: []int{2, 3}, Requests: []int{4}}

	assert.Equal(t, Member, RelationOf(group, 1))
	assert.Equal(t, Admin, RelationOf(group, 2))
	assert.Equal(t, Admin, RelationOf(group, 3))
	assert.Equal(t, Pending, RelationOf(group, 4))
	assert.Equal(t, NoRelation, RelationOf(group, 5))
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    RelationState
		action  JoinAction
		want    RelationState
		invalid bool
	}{
		{NoRelation, ActionRequest, Pending, false},
		{Pending, ActionApprove, Member, false},
		{Pending, ActionReject, NoRelation, false},
		{Pending, ActionRequest, Pending, true},
		{Member, ActionRequest, Member, true},
		{Admin, ActionRequest, Admin, true},
		{NoRelation, ActionApprove, NoRelation, true},
		{Member, ActionApprove, Member, true},
		{Member, ActionReject, Member, true},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+string(tt.action), func(t *testing.T) {
			got, err := Transition(tt.from, tt.action)
			assert.Equal(t, tt.want, got)
			if tt.invalid {
				assert.True(t, errors.Is(err, ErrInvalidTransition))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
