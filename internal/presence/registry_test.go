package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	reg.Register("c1")

	entry, ok := reg.Get("c1")
	require.True(t, ok)
	assert.Nil(t, entry.UserID)
	assert.Nil(t, entry.RoomID)

	reg.SetUser("c1", 7)
	room := 3
	reg.SetRoom("c1", &room)
	entry, _ = reg.Get("c1")
	require.NotNil(t, entry.UserID)
	require.NotNil(t, entry.RoomID)
	assert.Equal(t, 7, *entry.UserID)
	assert.Equal(t, 3, *entry.RoomID)

	reg.SetRoom("c1", nil)
	entry, _ = reg.Get("c1")
	assert.Nil(t, entry.RoomID)

	reg.Unregister("c1")
	_, ok = reg.Get("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryIgnoresUnknownConnections(t *testing.T) {
	reg := NewRegistry()
	room := 1

	reg.SetUser("ghost", 1)
	reg.SetRoom("ghost", &room)
	reg.Unregister("ghost")

	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Select(nil))
}

func TestRegistrySnapshotsAreCopies(t *testing.T) {
	reg := NewRegistry()
	reg.Register("c1")
	room := 5
	reg.SetRoom("c1", &room)
	room = 6

	entry, _ := reg.Get("c1")
	assert.Equal(t, 5, *entry.RoomID)

	*entry.RoomID = 9
	again, _ := reg.Get("c1")
	assert.Equal(t, 5, *again.RoomID)
}

func TestRegistrySelectIsSortedAndFiltered(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"c3", "c1", "c2"} {
		reg.Register(id)
	}
	reg.SetUser("c1", 10)
	reg.SetUser("c3", 10)
	reg.SetUser("c2", 11)

	all := reg.Select(nil)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{all[0].ConnID, all[1].ConnID, all[2].ConnID})

	mine := reg.ConnectionsForUser(10)
	require.Len(t, mine, 2)
	assert.Equal(t, "c1", mine[0].ConnID)
	assert.Equal(t, "c3", mine[1].ConnID)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%02d", i)
			reg.Register(id)
			reg.SetUser(id, i%5)
			room := i % 3
			reg.SetRoom(id, &room)
			_ = reg.ConnectionsForUser(i % 5)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, reg.Len())
	assert.Len(t, reg.ConnectionsForUser(0), 10)
}
