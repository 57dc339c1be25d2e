package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryPutAndGet(t *testing.T) {
	registry := NewRegistry()

	_, ok := registry.Get("conn-a")
	require.False(t, ok)

	registry.Put("conn-a", "alice")

	session, ok := registry.Get("conn-a")
	require.True(t, ok)
	require.Equal(t, "alice", session.Username)
	require.Equal(t, StatusOnline, session.Status)
	require.False(t, session.LastActive.IsZero())
	require.Equal(t, 1, registry.Len())
}

func TestRegistryPutOverwritesInPlace(t *testing.T) {
	registry := NewRegistry()
	registry.Put("conn-a", "alice")
	registry.Put("conn-b", "bob")

	// Re-joining on the same connection replaces the session but keeps its
	// position in insertion order.
	registry.Put("conn-a", "alicia")

	require.Equal(t, 2, registry.Len())
	snapshot := registry.Snapshot()
	require.Equal(t, "alicia", snapshot[0].Username)
	require.Equal(t, "bob", snapshot[1].Username)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	registry.Put("conn-a", "alice")

	registry.Remove("conn-a")
	require.Zero(t, registry.Len())

	// Removing again is a no-op, not an error.
	registry.Remove("conn-a")
	registry.Remove("never-existed")
	require.Zero(t, registry.Len())
}

func TestRegistrySetStatus(t *testing.T) {
	registry := NewRegistry()
	registry.Put("conn-a", "alice")
	before, _ := registry.Get("conn-a")

	require.True(t, registry.SetStatus("conn-a", StatusAway))

	session, _ := registry.Get("conn-a")
	require.Equal(t, StatusAway, session.Status)
	require.GreaterOrEqual(t, session.LastActive.UnixNano(), before.LastActive.UnixNano())

	require.False(t, registry.SetStatus("conn-x", StatusAway))
}

func TestRegistryFindByUsername(t *testing.T) {
	registry := NewRegistry()
	registry.Put("conn-a", "alice")
	registry.Put("conn-b", "bob")

	connID, ok := registry.FindByUsername("bob")
	require.True(t, ok)
	require.Equal(t, "conn-b", connID)

	_, ok = registry.FindByUsername("ghost")
	require.False(t, ok)
}

func TestRegistryFindByUsernameFirstMatchInInsertionOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Put("conn-1", "alice")
	registry.Put("conn-2", "alice")
	registry.Put("conn-3", "alice")

	connID, ok := registry.FindByUsername("alice")
	require.True(t, ok)
	require.Equal(t, "conn-1", connID)

	// After the first match leaves, the next oldest wins.
	registry.Remove("conn-1")
	connID, ok = registry.FindByUsername("alice")
	require.True(t, ok)
	require.Equal(t, "conn-2", connID)
}

func TestRegistrySnapshotIsInsertionOrderedCopy(t *testing.T) {
	registry := NewRegistry()
	registry.Put("conn-c", "carol")
	registry.Put("conn-a", "alice")
	registry.Put("conn-b", "bob")
	registry.Remove("conn-a")

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)
	require.Equal(t, "carol", snapshot[0].Username)
	require.Equal(t, "bob", snapshot[1].Username)

	// The snapshot is a copy; mutating it leaves the registry untouched.
	snapshot[0].Username = "mallory"
	fresh, _ := registry.Get("conn-c")
	require.Equal(t, "carol", fresh.Username)
}
