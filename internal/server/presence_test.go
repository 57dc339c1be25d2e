package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRosterBroadcastsSnapshot(t *testing.T) {
	registry := NewRegistry()
	room := &recordingRoom{}
	presence := NewPresencePublisher(registry, room)

	registry.Put("conn-a", "alice")
	registry.Put("conn-b", "bob")

	presence.PublishRoster()

	require.Len(t, room.frames, 1)
	require.Empty(t, room.frames[0].target)
	require.Equal(t, EventUpdateUserList, room.frames[0].event)

	roster := room.frames[0].payload.([]RosterEntry)
	require.Len(t, roster, 2)
	require.Equal(t, "alice", roster[0].Username)
	require.Equal(t, "bob", roster[1].Username)
	require.Equal(t, StatusOnline, roster[0].Status)
	require.NotEmpty(t, roster[0].LastActive)
}

func TestPublishRosterWithEmptyRegistry(t *testing.T) {
	room := &recordingRoom{}
	presence := NewPresencePublisher(NewRegistry(), room)

	presence.PublishRoster()

	require.Len(t, room.frames, 1)
	require.Empty(t, room.frames[0].payload.([]RosterEntry))
}

func TestSetStatusAndPublish(t *testing.T) {
	registry := NewRegistry()
	room := &recordingRoom{}
	presence := NewPresencePublisher(registry, room)
	registry.Put("conn-a", "alice")

	presence.SetStatusAndPublish("conn-a", StatusAway)

	require.Len(t, room.frames, 1)
	roster := room.frames[0].payload.([]RosterEntry)
	require.Equal(t, StatusAway, roster[0].Status)
}

func TestSetStatusAndPublishUnknownConnectionPublishesNothing(t *testing.T) {
	room := &recordingRoom{}
	presence := NewPresencePublisher(NewRegistry(), room)

	presence.SetStatusAndPublish("conn-x", StatusAway)

	require.Empty(t, room.frames)
}
