package server

import "github.com/samber/lo"

// Broadcaster delivers named events to connections. Both modes are best
// effort: delivery to a connection that has since gone away is silently
// dropped and never blocks the caller.
type Broadcaster interface {
	BroadcastToRoom(event string, payload any)
	DeliverTo(connID, event string, payload any)
}

// PresencePublisher pushes roster snapshots to the room whenever membership
// or a session's status changes.
type PresencePublisher struct {
	registry *Registry
	room     Broadcaster
}

// NewPresencePublisher returns a publisher reading from registry and
// broadcasting through room.
func NewPresencePublisher(registry *Registry, room Broadcaster) *PresencePublisher {
	return &PresencePublisher{registry: registry, room: room}
}

// PublishRoster broadcasts update_user_list with the current registry
// snapshot. Called after every join, leave, disconnect, and status change.
func (p *PresencePublisher) PublishRoster() {
	roster := lo.Map(p.registry.Snapshot(), func(s Session, _ int) RosterEntry {
		return RosterEntry{
			Username:   s.Username,
			Status:     s.Status,
			LastActive: s.LastActive.Format(lastActiveLayout),
		}
	})
	p.room.BroadcastToRoom(EventUpdateUserList, roster)
}

// SetStatusAndPublish updates a session's status and rebroadcasts the
// roster. No inbound event triggers it; it is the hook for idle-timeout or
// heartbeat logic a deployment may add (marking a connection Away). A
// connection with no session is left alone and nothing is published.
func (p *PresencePublisher) SetStatusAndPublish(connID string, status Status) {
	if p.registry.SetStatus(connID, status) {
		p.PublishRoster()
	}
}
