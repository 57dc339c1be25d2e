// Package server routes inbound events: each handler is a short
// validate-then-effect-then-broadcast sequence over the registry and the
// room, and a failure on one connection never touches another connection's
// state.
package server

import (
	"encoding/json"
	"log"

	"github.com/go-playground/validator/v10"
)

// Error strings surfaced to clients. A connection without a session gets
// the same answer for every gated event.
const (
	errInvalidUsername = "Please enter a valid username."
	errUnknownSession  = "User not found. Please refresh the page and try again."
	errEmptyMessage    = "Message cannot be empty."
	errMissingSender   = "Sender information missing. Please try again."
	errMalformedFrame  = "Malformed event. Please try again."
)

// Router validates and dispatches inbound events. It owns no state of its
// own; all session state lives in the registry and all delivery goes
// through the Broadcaster.
type Router struct {
	registry *Registry
	room     Broadcaster
	presence *PresencePublisher
	validate *validator.Validate
}

// NewRouter wires a router to its registry, room, and presence publisher.
func NewRouter(registry *Registry, room Broadcaster, presence *PresencePublisher) *Router {
	return &Router{
		registry: registry,
		room:     room,
		presence: presence,
		validate: validator.New(),
	}
}

// Dispatch decodes one raw frame from connID and handles it. Malformed
// frames earn the sender an error event; unknown event names are logged and
// dropped, matching the original protocol's tolerance for unregistered
// names.
func (rt *Router) Dispatch(connID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Malformed frame from %s: %v", connID, err)
		rt.sendError(connID, errMalformedFrame)
		return
	}

	ev, err := DecodeInbound(env)
	if err != nil {
		if _, unknown := err.(ErrUnknownEvent); unknown {
			log.Printf("Dropping frame from %s: %v", connID, err)
			return
		}
		log.Printf("Undecodable %s frame from %s: %v", env.Event, connID, err)
		rt.sendError(connID, errMalformedFrame)
		return
	}

	rt.HandleEvent(connID, ev)
}

// HandleEvent runs the handler for a decoded event. The switch is
// exhaustive over the InboundEvent variants.
func (rt *Router) HandleEvent(connID string, ev InboundEvent) {
	switch ev := ev.(type) {
	case Join:
		rt.handleJoin(connID, ev)
	case ChatMessage:
		rt.handleMessage(connID, ev)
	case MessageSeen:
		rt.handleMessageSeen(connID, ev)
	case Typing:
		rt.handleTyping(connID, ev)
	case Leave:
		rt.handleLeave(connID)
	case Disconnect:
		rt.handleDisconnect(connID)
	default:
		log.Printf("No handler for event %T from %s", ev, connID)
	}
}

func (rt *Router) handleJoin(connID string, ev Join) {
	if err := rt.validate.Struct(ev); err != nil {
		rt.sendError(connID, errInvalidUsername)
		return
	}

	log.Printf("%s with connection %s has joined the chat", ev.Username, connID)
	rt.registry.Put(connID, ev.Username)
	rt.presence.PublishRoster()
	rt.room.BroadcastToRoom(EventActivityLog, ActivityLogPayload{
		Message: ev.Username + " joined the chat.",
	})
}

func (rt *Router) handleMessage(connID string, ev ChatMessage) {
	session, ok := rt.registry.Get(connID)
	if !ok {
		rt.sendError(connID, errUnknownSession)
		return
	}
	if err := rt.validate.Struct(ev); err != nil {
		rt.sendError(connID, errEmptyMessage)
		return
	}

	rt.room.BroadcastToRoom(EventMessage, ChatMessagePayload{
		Username: session.Username,
		Message:  ev.Text,
		Status:   "sent",
	})
}

// handleMessageSeen resolves the receipt's original sender back to a
// connection and delivers there only. An unresolvable sender is dropped
// without a word to either party; the receipt is stale, not wrong.
func (rt *Router) handleMessageSeen(connID string, ev MessageSeen) {
	session, ok := rt.registry.Get(connID)
	if !ok {
		rt.sendError(connID, errUnknownSession)
		return
	}
	if err := rt.validate.Struct(ev); err != nil {
		rt.sendError(connID, errMissingSender)
		return
	}

	senderID, found := rt.registry.FindByUsername(ev.Sender)
	if !found {
		log.Printf("Dropping read receipt from %s: no session for sender %q", session.Username, ev.Sender)
		return
	}

	rt.room.DeliverTo(senderID, EventMessageSeen, MessageSeenPayload{
		Username: session.Username,
		Status:   "seen",
		Sender:   ev.Sender,
	})
}

func (rt *Router) handleTyping(connID string, ev Typing) {
	session, ok := rt.registry.Get(connID)
	if !ok {
		rt.sendError(connID, errUnknownSession)
		return
	}

	rt.room.BroadcastToRoom(EventTyping, TypingPayload{
		Username: session.Username,
		Message:  ev.Text,
	})
}

func (rt *Router) handleLeave(connID string) {
	session, ok := rt.registry.Get(connID)
	if !ok {
		rt.sendError(connID, errUnknownSession)
		return
	}

	log.Printf("%s with connection %s has left the chat", session.Username, connID)
	rt.registry.Remove(connID)
	rt.presence.PublishRoster()
	rt.room.BroadcastToRoom(EventActivityLog, ActivityLogPayload{
		Message: session.Username + " left the chat.",
	})
}

// handleDisconnect is the transport-close path. Unlike leave there is no
// error event to send; the connection is already gone, and a disconnect
// from an unjoined connection is a pure no-op.
func (rt *Router) handleDisconnect(connID string) {
	session, ok := rt.registry.Get(connID)
	if !ok {
		return
	}

	log.Printf("%s with connection %s has left the chat", session.Username, connID)
	rt.registry.Remove(connID)
	rt.presence.PublishRoster()
	rt.room.BroadcastToRoom(EventActivityLog, ActivityLogPayload{
		Message: session.Username + " left the chat.",
	})
}

func (rt *Router) sendError(connID, message string) {
	rt.room.DeliverTo(connID, EventError, ErrorPayload{Message: message})
}
