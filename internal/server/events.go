// Package server defines the event envelope exchanged over the wire and the
// typed inbound/outbound payloads the router works with.
package server

import (
	"encoding/json"
	"fmt"
)

// Event names accepted from clients.
const (
	EventJoin        = "join"
	EventMessage     = "message"
	EventMessageSeen = "message_seen"
	EventTyping      = "typing"
	EventLeave       = "leave"
)

// Event names emitted by the server.
const (
	EventError          = "error"
	EventUpdateUserList = "update_user_list"
	EventActivityLog    = "activity_log"
)

// Envelope is the wire frame for every event in both directions: an event
// name plus an event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InboundEvent is the closed set of events a connection can produce. The
// router dispatches on the concrete type, so adding a variant without a
// handler is a compile-time hole rather than a silently ignored name.
type InboundEvent interface {
	inboundEvent()
}

// Join announces a display name for the connection.
type Join struct {
	Username string `validate:"required"`
}

// ChatMessage is a text message relayed to the whole room.
type ChatMessage struct {
	Text string `json:"message" validate:"required"`
}

// MessageSeen is a read receipt addressed to the named original sender.
type MessageSeen struct {
	Sender string `json:"sender" validate:"required"`
}

// Typing carries the typing indicator's content, forwarded verbatim.
type Typing struct {
	Text string
}

// Leave is an explicit departure from the room.
type Leave struct{}

// Disconnect is transport-generated when the connection closes; clients
// never send it.
type Disconnect struct{}

func (Join) inboundEvent()        {}
func (ChatMessage) inboundEvent() {}
func (MessageSeen) inboundEvent() {}
func (Typing) inboundEvent()      {}
func (Leave) inboundEvent()       {}
func (Disconnect) inboundEvent()  {}

// ErrUnknownEvent reports an envelope whose event name is not part of the
// inbound protocol.
type ErrUnknownEvent struct {
	Name string
}

func (e ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event %q", e.Name)
}

// DecodeInbound maps an envelope onto its typed event. join and typing carry
// a bare JSON string; message and message_seen carry an object; leave has no
// payload. Field-level validation is the router's job, not the decoder's.
func DecodeInbound(env Envelope) (InboundEvent, error) {
	switch env.Event {
	case EventJoin:
		var username string
		if err := unmarshalData(env.Data, &username); err != nil {
			return nil, fmt.Errorf("join payload: %w", err)
		}
		return Join{Username: username}, nil

	case EventMessage:
		var ev ChatMessage
		if err := unmarshalData(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("message payload: %w", err)
		}
		return ev, nil

	case EventMessageSeen:
		var ev MessageSeen
		if err := unmarshalData(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("message_seen payload: %w", err)
		}
		return ev, nil

	case EventTyping:
		var text string
		if err := unmarshalData(env.Data, &text); err != nil {
			return nil, fmt.Errorf("typing payload: %w", err)
		}
		return Typing{Text: text}, nil

	case EventLeave:
		return Leave{}, nil

	default:
		return nil, ErrUnknownEvent{Name: env.Event}
	}
}

// unmarshalData treats an absent payload as the zero value so that the
// router's required-field validation produces the user-facing error instead
// of a JSON parse failure.
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// ErrorPayload is sent only to the connection that triggered the failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ActivityLogPayload announces membership changes to the room.
type ActivityLogPayload struct {
	Message string `json:"message"`
}

// ChatMessagePayload is the room-broadcast form of a relayed message.
type ChatMessagePayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

// MessageSeenPayload is delivered to the original sender only.
type MessageSeenPayload struct {
	Username string `json:"username"`
	Status   string `json:"status"`
	Sender   string `json:"sender"`
}

// TypingPayload is the room-broadcast form of a typing indicator.
type TypingPayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// RosterEntry is one element of the update_user_list broadcast.
type RosterEntry struct {
	Username   string `json:"username"`
	Status     Status `json:"status"`
	LastActive string `json:"last_active"`
}
