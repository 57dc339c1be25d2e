// Package server implements a single-room chat relay over WebSocket.
//
// Connections arrive through the /ws upgrade handler and are owned by the
// Hub, which provides the two delivery modes every feature is built on:
// room broadcast and targeted delivery. The Registry tracks which
// connections have joined and under what name, the Router validates and
// handles each inbound event, and the PresencePublisher pushes roster
// snapshots whenever membership or status changes. State is in-memory and
// lives exactly as long as the process.
package server
