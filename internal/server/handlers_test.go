package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := Config{
		AllowedOrigins:  []string{"*"},
		MaxMessageSize:  4096,
		ShutdownTimeout: time.Second,
	}
	registry := NewRegistry()
	hub := NewHub()
	presence := NewPresencePublisher(registry, hub)
	router := NewRouter(registry, hub, presence)

	go hub.Run()
	t.Cleanup(func() {
		_ = hub.Shutdown(time.Second)
	})

	ts := httptest.NewServer(SetupRoutes(hub, router, cfg))
	t.Cleanup(ts.Close)
	return ts
}

func dialChat(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{ts.URL}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		require.NoError(t, err)
		raw = encoded
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func readRoster(t *testing.T, conn *websocket.Conn) []RosterEntry {
	t.Helper()

	env := readFrame(t, conn)
	require.Equal(t, EventUpdateUserList, env.Event)
	var roster []RosterEntry
	require.NoError(t, json.Unmarshal(env.Data, &roster))
	return roster
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "running")
}

func TestWebSocketEndpointRejectsNonGet(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Post(ts.URL+"/ws", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChatPageServed(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "/ws")
}

func TestMessageBeforeJoinOverWire(t *testing.T) {
	ts := startTestServer(t)
	conn := dialChat(t, ts)

	sendFrame(t, conn, EventMessage, map[string]string{"message": "too soon"})

	env := readFrame(t, conn)
	require.Equal(t, EventError, env.Event)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Equal(t, errUnknownSession, payload.Message)
}

// TestChatScenarioOverWire drives the full flow over real sockets: two
// users join, exchange a message, the reader acknowledges it, and a
// disconnect updates the survivor's roster.
func TestChatScenarioOverWire(t *testing.T) {
	ts := startTestServer(t)

	alice := dialChat(t, ts)
	sendFrame(t, alice, EventJoin, "alice")

	roster := readRoster(t, alice)
	require.Len(t, roster, 1)
	require.Equal(t, "alice", roster[0].Username)
	require.Equal(t, StatusOnline, roster[0].Status)
	require.Equal(t, EventActivityLog, readFrame(t, alice).Event)

	bob := dialChat(t, ts)
	sendFrame(t, bob, EventJoin, "bob")

	// Both connections see the two-user roster and the join notice.
	for _, conn := range []*websocket.Conn{alice, bob} {
		roster = readRoster(t, conn)
		require.Len(t, roster, 2)
		require.Equal(t, "alice", roster[0].Username)
		require.Equal(t, "bob", roster[1].Username)
		require.Equal(t, EventActivityLog, readFrame(t, conn).Event)
	}

	sendFrame(t, alice, EventMessage, map[string]string{"message": "hi"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readFrame(t, conn)
		require.Equal(t, EventMessage, env.Event)
		var msg ChatMessagePayload
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		require.Equal(t, ChatMessagePayload{Username: "alice", Message: "hi", Status: "sent"}, msg)
	}

	// Read receipt goes to alice alone.
	sendFrame(t, bob, EventMessageSeen, map[string]string{"sender": "alice"})
	env := readFrame(t, alice)
	require.Equal(t, EventMessageSeen, env.Event)
	var seen MessageSeenPayload
	require.NoError(t, json.Unmarshal(env.Data, &seen))
	require.Equal(t, MessageSeenPayload{Username: "bob", Status: "seen", Sender: "alice"}, seen)

	// Dropping alice's connection removes her session and tells bob. Frames
	// arrive in order per connection, so bob's next frame being the roster
	// also proves the read receipt was never delivered to him.
	require.NoError(t, alice.Close())
	roster = readRoster(t, bob)
	require.Len(t, roster, 1)
	require.Equal(t, "bob", roster[0].Username)

	env = readFrame(t, bob)
	require.Equal(t, EventActivityLog, env.Event)
	var logPayload ActivityLogPayload
	require.NoError(t, json.Unmarshal(env.Data, &logPayload))
	require.Equal(t, "alice left the chat.", logPayload.Message)
}

func TestTypingIndicatorOverWire(t *testing.T) {
	ts := startTestServer(t)

	alice := dialChat(t, ts)
	sendFrame(t, alice, EventJoin, "alice")
	readRoster(t, alice)
	readFrame(t, alice)

	sendFrame(t, alice, EventTyping, "alice is typing")

	env := readFrame(t, alice)
	require.Equal(t, EventTyping, env.Event)
	var typing TypingPayload
	require.NoError(t, json.Unmarshal(env.Data, &typing))
	require.Equal(t, TypingPayload{Username: "alice", Message: "alice is typing"}, typing)
}
