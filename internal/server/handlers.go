// Package server exposes the HTTP handlers: the WebSocket upgrade endpoint,
// a health check, and the built-in browser chat page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// NewWebSocketHandler returns the /ws handler. It upgrades the request,
// applies the configured read limit, and hands the connection to the hub,
// which starts the read/write pumps. The connection enters the room
// Unjoined; only a join event creates a session.
func NewWebSocketHandler(hub *Hub, router *Router, cfg Config) http.HandlerFunc {
	checker := newOriginChecker(cfg.AllowedOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checker.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}
		conn.SetReadLimit(cfg.MaxMessageSize)

		hub.Register(NewClient(conn, hub, router, r.RemoteAddr))
	}
}

// HealthHandler reports process liveness in plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "chatrelay is running")
}

// ChatPageHandler serves the browser chat client: join form, message input,
// typing indicator, read receipts, and the live roster.
func ChatPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, chatPageHTML); err != nil {
		log.Printf("Error writing chat page: %v", err)
	}
}

const chatPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>chatrelay</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; display: flex; gap: 20px; }
        #main { flex: 3; }
        #sidebar { flex: 1; border-left: 1px solid #ccc; padding-left: 15px; }
        #messages {
            border: 1px solid #ccc;
            height: 320px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #typing { color: gray; font-style: italic; min-height: 1.2em; }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:disabled { background-color: #aaa; }
        .log { color: gray; font-style: italic; }
        .error { color: #b00020; }
        .seen { color: green; font-size: 0.85em; }
        ul { list-style: none; padding-left: 0; }
    </style>
</head>
<body>
    <div id="main">
        <h1>chatrelay</h1>
        <div>
            <input type="text" id="usernameInput" placeholder="Your name...">
            <button id="joinButton" onclick="join()">Join</button>
            <button id="leaveButton" onclick="leave()" disabled>Leave</button>
        </div>
        <div id="messages"></div>
        <div id="typing"></div>
        <div>
            <input type="text" id="messageInput" placeholder="Type a message..." disabled>
            <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
        </div>
    </div>
    <div id="sidebar">
        <h3>Online</h3>
        <ul id="userList"></ul>
    </div>

    <script>
        let ws = null;
        let username = null;
        let lastSenderSeen = null;
        const messagesDiv = document.getElementById('messages');
        const typingDiv = document.getElementById('typing');
        const userList = document.getElementById('userList');
        const messageInput = document.getElementById('messageInput');

        function emit(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: event, data: data}));
            }
        }

        function addLine(html, cls) {
            const el = document.createElement('div');
            el.className = cls || '';
            el.innerHTML = html;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function setJoined(joined) {
            document.getElementById('joinButton').disabled = joined;
            document.getElementById('leaveButton').disabled = !joined;
            document.getElementById('sendButton').disabled = !joined;
            messageInput.disabled = !joined;
        }

        function connect(onOpen) {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = onOpen;
            ws.onclose = function() { setJoined(false); addLine('Connection closed', 'log'); ws = null; };
            ws.onmessage = function(raw) {
                const frame = JSON.parse(raw.data);
                handle(frame.event, frame.data);
            };
        }

        function handle(event, data) {
            switch (event) {
            case 'message':
                addLine('<strong>' + data.username + ':</strong> ' + data.message);
                if (data.username !== username) {
                    lastSenderSeen = data.username;
                    emit('message_seen', {sender: data.username});
                }
                break;
            case 'message_seen':
                addLine(data.username + ' has seen your message', 'seen');
                break;
            case 'typing':
                typingDiv.textContent = data.message ? data.username + ' is typing...' : '';
                break;
            case 'update_user_list':
                userList.innerHTML = '';
                (data || []).forEach(function(u) {
                    const li = document.createElement('li');
                    li.textContent = u.username + ' (' + u.status + ', ' + u.last_active + ')';
                    userList.appendChild(li);
                });
                break;
            case 'activity_log':
                addLine(data.message, 'log');
                typingDiv.textContent = '';
                break;
            case 'error':
                addLine(data.message, 'error');
                break;
            }
        }

        function join() {
            const name = document.getElementById('usernameInput').value.trim();
            if (!ws) {
                connect(function() { username = name; emit('join', name); setJoined(true); });
            } else {
                username = name;
                emit('join', name);
                setJoined(true);
            }
        }

        function leave() {
            emit('leave');
            setJoined(false);
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            emit('message', {message: text});
            emit('typing', '');
            messageInput.value = '';
        }

        messageInput.addEventListener('input', function() {
            emit('typing', messageInput.value ? username + ' is typing' : '');
        });
        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`
