// Package server wires the HTTP handlers into a ServeMux.
package server

import "net/http"

// SetupRoutes builds the mux: the chat page at the root, the WebSocket
// endpoint, and a health check.
func SetupRoutes(hub *Hub, router *Router, cfg Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ChatPageHandler)
	mux.HandleFunc("/ws", NewWebSocketHandler(hub, router, cfg))
	mux.HandleFunc("/health", HealthHandler)
	return mux
}
