package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chatrelay/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run constructs every component explicitly and wires them together; there
// is no package-level state. It returns once the server has drained after
// SIGINT or SIGTERM, so deferred cleanup always executes.
func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	registry := server.NewRegistry()
	hub := server.NewHub()
	presence := server.NewPresencePublisher(registry, hub)
	router := server.NewRouter(registry, hub, presence)

	mux := server.SetupRoutes(hub, router, cfg)
	httpServer := server.CreateServer(cfg.Port, mux)

	go hub.Run()
	log.Println("Hub started and ready to manage connections")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	return nil
}
