package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/easelhq/easel/internal/api"
	"github.com/easelhq/easel/internal/registry"
)

func main() {
	maxUndo := 100
	if v := os.Getenv("EASEL_MAX_UNDO"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Fatalf("Invalid EASEL_MAX_UNDO: %q", v)
		}
		maxUndo = n
	}

	manager := registry.NewManager(maxUndo)
	apiHandler := api.New(manager)

	http.HandleFunc("/whiteboard/", apiHandler.WhiteboardRouter)
	http.HandleFunc("/health", apiHandler.HealthHandler)
	http.HandleFunc("/api/stats", apiHandler.StatsHandler)
	http.HandleFunc("/api/whiteboards", apiHandler.ListWhiteboardsHandler)

	handler := corsMiddleware(http.DefaultServeMux)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Easel server starting on :%s", port)
	log.Println("Endpoints:")
	log.Println("  - Create:     GET /whiteboard/create/{conversation_id}")
	log.Println("  - WebSocket:  GET /whiteboard/{id}/ws")
	log.Println("  - Board:      GET/DELETE /whiteboard/{id}")
	log.Println("  - Export:     GET /whiteboard/{id}/export?format=svg|pdf|json")
	log.Println("  - Boards:     GET /api/whiteboards")
	log.Println("  - Health:     GET /health")
	log.Println("  - Stats:      GET /api/stats")

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
