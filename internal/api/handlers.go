package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/easelhq/easel/internal/export"
	"github.com/easelhq/easel/internal/registry"
	"github.com/easelhq/easel/internal/ws"
)

type API struct {
	manager *registry.Manager
}

func New(manager *registry.Manager) *API {
	return &API{manager: manager}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"active_whiteboards": a.manager.BoardCount(),
		"active_clients":     a.manager.ClientCount(),
		"total_shapes":       a.manager.ShapeCount(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

// ListWhiteboardsHandler returns metadata for every live whiteboard
func (a *API) ListWhiteboardsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	boards := a.manager.ListBoards()
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"whiteboards": boards,
		"count":       len(boards),
	})
}

type createResponse struct {
	WhiteboardID   uuid.UUID `json:"whiteboard_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// CreateHandler allocates a new whiteboard bound to a conversation.
// Path: /whiteboard/create/{conversation_id}
func (a *API) CreateHandler(w http.ResponseWriter, r *http.Request, conversationRaw string) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	conversationID, err := uuid.Parse(conversationRaw)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "Untitled whiteboard"
	}

	boardID := a.manager.CreateBoard(conversationID, name)
	jsonResponse(w, http.StatusOK, createResponse{
		WhiteboardID:   boardID,
		ConversationID: conversationID,
	})
}

func (a *API) GetHandler(w http.ResponseWriter, r *http.Request, boardID uuid.UUID) {
	info, err := a.manager.Info(boardID)
	if err != nil {
		errorResponse(w, http.StatusNotFound, "Whiteboard not found")
		return
	}
	jsonResponse(w, http.StatusOK, info)
}

func (a *API) DeleteHandler(w http.ResponseWriter, r *http.Request, boardID uuid.UUID) {
	if !a.manager.DeleteBoard(boardID) {
		errorResponse(w, http.StatusNotFound, "Whiteboard not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Whiteboard deleted"})
}

// ExportHandler renders the board in the requested format and serves it as
// a download. Path: /whiteboard/{id}/export?format=svg|pdf|json[&padding=N][&scale=F]
func (a *API) ExportHandler(w http.ResponseWriter, r *http.Request, boardID uuid.UUID) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := export.DefaultOptions()
	if v := r.URL.Query().Get("padding"); v != "" {
		padding, err := strconv.ParseFloat(v, 64)
		if err != nil || padding < 0 {
			errorResponse(w, http.StatusBadRequest, "Invalid padding")
			return
		}
		opts.Padding = padding
	}
	if v := r.URL.Query().Get("scale"); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil || scale <= 0 {
			errorResponse(w, http.StatusBadRequest, "Invalid scale")
			return
		}
		opts.Scale = scale
	}

	snap, info, err := a.manager.Snapshot(boardID)
	if err != nil {
		errorResponse(w, http.StatusNotFound, "Whiteboard not found")
		return
	}

	result, err := export.Render(export.Document{Name: info.Name, Shapes: snap.Shapes}, format, opts)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}

// WhiteboardRouter dispatches everything under /whiteboard/:
//
//	GET        /whiteboard/create/{conversation_id}
//	GET        /whiteboard/{id}
//	DELETE     /whiteboard/{id}
//	GET        /whiteboard/{id}/ws
//	GET        /whiteboard/{id}/export?format=svg|pdf|json
func (a *API) WhiteboardRouter(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/whiteboard"), "/")
	if path == "" {
		errorResponse(w, http.StatusNotFound, "Not found")
		return
	}

	parts := strings.Split(path, "/")

	if parts[0] == "create" {
		if len(parts) != 2 {
			errorResponse(w, http.StatusBadRequest, "Conversation ID is required")
			return
		}
		a.CreateHandler(w, r, parts[1])
		return
	}

	boardID, err := uuid.Parse(parts[0])
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid whiteboard ID")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			a.GetHandler(w, r, boardID)
		case http.MethodDelete:
			a.DeleteHandler(w, r, boardID)
		default:
			errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	switch parts[1] {
	case "ws":
		ws.ServeWs(a.manager, w, r, boardID)
	case "export":
		a.ExportHandler(w, r, boardID)
	default:
		errorResponse(w, http.StatusNotFound, "Not found")
	}
}
