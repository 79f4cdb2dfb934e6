package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"dealscout/models"
	"dealscout/scheduler"
	"dealscout/services"

	"github.com/gorilla/mux"
)

// maxQueryLength bounds the free-text query accepted over HTTP
const maxQueryLength = 500

// Searcher runs one shopping query end to end
type Searcher interface {
	Search(ctx context.Context, query string) (*models.SearchResult, error)
}

type Handlers struct {
	searcher    Searcher
	taskManager *scheduler.TaskManager
}

func NewHandlers(searcher Searcher, taskManager *scheduler.TaskManager) *Handlers {
	return &Handlers{
		searcher:    searcher,
		taskManager: taskManager,
	}
}

// Close stops background workers
func (h *Handlers) Close() {
	if h.taskManager != nil {
		h.taskManager.Stop()
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// decodeQuery reads and validates the query from a search request body
func decodeQuery(r *http.Request) (string, error) {
	var req searchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		return "", errors.New("Invalid request body")
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", errors.New("Query is required")
	}
	if len(query) > maxQueryLength {
		return "", errors.New("Query is too long")
	}
	return query, nil
}

// HealthCheck returns a simple health check response
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "dealscout",
		"version":   "1.0.0",
	}
	writeJSON(w, http.StatusOK, response)
}

// Search runs a query synchronously. ?format=text returns the plain report.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query, err := decodeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		log.Printf("❌ Search for %q failed: %v", query, err)
		writeError(w, http.StatusInternalServerError, services.RenderError(err))
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, result.Report)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SearchAsync queues a query and returns a task ID
func (h *Handlers) SearchAsync(w http.ResponseWriter, r *http.Request) {
	query, err := decodeQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task := h.taskManager.SubmitTask(query)
	snapshot := task.Snapshot()
	if snapshot.Status == models.TaskStatusFailed {
		writeError(w, http.StatusServiceUnavailable, snapshot.Error)
		return
	}

	log.Printf("🚀 Async search started for %q (Task ID: %s)", query, task.ID)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id": task.ID,
		"status":  snapshot.Status,
		"message": snapshot.Message,
		"query":   query,
	})
}

// GetTaskStatus returns the status of an async task
func (h *Handlers) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	task, exists := h.taskManager.GetTask(taskID)
	if !exists {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	snapshot := task.Snapshot()
	writeJSON(w, http.StatusOK, &snapshot)
}

// GetTaskStats returns statistics about the task manager
func (h *Handlers) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":     h.taskManager.GetStats(),
		"timestamp": time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
