package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"taskmaster/app/core/assistant"
	"taskmaster/app/core/llm"
	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
	"taskmaster/app/pkg/logger"
)

const (
	defaultOwnerID   = 1
	defaultListLimit = 50
	maxListLimit     = 200
)

// HealthChecker reports language model availability. Satisfied by llm.Client.
type HealthChecker interface {
	Health(ctx context.Context) llm.Health
}

// Server exposes the task board and the conversational assistant over HTTP.
// The acting user comes from the X-User-ID header; every task operation is
// scoped to it.
type Server struct {
	port            int
	shutdownTimeout time.Duration

	assistant *assistant.Service
	tasks     *task.Store
	users     *user.Store
	health    HealthChecker

	server *http.Server
}

func NewServer(port int, svc *assistant.Service, tasks *task.Store, users *user.Store, health HealthChecker) *Server {
	return &Server{
		port:            port,
		shutdownTimeout: 5 * time.Second,
		assistant:       svc,
		tasks:           tasks,
		users:           users,
		health:          health,
	}
}

func (s *Server) SetShutdownTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	s.shutdownTimeout = timeout
}

// Handler builds the route table. Split out from Start so tests can drive it
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ai/chat", s.handleChat)
	mux.HandleFunc("/api/ai/confirm-action", s.handleConfirm)
	mux.HandleFunc("/api/ai/health", s.handleAIHealth)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/", s.handleTaskPath)
	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/users/", s.handleUserPath)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error: %v", err)
		}
	}()

	logger.Info("http listening on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type chatRequest struct {
	Message string `json:"message"`
}

type confirmRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type createTaskRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	Priority         string `json:"priority"`
	AssignedToID     int64  `json:"assigned_to_id"`
	ReviewerID       int64  `json:"reviewer_id"`
	DueDate          int64  `json:"due_date"`
	EstimatedMinutes int64  `json:"estimated_minutes"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

type moveTaskRequest struct {
	Status   string `json:"status"`
	Position *int   `json:"position"`
}

type createUserRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type taskListResponse struct {
	Tasks []task.Task `json:"tasks"`
	Total int         `json:"total"`
}

type userListResponse struct {
	Users []user.User `json:"users"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	resp := s.assistant.Chat(r.Context(), req.Message, ownerID)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		http.Error(w, "action is required", http.StatusBadRequest)
		return
	}

	result := s.assistant.Confirm(r.Context(), req.Action, req.Data, ownerID)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAIHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.health.Health(r.Context()))
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		filter := task.Filter{
			Status:     task.Status(r.URL.Query().Get("status")),
			Priority:   task.Priority(r.URL.Query().Get("priority")),
			SearchTerm: r.URL.Query().Get("search"),
			Limit:      parseListLimit(r.URL.Query().Get("limit")),
		}
		items, err := s.tasks.List(r.Context(), ownerID, filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if items == nil {
			items = []task.Task{}
		}
		s.writeJSON(w, http.StatusOK, taskListResponse{Tasks: items, Total: len(items)})
	case http.MethodPost:
		var req createTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			http.Error(w, "title is required", http.StatusBadRequest)
			return
		}
		created, err := s.tasks.Create(r.Context(), ownerID, task.Draft{
			Title:            req.Title,
			Description:      req.Description,
			Status:           task.Status(req.Status),
			Priority:         task.Priority(req.Priority),
			AssignedToID:     req.AssignedToID,
			ReviewerID:       req.ReviewerID,
			DueDate:          req.DueDate,
			EstimatedMinutes: req.EstimatedMinutes,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, http.StatusCreated, created)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTaskPath(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.ownerID(w, r)
	if !ok {
		return
	}

	tail, action, ok := parseEntityPath(r.URL.Path, "/api/tasks/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if tail == "stats" && action == "" {
		s.handleTaskStats(w, r, ownerID)
		return
	}
	taskID, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || taskID <= 0 {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "":
		s.handleTaskByID(w, r, taskID, ownerID)
	case "move":
		s.handleTaskMove(w, r, taskID, ownerID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request, taskID int64, ownerID int64) {
	switch r.Method {
	case http.MethodGet:
		item, err := s.tasks.Get(r.Context(), taskID, ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, item)
	case http.MethodPut, http.MethodPatch:
		var req updateTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		changes := task.Changes{Title: req.Title, Description: req.Description}
		if req.Status != nil {
			status, ok := task.ParseStatus(*req.Status)
			if !ok {
				http.Error(w, fmt.Sprintf("invalid status: %s", *req.Status), http.StatusBadRequest)
				return
			}
			changes.Status = &status
		}
		if req.Priority != nil {
			priority, ok := task.ParsePriority(*req.Priority)
			if !ok {
				http.Error(w, fmt.Sprintf("invalid priority: %s", *req.Priority), http.StatusBadRequest)
				return
			}
			changes.Priority = &priority
		}
		if changes.Empty() {
			http.Error(w, "no changes provided", http.StatusBadRequest)
			return
		}
		updated, err := s.tasks.Update(r.Context(), taskID, ownerID, changes)
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		err := s.tasks.Delete(r.Context(), taskID, ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTaskMove(w http.ResponseWriter, r *http.Request, taskID int64, ownerID int64) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req moveTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, ok := task.ParseStatus(req.Status)
	if !ok {
		http.Error(w, fmt.Sprintf("invalid status: %s", req.Status), http.StatusBadRequest)
		return
	}

	var moved task.Task
	var err error
	if req.Position != nil {
		moved, err = s.tasks.Reorder(r.Context(), taskID, ownerID, status, *req.Position)
	} else {
		moved, err = s.tasks.SetStatus(r.Context(), taskID, ownerID, status)
	}
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, moved)
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request, ownerID int64) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	counts, err := s.tasks.CountByStatus(r.Context(), ownerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.users.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []user.User{}
		}
		s.writeJSON(w, http.StatusOK, userListResponse{Users: items})
	case http.MethodPost:
		var req createUserRequest
		if !decodeBody(w, r, &req) {
			return
		}
		created, err := s.users.Create(r.Context(), req.Username, req.FullName, req.Email)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, http.StatusCreated, created)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleUserPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tail, action, ok := parseEntityPath(r.URL.Path, "/api/users/")
	if !ok || action != "" {
		http.NotFound(w, r)
		return
	}
	userID, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || userID <= 0 {
		http.NotFound(w, r)
		return
	}

	item, err := s.users.Get(r.Context(), userID)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// ownerID reads the acting user from the X-User-ID header. A missing header
// falls back to the default local user.
func (s *Server) ownerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if raw == "" {
		return defaultOwnerID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid X-User-ID header", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return false
	}
	defer r.Body.Close()
	if err := json.Unmarshal(body, out); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON stamps every response object with a request id before sending.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if stamped, err := sjson.SetBytes(body, "request_id", uuid.NewString()); err == nil {
		body = stamped
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func parseEntityPath(path string, prefix string) (id string, action string, ok bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if tail == "" {
		return "", "", false
	}
	parts := strings.Split(tail, "/")
	if len(parts) == 1 {
		return parts[0], "", true
	}
	if len(parts) == 2 {
		return parts[0], parts[1], true
	}
	return "", "", false
}

func parseListLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
