package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/mcp-training/fieldsync/game/config"
	"github.com/wricardo/mcp-training/fieldsync/game/service"
)

// ConfigStore lists and stores configuration presets. *config.Manager
// implements it.
type ConfigStore interface {
	ListConfigs() ([]*config.Info, error)
	LoadConfig(name string) (*config.Config, error)
	SaveConfig(name string, cfg *config.Config) error
}

// Server represents the REST API server
type Server struct {
	service service.FieldService
	configs ConfigStore
	ws      http.Handler
	router  *mux.Router
}

// NewServer creates a new API server. configs and ws may be nil, in which
// case their routes are not registered.
func NewServer(fieldService service.FieldService, configs ConfigStore, ws http.Handler) *Server {
	s := &Server{
		service: fieldService,
		configs: configs,
		ws:      ws,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/field", s.handleGetField).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")

	// Entities
	api.HandleFunc("/entities", s.handleListEntities).Methods("GET")
	api.HandleFunc("/entities/{id}", s.handleGetEntity).Methods("GET")

	// Connections
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")

	// Configuration presets
	if s.configs != nil {
		api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
		api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
		api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")
	}

	// WebSocket
	if s.ws != nil {
		s.router.Handle("/ws", s.ws)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := "healthy"
	code := http.StatusOK
	if !stats.Running {
		status = "stopped"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]interface{}{
		"status":      status,
		"connections": stats.Connections,
	})
}

func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetFieldInfo(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// Entity Handlers

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// "bots=true|false" and "kind=bots|humans" are both accepted
	raw := query.Get("kind")
	if raw == "" {
		raw = query.Get("bots")
	}
	kind, ok := service.ParseEntityKind(strings.ToLower(raw))
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid entity filter %q", raw))
		return
	}

	entities, err := s.service.ListEntities(r.Context(), kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(entities),
		"entities": entities,
	})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := strconv.ParseInt(vars["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid entity id")
		return
	}

	entity, err := s.service.GetEntity(r.Context(), int32(id))
	if err != nil {
		if errors.Is(err, service.ErrEntityNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, entity)
}

// Connection Handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.configs.ListConfigs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	cfg, err := s.configs.LoadConfig(vars["name"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	// unset numeric fields keep their defaults; the name must be given
	cfg := config.Default()
	cfg.Name, cfg.Description = "", ""
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if cfg.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}
	if strings.ContainsAny(cfg.Name, `/\`) || strings.HasPrefix(cfg.Name, ".") {
		respondError(w, http.StatusBadRequest, "Invalid config name")
		return
	}

	if err := s.configs.SaveConfig(cfg.Name, cfg); err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save config: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": cfg.Name,
	})
}
