package permissions

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crewdeck/crewdeck/pkg/middleware"
)

// Handlers provides HTTP handlers for permission queries
type Handlers struct {
	teams    *TeamChecker
	projects *ProjectChecker
}

// NewHandlers creates permission handlers
func NewHandlers(teams *TeamChecker, projects *ProjectChecker) *Handlers {
	return &Handlers{
		teams:    teams,
		projects: projects,
	}
}

// RegisterRoutes registers permission routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/teams/{teamID}/permissions", h.TeamPermissions).Methods("GET")
	router.HandleFunc("/projects/{projectID}/permissions", h.ProjectPermissions).Methods("GET")
	router.HandleFunc("/permissions/check", h.CheckPermission).Methods("POST")
	router.HandleFunc("/permissions/cache/stats", h.CacheStats).Methods("GET")
}

// TeamPermissions returns the caller's full permission snapshot for a team
func (h *Handlers) TeamPermissions(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	teamID, err := routeID(r, "teamID")
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}

	grants, err := h.teams.Load(r.Context(), authCtx.User.ID, teamID)
	if errors.Is(err, ErrTeamNotFound) {
		http.Error(w, "Team not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load permissions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, grants.All())
}

// ProjectPermissions returns the caller's full permission snapshot for a project
func (h *Handlers) ProjectPermissions(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	projectID, err := routeID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	grants, err := h.projects.Load(r.Context(), authCtx.User.ID, projectID)
	if errors.Is(err, ErrProjectNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load permissions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, grants.All())
}

// CheckPermission answers a single permission question for the caller
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Scope      string     `json:"scope"` // "team" or "project"
		ResourceID int64      `json:"resource_id"`
		Permission Permission `json:"permission"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var allowed bool
	switch req.Scope {
	case scopeTeam:
		grants, err := h.teams.Load(r.Context(), authCtx.User.ID, req.ResourceID)
		if errors.Is(err, ErrTeamNotFound) {
			http.Error(w, "Team not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Failed to load permissions", http.StatusInternalServerError)
			return
		}
		allowed = grants.Has(req.Permission)
	case scopeProject:
		grants, err := h.projects.Load(r.Context(), authCtx.User.ID, req.ResourceID)
		if errors.Is(err, ErrProjectNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Failed to load permissions", http.StatusInternalServerError)
			return
		}
		allowed = grants.Has(req.Permission)
	default:
		http.Error(w, "Scope must be team or project", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// CacheStats exposes context cache counters
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]CacheStats{
		"team":    h.teams.cache.Stats(),
		"project": h.projects.cache.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
