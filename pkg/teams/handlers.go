package teams

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/crewdeck/crewdeck/pkg/middleware"
	"github.com/crewdeck/crewdeck/pkg/permissions"
)

// Handlers provides HTTP handlers for team management
type Handlers struct {
	service *Service
	guard   *permissions.Middleware
}

// NewHandlers creates team handlers guarded by the permission middleware
func NewHandlers(service *Service, guard *permissions.Middleware) *Handlers {
	return &Handlers{service: service, guard: guard}
}

// RegisterRoutes registers team routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/teams", h.CreateTeam).Methods("POST")

	view := h.guard.RequireTeamPermission(permissions.TeamView)
	edit := h.guard.RequireTeamPermission(permissions.TeamEdit)
	del := h.guard.RequireTeamPermission(permissions.TeamDelete)
	invite := h.guard.RequireTeamPermission(permissions.TeamInviteMembers)
	roles := h.guard.RequireTeamPermission(permissions.TeamManageRoles)
	remove := h.guard.RequireTeamPermission(permissions.TeamRemoveMembers)

	router.Handle("/teams/{teamID}", view(http.HandlerFunc(h.GetTeam))).Methods("GET")
	router.Handle("/teams/{teamID}", edit(http.HandlerFunc(h.UpdateTeam))).Methods("PATCH")
	router.Handle("/teams/{teamID}", del(http.HandlerFunc(h.DeleteTeam))).Methods("DELETE")
	router.Handle("/teams/{teamID}/members", view(http.HandlerFunc(h.ListMembers))).Methods("GET")
	router.Handle("/teams/{teamID}/members", invite(http.HandlerFunc(h.AddMember))).Methods("POST")
	router.Handle("/teams/{teamID}/members/{userID}", roles(http.HandlerFunc(h.UpdateMemberRole))).Methods("PUT")
	router.Handle("/teams/{teamID}/members/{userID}", remove(http.HandlerFunc(h.RemoveMember))).Methods("DELETE")
}

// CreateTeam creates a team owned by the caller
func (h *Handlers) CreateTeam(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	team, err := h.service.CreateTeam(r.Context(), req.Name, req.Description, authCtx.User.ID)
	if err != nil {
		http.Error(w, "Failed to create team", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// GetTeam returns a team
func (h *Handlers) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}

	team, err := h.service.GetTeam(r.Context(), teamID)
	if errors.Is(err, permissions.ErrTeamNotFound) {
		http.Error(w, "Team not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get team", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// UpdateTeam updates team metadata
func (h *Handlers) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err = h.service.UpdateTeam(r.Context(), teamID, req.Name, req.Description)
	if errors.Is(err, permissions.ErrTeamNotFound) {
		http.Error(w, "Team not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update team", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTeam deletes a team
func (h *Handlers) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}

	err = h.service.DeleteTeam(r.Context(), teamID)
	if errors.Is(err, permissions.ErrTeamNotFound) {
		http.Error(w, "Team not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to delete team", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers lists team members
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}

	members, err := h.service.ListMembers(r.Context(), teamID)
	if err != nil {
		http.Error(w, "Failed to list members", http.StatusInternalServerError)
		return
	}
	if members == nil {
		members = []*Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember adds a user to the team
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}

	var req struct {
		UserID int64                `json:"user_id"`
		Role   permissions.TeamRole `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = permissions.TeamRoleMember
	}

	err = h.service.AddMember(r.Context(), teamID, req.UserID, req.Role)
	if errors.Is(err, ErrMemberExists) {
		http.Error(w, "Member already exists", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Failed to add member", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// UpdateMemberRole changes a member's role
func (h *Handlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var req struct {
		Role permissions.TeamRole `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err = h.service.UpdateMemberRole(r.Context(), teamID, userID, req.Role)
	switch {
	case errors.Is(err, permissions.ErrTeamNotFound):
		http.Error(w, "Team not found", http.StatusNotFound)
	case errors.Is(err, ErrMemberNotFound):
		http.Error(w, "Member not found", http.StatusNotFound)
	case errors.Is(err, ErrCreatorImmutable):
		http.Error(w, "Team creator role cannot be changed", http.StatusConflict)
	case err != nil:
		http.Error(w, "Failed to update member role", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// RemoveMember removes a user from the team
func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		http.Error(w, "Invalid team id", http.StatusBadRequest)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	err = h.service.RemoveMember(r.Context(), teamID, userID)
	switch {
	case errors.Is(err, permissions.ErrTeamNotFound):
		http.Error(w, "Team not found", http.StatusNotFound)
	case errors.Is(err, ErrMemberNotFound):
		http.Error(w, "Member not found", http.StatusNotFound)
	case errors.Is(err, ErrCreatorImmutable):
		http.Error(w, "Team creator cannot be removed", http.StatusConflict)
	case err != nil:
		http.Error(w, "Failed to remove member", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
