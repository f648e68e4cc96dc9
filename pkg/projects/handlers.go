package projects

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/crewdeck/crewdeck/pkg/middleware"
	"github.com/crewdeck/crewdeck/pkg/permissions"
)

// Handlers provides HTTP handlers for project management
type Handlers struct {
	service *Service
	checker *permissions.ProjectChecker
	guard   *permissions.Middleware
}

// NewHandlers creates project handlers guarded by the permission middleware.
// The checker is needed directly for the author-sensitive comment rules.
func NewHandlers(service *Service, checker *permissions.ProjectChecker, guard *permissions.Middleware) *Handlers {
	return &Handlers{service: service, checker: checker, guard: guard}
}

// RegisterRoutes registers project routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects", h.CreateProject).Methods("POST")

	view := h.guard.RequireProjectPermission(permissions.ProjectView)
	edit := h.guard.RequireProjectPermission(permissions.ProjectEdit)
	del := h.guard.RequireProjectPermission(permissions.ProjectDelete)
	archive := h.guard.RequireProjectPermission(permissions.ProjectArchive)
	manage := h.guard.RequireProjectPermission(permissions.ProjectManageTeams)
	comment := h.guard.RequireProjectPermission(permissions.CommentCreate)

	router.Handle("/projects/{projectID}", view(http.HandlerFunc(h.GetProject))).Methods("GET")
	router.Handle("/projects/{projectID}", edit(http.HandlerFunc(h.RenameProject))).Methods("PATCH")
	router.Handle("/projects/{projectID}", del(http.HandlerFunc(h.DeleteProject))).Methods("DELETE")
	router.Handle("/projects/{projectID}/archive", archive(http.HandlerFunc(h.SetArchived))).Methods("PUT")
	router.Handle("/projects/{projectID}/owner", del(http.HandlerFunc(h.TransferOwnership))).Methods("PUT")
	router.Handle("/projects/{projectID}/teams", view(http.HandlerFunc(h.ListTeams))).Methods("GET")
	router.Handle("/projects/{projectID}/teams/{teamID}", manage(http.HandlerFunc(h.LinkTeam))).Methods("PUT")
	router.Handle("/projects/{projectID}/teams/{teamID}", manage(http.HandlerFunc(h.UnlinkTeam))).Methods("DELETE")
	router.Handle("/projects/{projectID}/teams/{teamID}/members/{userID}/role", manage(http.HandlerFunc(h.SetMemberRole))).Methods("PUT")
	router.Handle("/projects/{projectID}/teams/{teamID}/members/{userID}/role", manage(http.HandlerFunc(h.ClearMemberRole))).Methods("DELETE")
	router.Handle("/projects/{projectID}/comments", comment(http.HandlerFunc(h.CreateComment))).Methods("POST")
	router.Handle("/projects/{projectID}/comments/{commentID}", view(http.HandlerFunc(h.UpdateComment))).Methods("PATCH")
	router.Handle("/projects/{projectID}/comments/{commentID}", view(http.HandlerFunc(h.DeleteComment))).Methods("DELETE")
}

// CreateProject creates a project owned by the caller
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project, err := h.service.CreateProject(r.Context(), req.Name, authCtx.User.ID)
	if err != nil {
		http.Error(w, "Failed to create project", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GetProject returns a project
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	project, err := h.service.GetProject(r.Context(), projectID)
	if errors.Is(err, permissions.ErrProjectNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get project", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// RenameProject renames a project
func (h *Handlers) RenameProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.RenameProject(r.Context(), projectID, req.Name); err != nil {
		writeProjectError(w, err, "Failed to rename project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteProject deletes a project
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteProject(r.Context(), projectID); err != nil {
		writeProjectError(w, err, "Failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetArchived archives or restores a project
func (h *Handlers) SetArchived(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	var req struct {
		Archived bool `json:"archived"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SetArchived(r.Context(), projectID, req.Archived); err != nil {
		writeProjectError(w, err, "Failed to update project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransferOwnership moves the project to a new owner
func (h *Handlers) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	var req struct {
		OwnerID int64 `json:"owner_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnerID == 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.TransferOwnership(r.Context(), projectID, req.OwnerID); err != nil {
		writeProjectError(w, err, "Failed to transfer ownership")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTeams lists the teams linked to a project
func (h *Handlers) ListTeams(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	links, err := h.service.ListTeams(r.Context(), projectID)
	if err != nil {
		http.Error(w, "Failed to list teams", http.StatusInternalServerError)
		return
	}
	if links == nil {
		links = []*TeamLink{}
	}
	writeJSON(w, http.StatusOK, links)
}

// LinkTeam links a team to the project
func (h *Handlers) LinkTeam(w http.ResponseWriter, r *http.Request) {
	projectID, teamID, err := pathProjectTeam(r)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}

	err = h.service.LinkTeam(r.Context(), projectID, teamID)
	if errors.Is(err, ErrTeamLinked) {
		http.Error(w, "Team already linked", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Failed to link team", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// UnlinkTeam removes a team's access to the project
func (h *Handlers) UnlinkTeam(w http.ResponseWriter, r *http.Request) {
	projectID, teamID, err := pathProjectTeam(r)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}

	err = h.service.UnlinkTeam(r.Context(), projectID, teamID)
	if errors.Is(err, ErrTeamNotLinked) {
		http.Error(w, "Team not linked", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to unlink team", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetMemberRole sets a user's explicit project role
func (h *Handlers) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	projectID, teamID, err := pathProjectTeam(r)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var req struct {
		Role permissions.ProjectRole `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err = h.service.SetMemberRole(r.Context(), projectID, teamID, userID, req.Role)
	if errors.Is(err, ErrTeamNotLinked) {
		http.Error(w, "Team not linked", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to set member role", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearMemberRole removes a user's explicit project role
func (h *Handlers) ClearMemberRole(w http.ResponseWriter, r *http.Request) {
	projectID, teamID, err := pathProjectTeam(r)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.service.ClearMemberRole(r.Context(), projectID, teamID, userID); err != nil {
		http.Error(w, "Failed to clear member role", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateComment adds a comment authored by the caller
func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	projectID, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	var req struct {
		CardID int64  `json:"card_id"`
		Body   string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	comment, err := h.service.CreateComment(r.Context(), projectID, req.CardID, authCtx.User.ID, req.Body)
	if err != nil {
		http.Error(w, "Failed to create comment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// UpdateComment edits a comment. Authors may edit their own comments;
// everyone else needs deletion rights on comments.
func (h *Handlers) UpdateComment(w http.ResponseWriter, r *http.Request) {
	grants, commentID, ok := h.commentGrants(w, r)
	if !ok {
		return
	}

	allowed, err := grants.CanModifyComment(r.Context(), commentID)
	if errors.Is(err, permissions.ErrCommentNotFound) {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Permission check failed", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err = h.service.UpdateComment(r.Context(), commentID, req.Body)
	if errors.Is(err, permissions.ErrCommentNotFound) {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update comment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteComment removes a comment. Requires the comment deletion
// permission; authors cannot delete their own comments without it.
func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	grants, commentID, ok := h.commentGrants(w, r)
	if !ok {
		return
	}

	if !grants.Has(permissions.CommentDelete) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	err := h.service.DeleteComment(r.Context(), commentID)
	if errors.Is(err, permissions.ErrCommentNotFound) {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to delete comment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// commentGrants loads the caller's project grants for a comment route
func (h *Handlers) commentGrants(w http.ResponseWriter, r *http.Request) (*permissions.ProjectGrants, int64, bool) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return nil, 0, false
	}

	projectID, err := pathID(r, "projectID")
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return nil, 0, false
	}
	commentID, err := pathID(r, "commentID")
	if err != nil {
		http.Error(w, "Invalid comment id", http.StatusBadRequest)
		return nil, 0, false
	}

	grants, err := h.checker.Load(r.Context(), authCtx.User.ID, projectID)
	if errors.Is(err, permissions.ErrProjectNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return nil, 0, false
	}
	if err != nil {
		http.Error(w, "Permission check failed", http.StatusInternalServerError)
		return nil, 0, false
	}
	return grants, commentID, true
}

func writeProjectError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, permissions.ErrProjectNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	http.Error(w, fallback, http.StatusInternalServerError)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func pathProjectTeam(r *http.Request) (int64, int64, error) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		return 0, 0, err
	}
	teamID, err := pathID(r, "teamID")
	if err != nil {
		return 0, 0, err
	}
	return projectID, teamID, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
