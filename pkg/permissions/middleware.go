package permissions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/crewdeck/crewdeck/pkg/middleware"
)

// Middleware guards HTTP routes with team or project permission checks
type Middleware struct {
	teams    *TeamChecker
	projects *ProjectChecker
}

// NewMiddleware creates permission middleware backed by the given checkers
func NewMiddleware(teams *TeamChecker, projects *ProjectChecker) *Middleware {
	return &Middleware{
		teams:    teams,
		projects: projects,
	}
}

// RequireTeamPermission requires the permission on the team identified by
// the {teamID} route variable. Denial is a plain 403 regardless of whether
// the user lacks a role or the role lacks the permission.
func (m *Middleware) RequireTeamPermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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

			grants, err := m.teams.Load(r.Context(), authCtx.User.ID, teamID)
			if errors.Is(err, ErrTeamNotFound) {
				http.Error(w, "Team not found", http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, "Permission check failed", http.StatusInternalServerError)
				return
			}

			if !grants.Has(perm) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireProjectPermission requires the permission on the project identified
// by the {projectID} route variable.
func (m *Middleware) RequireProjectPermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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

			grants, err := m.projects.Load(r.Context(), authCtx.User.ID, projectID)
			if errors.Is(err, ErrProjectNotFound) {
				http.Error(w, "Project not found", http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, "Permission check failed", http.StatusInternalServerError)
				return
			}

			if !grants.Has(perm) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func routeID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}
