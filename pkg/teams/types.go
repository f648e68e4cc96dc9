// Package teams implements team and membership management. Every write
// that can change a user's effective permissions invalidates the relevant
// permission cache entries before returning.
package teams

import (
	"time"

	"github.com/crewdeck/crewdeck/pkg/permissions"
)

// Team is a group of users that can be granted access to projects
type Team struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Member is a user's membership row within a team
type Member struct {
	ID      int64                `json:"id"`
	TeamID  int64                `json:"team_id"`
	UserID  int64                `json:"user_id"`
	Role    permissions.TeamRole `json:"role"`
	AddedAt time.Time            `json:"added_at"`

	// Denormalized from users for listing
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// TeamInvalidator is the slice of the permission layer the team service
// needs. Satisfied by *permissions.TeamChecker.
type TeamInvalidator interface {
	InvalidateUserTeam(userID, teamID int64)
	InvalidateTeam(teamID int64)
}

// ProjectInvalidator covers project-scoped fallout of team writes, since
// project contexts embed team roles. Satisfied by *permissions.ProjectChecker.
type ProjectInvalidator interface {
	InvalidateUser(userID int64)
	InvalidateTeam(teamID int64)
}
