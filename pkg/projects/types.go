// Package projects implements project management: ownership, team links,
// per-project role overrides and comments. Writes that change who can do
// what invalidate the project permission cache before returning.
package projects

import (
	"time"

	"github.com/crewdeck/crewdeck/pkg/permissions"
)

// Project is a kanban board shared with one or more teams
type Project struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	OwnerID    int64     `json:"owner_id"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TeamLink associates a team with a project
type TeamLink struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	TeamID    int64     `json:"team_id"`
	LinkedAt  time.Time `json:"linked_at"`
}

// MemberRole is an explicit project role for one user via one team link.
// Members of a linked team without a row here act as project viewers.
type MemberRole struct {
	ID        int64                   `json:"id"`
	ProjectID int64                   `json:"project_id"`
	TeamID    int64                   `json:"team_id"`
	UserID    int64                   `json:"user_id"`
	Role      permissions.ProjectRole `json:"role"`
	GrantedAt time.Time               `json:"granted_at"`
}

// Comment is a card comment; edits are restricted to the author unless the
// caller holds comment deletion rights.
type Comment struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	CardID    int64     `json:"card_id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Invalidator is the slice of the permission layer the project service
// needs. Satisfied by *permissions.ProjectChecker.
type Invalidator interface {
	InvalidateUserProject(userID, projectID int64)
	InvalidateProject(projectID int64)
	InvalidateTeam(teamID int64)
}
