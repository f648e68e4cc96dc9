package permissions

import (
	"context"
	"database/sql"
	"fmt"
)

// ContextStore provides the role and ownership rows the checkers assemble
// contexts from. The query shape is the store's concern; only the returned
// shape matters to the checkers.
type ContextStore interface {
	// TeamCreator returns the id of the user who created the team.
	// Returns ErrTeamNotFound if the team does not exist.
	TeamCreator(ctx context.Context, teamID int64) (int64, error)

	// TeamMemberRole returns the user's role row in the team, or nil if the
	// user is not a member. Absence of a membership row is not an error.
	TeamMemberRole(ctx context.Context, userID, teamID int64) (*TeamRole, error)

	// ProjectOwner returns the id of the project's owner.
	// Returns ErrProjectNotFound if the project does not exist.
	ProjectOwner(ctx context.Context, projectID int64) (int64, error)

	// ProjectMemberships returns one row per team that is linked to the
	// project and has the user as a member, left-joined against any
	// per-member project role assignment.
	ProjectMemberships(ctx context.Context, userID, projectID int64) ([]ProjectMembership, error)

	// CommentAuthor returns the id of the user who wrote the comment.
	// Returns ErrCommentNotFound if the comment does not exist.
	CommentAuthor(ctx context.Context, commentID int64) (int64, error)
}

// Store implements ContextStore over a SQL database
type Store struct {
	db *sql.DB
}

// NewStore creates a new context store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// TeamCreator returns the creator id of a team
func (s *Store) TeamCreator(ctx context.Context, teamID int64) (int64, error) {
	query := `SELECT created_by FROM teams WHERE id = $1`

	var createdBy int64
	err := s.db.QueryRowContext(ctx, query, teamID).Scan(&createdBy)
	if err == sql.ErrNoRows {
		return 0, ErrTeamNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get team creator: %w", err)
	}

	return createdBy, nil
}

// TeamMemberRole returns the user's team role, or nil if not a member
func (s *Store) TeamMemberRole(ctx context.Context, userID, teamID int64) (*TeamRole, error) {
	query := `SELECT role FROM team_members WHERE user_id = $1 AND team_id = $2`

	var role TeamRole
	err := s.db.QueryRowContext(ctx, query, userID, teamID).Scan(&role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member role: %w", err)
	}

	return &role, nil
}

// ProjectOwner returns the owner id of a project
func (s *Store) ProjectOwner(ctx context.Context, projectID int64) (int64, error) {
	query := `SELECT owner_id FROM projects WHERE id = $1`

	var ownerID int64
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return 0, ErrProjectNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get project owner: %w", err)
	}

	return ownerID, nil
}

// ProjectMemberships returns the user's team memberships joined against the
// teams linked to the project
func (s *Store) ProjectMemberships(ctx context.Context, userID, projectID int64) ([]ProjectMembership, error) {
	query := `
		SELECT tm.team_id, tm.role, pmr.role
		FROM project_teams pt
		JOIN team_members tm ON tm.team_id = pt.team_id
		LEFT JOIN project_member_roles pmr
		  ON pmr.project_id = pt.project_id
		 AND pmr.team_id = tm.team_id
		 AND pmr.user_id = tm.user_id
		WHERE pt.project_id = $1 AND tm.user_id = $2
		ORDER BY tm.team_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project memberships: %w", err)
	}
	defer rows.Close()

	var memberships []ProjectMembership
	for rows.Next() {
		var m ProjectMembership
		var projectRole sql.NullString

		if err := rows.Scan(&m.TeamID, &m.TeamRole, &projectRole); err != nil {
			return nil, fmt.Errorf("failed to scan project membership: %w", err)
		}

		if projectRole.Valid {
			role := ProjectRole(projectRole.String)
			m.ProjectRole = &role
		}

		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// CommentAuthor returns the author id of a comment
func (s *Store) CommentAuthor(ctx context.Context, commentID int64) (int64, error) {
	query := `SELECT user_id FROM comments WHERE id = $1`

	var userID int64
	err := s.db.QueryRowContext(ctx, query, commentID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, ErrCommentNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get comment author: %w", err)
	}

	return userID, nil
}
