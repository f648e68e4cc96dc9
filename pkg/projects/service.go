package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crewdeck/crewdeck/pkg/permissions"
)

var (
	// ErrTeamLinked is returned when linking an already linked team
	ErrTeamLinked = errors.New("team already linked to project")
	// ErrTeamNotLinked is returned when the project-team link does not exist
	ErrTeamNotLinked = errors.New("team not linked to project")
)

// Service manages projects, team links, role overrides and comments
type Service struct {
	db          *sql.DB
	invalidator Invalidator
}

// NewService creates a project service backed by the given database. The
// invalidator is typically the shared *permissions.ProjectChecker.
func NewService(db *sql.DB, invalidator Invalidator) *Service {
	return &Service{db: db, invalidator: invalidator}
}

// CreateProject creates a project owned by ownerID
func (s *Service) CreateProject(ctx context.Context, name string, ownerID int64) (*Project, error) {
	project := &Project{
		Name:    name,
		OwnerID: ownerID,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, is_archived, created_at, updated_at
	`, name, ownerID).Scan(&project.ID, &project.IsArchived, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// GetProject retrieves a project by ID
func (s *Service) GetProject(ctx context.Context, projectID int64) (*Project, error) {
	project := &Project{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, is_archived, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(&project.ID, &project.Name, &project.OwnerID,
		&project.IsArchived, &project.CreatedAt, &project.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, permissions.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// RenameProject updates a project's name. Metadata only, no invalidation.
func (s *Service) RenameProject(ctx context.Context, projectID int64, name string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name = $1, updated_at = NOW() WHERE id = $2
	`, name, projectID)
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	return s.requireRow(result, permissions.ErrProjectNotFound)
}

// SetArchived archives or restores a project
func (s *Service) SetArchived(ctx context.Context, projectID int64, archived bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET is_archived = $1, updated_at = NOW() WHERE id = $2
	`, archived, projectID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return s.requireRow(result, permissions.ErrProjectNotFound)
}

// TransferOwnership moves the owner bypass to a new user. Both the old and
// the new owner's cached contexts are stale afterwards, so the whole
// project scope is dropped.
func (s *Service) TransferOwnership(ctx context.Context, projectID, newOwnerID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET owner_id = $1, updated_at = NOW() WHERE id = $2
	`, newOwnerID, projectID)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	if err := s.requireRow(result, permissions.ErrProjectNotFound); err != nil {
		return err
	}
	s.invalidator.InvalidateProject(projectID)
	return nil
}

// DeleteProject deletes a project along with its links, role overrides and
// comments
func (s *Service) DeleteProject(ctx context.Context, projectID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_member_roles WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete role overrides: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_teams WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete team links: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if err := s.requireRow(result, permissions.ErrProjectNotFound); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.invalidator.InvalidateProject(projectID)
	return nil
}

// ListTeams retrieves the team links of a project
func (s *Service) ListTeams(ctx context.Context, projectID int64) ([]*TeamLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, team_id, linked_at
		FROM project_teams
		WHERE project_id = $1
		ORDER BY team_id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team links: %w", err)
	}
	defer rows.Close()

	var links []*TeamLink
	for rows.Next() {
		link := &TeamLink{}
		if err := rows.Scan(&link.ID, &link.ProjectID, &link.TeamID, &link.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// LinkTeam grants a team's members access to the project
func (s *Service) LinkTeam(ctx context.Context, projectID, teamID int64) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO project_teams (project_id, team_id)
		VALUES ($1, $2)
		ON CONFLICT (project_id, team_id) DO NOTHING
	`, projectID, teamID)
	if err != nil {
		return fmt.Errorf("failed to link team: %w", err)
	}
	if err := s.requireRow(result, ErrTeamLinked); err != nil {
		return err
	}

	s.invalidator.InvalidateProject(projectID)
	s.invalidator.InvalidateTeam(teamID)
	return nil
}

// UnlinkTeam removes a team's access to the project, including any role
// overrides that rode on the link
func (s *Service) UnlinkTeam(ctx context.Context, projectID, teamID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM project_member_roles WHERE project_id = $1 AND team_id = $2
	`, projectID, teamID); err != nil {
		return fmt.Errorf("failed to delete role overrides: %w", err)
	}
	result, err := tx.ExecContext(ctx, `
		DELETE FROM project_teams WHERE project_id = $1 AND team_id = $2
	`, projectID, teamID)
	if err != nil {
		return fmt.Errorf("failed to unlink team: %w", err)
	}
	if err := s.requireRow(result, ErrTeamNotLinked); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.invalidator.InvalidateProject(projectID)
	s.invalidator.InvalidateTeam(teamID)
	return nil
}

// SetMemberRole sets a user's explicit project role via a linked team
func (s *Service) SetMemberRole(ctx context.Context, projectID, teamID, userID int64, role permissions.ProjectRole) error {
	if !role.Valid() {
		return fmt.Errorf("invalid project role: %s", role)
	}
	var linked bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM project_teams WHERE project_id = $1 AND team_id = $2)
	`, projectID, teamID).Scan(&linked)
	if err != nil {
		return fmt.Errorf("failed to check team link: %w", err)
	}
	if !linked {
		return ErrTeamNotLinked
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_member_roles (project_id, team_id, user_id, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, team_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, projectID, teamID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to set member role: %w", err)
	}

	s.invalidator.InvalidateUserProject(userID, projectID)
	return nil
}

// ClearMemberRole removes an explicit role, dropping the user back to the
// viewer default for that team link
func (s *Service) ClearMemberRole(ctx context.Context, projectID, teamID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM project_member_roles
		WHERE project_id = $1 AND team_id = $2 AND user_id = $3
	`, projectID, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to clear member role: %w", err)
	}

	s.invalidator.InvalidateUserProject(userID, projectID)
	return nil
}

// CreateComment adds a comment to a card
func (s *Service) CreateComment(ctx context.Context, projectID, cardID, userID int64, body string) (*Comment, error) {
	comment := &Comment{
		ProjectID: projectID,
		CardID:    cardID,
		UserID:    userID,
		Body:      body,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (project_id, card_id, user_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, projectID, cardID, userID, body).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// GetComment retrieves a comment by ID
func (s *Service) GetComment(ctx context.Context, commentID int64) (*Comment, error) {
	comment := &Comment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, card_id, user_id, body, created_at, updated_at
		FROM comments
		WHERE id = $1
	`, commentID).Scan(&comment.ID, &comment.ProjectID, &comment.CardID,
		&comment.UserID, &comment.Body, &comment.CreatedAt, &comment.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, permissions.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// UpdateComment replaces a comment's body. Permission checks, including
// the author restriction, belong to the caller via
// ProjectGrants.CanModifyComment.
func (s *Service) UpdateComment(ctx context.Context, commentID int64, body string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET body = $1, updated_at = NOW() WHERE id = $2
	`, body, commentID)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return s.requireRow(result, permissions.ErrCommentNotFound)
}

// DeleteComment removes a comment
func (s *Service) DeleteComment(ctx context.Context, commentID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return s.requireRow(result, permissions.ErrCommentNotFound)
}

// requireRow maps a zero-row write to the given sentinel
func (s *Service) requireRow(result sql.Result, missing error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return missing
	}
	return nil
}
