package teams

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crewdeck/crewdeck/pkg/permissions"
)

var (
	// ErrMemberExists is returned when adding a user already on the team
	ErrMemberExists = errors.New("member already exists")
	// ErrMemberNotFound is returned when a membership row does not exist
	ErrMemberNotFound = errors.New("member not found")
	// ErrCreatorImmutable is returned for writes that would demote or
	// remove the team creator
	ErrCreatorImmutable = errors.New("team creator cannot be demoted or removed")
)

// Service manages teams and their memberships
type Service struct {
	db       *sql.DB
	teams    TeamInvalidator
	projects ProjectInvalidator
}

// NewService creates a team service. The invalidators are typically the
// permission checkers sharing this database.
func NewService(db *sql.DB, teams TeamInvalidator, projects ProjectInvalidator) *Service {
	return &Service{db: db, teams: teams, projects: projects}
}

// CreateTeam creates a team and enrolls the creator as owner
func (s *Service) CreateTeam(ctx context.Context, name, description string, createdBy int64) (*Team, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	team := &Team{
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO teams (name, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, name, description, createdBy).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
	`, team.ID, createdBy, permissions.TeamRoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to enroll creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return team, nil
}

// GetTeam retrieves a team by ID
func (s *Service) GetTeam(ctx context.Context, teamID int64) (*Team, error) {
	team := &Team{}
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_by, created_at, updated_at
		FROM teams
		WHERE id = $1
	`, teamID).Scan(&team.ID, &team.Name, &description, &team.CreatedBy, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, permissions.ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	if description.Valid {
		team.Description = description.String
	}
	return team, nil
}

// UpdateTeam updates a team's name and description. Metadata changes do
// not affect permissions, so nothing is invalidated.
func (s *Service) UpdateTeam(ctx context.Context, teamID int64, name, description string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE teams SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
	`, name, description, teamID)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return permissions.ErrTeamNotFound
	}
	return nil
}

// DeleteTeam deletes a team and its memberships, then drops every cached
// context that referenced the team.
func (s *Service) DeleteTeam(ctx context.Context, teamID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_teams WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("failed to unlink projects: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return permissions.ErrTeamNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.teams.InvalidateTeam(teamID)
	s.projects.InvalidateTeam(teamID)
	return nil
}

// ListMembers retrieves all members of a team
func (s *Service) ListMembers(ctx context.Context, teamID int64) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tm.id, tm.team_id, tm.user_id, tm.role, tm.added_at, u.username, u.email
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.added_at ASC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		var email sql.NullString
		if err := rows.Scan(
			&member.ID, &member.TeamID, &member.UserID, &member.Role,
			&member.AddedAt, &member.Username, &email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if email.Valid {
			member.Email = email.String
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// AddMember adds a user to a team with the given role
func (s *Service) AddMember(ctx context.Context, teamID, userID int64, role permissions.TeamRole) error {
	if !role.Valid() {
		return fmt.Errorf("invalid team role: %s", role)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`, teamID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberExists
	}

	s.teams.InvalidateUserTeam(userID, teamID)
	s.projects.InvalidateUser(userID)
	return nil
}

// UpdateMemberRole changes a member's role within a team
func (s *Service) UpdateMemberRole(ctx context.Context, teamID, userID int64, role permissions.TeamRole) error {
	if !role.Valid() {
		return fmt.Errorf("invalid team role: %s", role)
	}
	if err := s.guardCreator(ctx, teamID, userID); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE team_members SET role = $1 WHERE team_id = $2 AND user_id = $3
	`, role, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	s.teams.InvalidateUserTeam(userID, teamID)
	s.projects.InvalidateUser(userID)
	return nil
}

// RemoveMember removes a user from a team
func (s *Service) RemoveMember(ctx context.Context, teamID, userID int64) error {
	if err := s.guardCreator(ctx, teamID, userID); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM team_members WHERE team_id = $1 AND user_id = $2
	`, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	s.teams.InvalidateUserTeam(userID, teamID)
	s.projects.InvalidateUser(userID)
	return nil
}

// guardCreator rejects role changes targeting the team creator, whose
// access bypasses roles entirely.
func (s *Service) guardCreator(ctx context.Context, teamID, userID int64) error {
	var createdBy int64
	err := s.db.QueryRowContext(ctx, `SELECT created_by FROM teams WHERE id = $1`, teamID).Scan(&createdBy)
	if err == sql.ErrNoRows {
		return permissions.ErrTeamNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get team: %w", err)
	}
	if createdBy == userID {
		return ErrCreatorImmutable
	}
	return nil
}
