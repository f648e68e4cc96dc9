package permissions

import "errors"

var (
	// ErrTeamNotFound is returned when loading a context for a team that
	// does not exist
	ErrTeamNotFound = errors.New("team not found")

	// ErrProjectNotFound is returned when loading a context for a project
	// that does not exist
	ErrProjectNotFound = errors.New("project not found")

	// ErrCommentNotFound is returned when a comment ownership check
	// references a missing comment
	ErrCommentNotFound = errors.New("comment not found")
)
