// Package permissions implements permission evaluation for crewdeck teams
// and projects.
//
// # Overview
//
// Two checkers share one shape: TeamChecker resolves what a user may do
// within a single team, ProjectChecker within a single project. Both load a
// context snapshot (creatorship/ownership flag plus role rows) from the data
// layer through a shared in-memory TTL cache, then answer any number of
// synchronous permission queries against it.
//
// # Roles and catalogs
//
// Team roles: owner, admin, member, viewer. Project roles: admin, editor,
// viewer. Each role maps to a fixed set of Permission{Resource, Action}
// pairs; the catalogs in types.go are the single source of truth and must
// never be duplicated or inferred elsewhere. Two grants exist outside the
// catalogs entirely: team deletion (team creator only) and project deletion
// (project owner only).
//
// A project can be linked to several teams. The user's effective project
// role is the maximum across all memberships (admin > editor > viewer); a
// membership with no explicit project role counts as viewer and never
// higher, and an empty membership list grants nothing.
//
// # Usage
//
//	cache := permissions.NewContextCache[*permissions.TeamContext](4096, 5*time.Minute)
//	checker := permissions.NewTeamChecker(permissions.NewStore(db), cache, metrics)
//
//	grants, err := checker.Load(ctx, userID, teamID)
//	if err != nil {
//		return err // ErrTeamNotFound or a data-access failure
//	}
//	if grants.CanManageMembers() {
//		// ...
//	}
//	snapshot := grants.All() // canonical flat snapshot incl. derived flags
//
// Load returns a bound grants value; permission queries exist only on that
// value, so querying before loading cannot be expressed. Denial is a plain
// false, never an error.
//
// # Caching and invalidation
//
// Contexts are cached per process under team:<userID>:<teamID> and
// project:<userID>:<projectID> keys, each tagged with the user and every
// resource it was assembled from. Mutation layers must invalidate on any
// write that changes a creator/owner, a role, or a team-project link:
//
//	checker.InvalidateUserTeam(userID, teamID) // one user's role changed
//	checker.InvalidateTeam(teamID)             // team-wide change
//
// TTL expiry is a backstop only; relying on it would let a just-revoked
// permission remain effective for up to the TTL.
//
// # Related packages
//
//   - pkg/teams, pkg/projects: mutation layers that call the invalidation hooks
//   - pkg/middleware: request authentication feeding RequireTeamPermission /
//     RequireProjectPermission
package permissions
