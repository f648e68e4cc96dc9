package permissions

import (
	"context"
	"fmt"
)

const scopeTeam = "team"

// teamContextKey namespaces team contexts in the shared cache
func teamContextKey(userID, teamID int64) string {
	return fmt.Sprintf("team:%d:%d", userID, teamID)
}

func userTag(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func teamTag(teamID int64) string {
	return fmt.Sprintf("team:%d", teamID)
}

// TeamChecker resolves a user's permissions within a single team. Load
// returns a TeamGrants bound to the loaded context; permission queries exist
// only on that value, so a context is always loaded before it is queried.
type TeamChecker struct {
	store   ContextStore
	cache   *ContextCache[*TeamContext]
	metrics *Metrics
}

// NewTeamChecker creates a team permission checker. The cache is shared
// process-wide and injected so tests can supply an isolated instance.
// Metrics may be nil.
func NewTeamChecker(store ContextStore, cache *ContextCache[*TeamContext], metrics *Metrics) *TeamChecker {
	return &TeamChecker{
		store:   store,
		cache:   cache,
		metrics: metrics,
	}
}

// Load returns the user's grants within the team, from cache when a fresh
// context is available. Returns ErrTeamNotFound if the team does not exist.
// A missing membership row is not an error; it yields a context with no role.
func (c *TeamChecker) Load(ctx context.Context, userID, teamID int64) (*TeamGrants, error) {
	key := teamContextKey(userID, teamID)
	if tc, ok := c.cache.Get(key); ok {
		c.metrics.recordLoad(scopeTeam, "cache")
		return &TeamGrants{context: tc, metrics: c.metrics}, nil
	}

	tc, err := c.fetch(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, tc, userTag(userID), teamTag(teamID))
	c.metrics.recordLoad(scopeTeam, "store")
	return &TeamGrants{context: tc, metrics: c.metrics}, nil
}

// LoadUncached bypasses the cache entirely: it neither reads nor writes it.
func (c *TeamChecker) LoadUncached(ctx context.Context, userID, teamID int64) (*TeamGrants, error) {
	tc, err := c.fetch(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	c.metrics.recordLoad(scopeTeam, "store")
	return &TeamGrants{context: tc, metrics: c.metrics}, nil
}

func (c *TeamChecker) fetch(ctx context.Context, userID, teamID int64) (*TeamContext, error) {
	createdBy, err := c.store.TeamCreator(ctx, teamID)
	if err != nil {
		return nil, err
	}

	role, err := c.store.TeamMemberRole(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	return &TeamContext{
		UserID:    userID,
		TeamID:    teamID,
		Role:      role,
		IsCreator: createdBy == userID,
	}, nil
}

// InvalidateUserTeam point-invalidates one user's context for one team
func (c *TeamChecker) InvalidateUserTeam(userID, teamID int64) {
	c.cache.Invalidate(teamContextKey(userID, teamID))
	c.metrics.recordInvalidation(scopeTeam, "user_team")
}

// InvalidateUser invalidates all of the user's team contexts
func (c *TeamChecker) InvalidateUser(userID int64) {
	c.cache.InvalidateTag(userTag(userID))
	c.metrics.recordInvalidation(scopeTeam, "user")
}

// InvalidateTeam invalidates every context referencing the team, for any user
func (c *TeamChecker) InvalidateTeam(teamID int64) {
	c.cache.InvalidateTag(teamTag(teamID))
	c.metrics.recordInvalidation(scopeTeam, "team")
}

// ClearCache removes all cached team contexts
func (c *TeamChecker) ClearCache() {
	c.cache.Clear()
	c.metrics.recordInvalidation(scopeTeam, "clear")
}

// TeamGrants answers permission queries against one loaded team context.
// It is immutable; queries are cheap catalog lookups with no I/O.
type TeamGrants struct {
	context *TeamContext
	metrics *Metrics
}

// Context returns a copy of the loaded context
func (g *TeamGrants) Context() TeamContext {
	return *g.context
}

// Has reports whether the loaded context grants the permission. Team
// creators bypass the role catalog entirely; users without a membership row
// have no permissions.
func (g *TeamGrants) Has(p Permission) bool {
	allowed := g.has(p)
	g.metrics.recordCheck(scopeTeam, allowed)
	return allowed
}

func (g *TeamGrants) has(p Permission) bool {
	if g.context.IsCreator {
		return true
	}
	if g.context.Role == nil {
		return false
	}
	_, ok := teamRoleSets[*g.context.Role][p]
	return ok
}

// CanViewTeam reports whether the user can view the team
func (g *TeamGrants) CanViewTeam() bool { return g.Has(TeamView) }

// CanEditTeam reports whether the user can edit team settings
func (g *TeamGrants) CanEditTeam() bool { return g.Has(TeamEdit) }

// CanDeleteTeam reports whether the user can delete the team. No role grants
// this; it is true only for the team creator.
func (g *TeamGrants) CanDeleteTeam() bool { return g.Has(TeamDelete) }

// CanManageMembers reports whether the user can manage team members
func (g *TeamGrants) CanManageMembers() bool { return g.Has(TeamManageMembers) }

// CanManageRoles reports whether the user can change member roles
func (g *TeamGrants) CanManageRoles() bool { return g.Has(TeamManageRoles) }

// CanInviteMembers reports whether the user can invite members
func (g *TeamGrants) CanInviteMembers() bool { return g.Has(TeamInviteMembers) }

// CanRemoveMembers reports whether the user can remove members
func (g *TeamGrants) CanRemoveMembers() bool { return g.Has(TeamRemoveMembers) }

// CanLeaveTeam reports whether the user can leave the team
func (g *TeamGrants) CanLeaveTeam() bool { return g.Has(TeamLeave) }

// All evaluates the full team permission catalog once and computes the
// derived flags. This is the canonical aggregation point; callers must not
// re-derive the flags from individual checks.
func (g *TeamGrants) All() TeamPermissionSet {
	set := TeamPermissionSet{
		CanViewTeam:      g.has(TeamView),
		CanEditTeam:      g.has(TeamEdit),
		CanDeleteTeam:    g.has(TeamDelete),
		CanManageMembers: g.has(TeamManageMembers),
		CanManageRoles:   g.has(TeamManageRoles),
		CanInviteMembers: g.has(TeamInviteMembers),
		CanRemoveMembers: g.has(TeamRemoveMembers),
		CanLeaveTeam:     g.has(TeamLeave),
	}

	set.CanViewSettings = set.CanEditTeam || set.CanManageMembers || set.CanManageRoles
	set.HasAnySettingsPermission = set.CanViewSettings
	set.HasAnyMemberPermission = set.CanManageMembers || set.CanInviteMembers || set.CanRemoveMembers

	return set
}
