package permissions

import (
	"context"
	"fmt"
)

const scopeProject = "project"

// projectContextKey namespaces project contexts in the shared cache
func projectContextKey(userID, projectID int64) string {
	return fmt.Sprintf("project:%d:%d", userID, projectID)
}

func projectTag(projectID int64) string {
	return fmt.Sprintf("project:%d", projectID)
}

// ProjectChecker resolves a user's permissions within a single project. A
// project can be linked to several teams; the user's effective role is the
// maximum project role across every team membership that grants access.
type ProjectChecker struct {
	store   ContextStore
	cache   *ContextCache[*ProjectContext]
	metrics *Metrics
}

// NewProjectChecker creates a project permission checker. Metrics may be nil.
func NewProjectChecker(store ContextStore, cache *ContextCache[*ProjectContext], metrics *Metrics) *ProjectChecker {
	return &ProjectChecker{
		store:   store,
		cache:   cache,
		metrics: metrics,
	}
}

// Load returns the user's grants within the project, from cache when a fresh
// context is available. Returns ErrProjectNotFound if the project does not
// exist. An empty membership list is not an error; it yields a context with
// no permissions unless the user is the owner.
func (c *ProjectChecker) Load(ctx context.Context, userID, projectID int64) (*ProjectGrants, error) {
	key := projectContextKey(userID, projectID)
	if pc, ok := c.cache.Get(key); ok {
		c.metrics.recordLoad(scopeProject, "cache")
		return &ProjectGrants{context: pc, store: c.store, metrics: c.metrics}, nil
	}

	pc, err := c.fetch(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(pc.Memberships)+2)
	tags = append(tags, userTag(userID), projectTag(projectID))
	for _, m := range pc.Memberships {
		tags = append(tags, teamTag(m.TeamID))
	}

	c.cache.Set(key, pc, tags...)
	c.metrics.recordLoad(scopeProject, "store")
	return &ProjectGrants{context: pc, store: c.store, metrics: c.metrics}, nil
}

// LoadUncached bypasses the cache entirely: it neither reads nor writes it.
func (c *ProjectChecker) LoadUncached(ctx context.Context, userID, projectID int64) (*ProjectGrants, error) {
	pc, err := c.fetch(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	c.metrics.recordLoad(scopeProject, "store")
	return &ProjectGrants{context: pc, store: c.store, metrics: c.metrics}, nil
}

func (c *ProjectChecker) fetch(ctx context.Context, userID, projectID int64) (*ProjectContext, error) {
	ownerID, err := c.store.ProjectOwner(ctx, projectID)
	if err != nil {
		return nil, err
	}

	memberships, err := c.store.ProjectMemberships(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	return &ProjectContext{
		UserID:      userID,
		ProjectID:   projectID,
		IsOwner:     ownerID == userID,
		Memberships: memberships,
	}, nil
}

// InvalidateUserProject point-invalidates one user's context for one project
func (c *ProjectChecker) InvalidateUserProject(userID, projectID int64) {
	c.cache.Invalidate(projectContextKey(userID, projectID))
	c.metrics.recordInvalidation(scopeProject, "user_project")
}

// InvalidateUser invalidates all of the user's project contexts
func (c *ProjectChecker) InvalidateUser(userID int64) {
	c.cache.InvalidateTag(userTag(userID))
	c.metrics.recordInvalidation(scopeProject, "user")
}

// InvalidateProject invalidates every context referencing the project
func (c *ProjectChecker) InvalidateProject(projectID int64) {
	c.cache.InvalidateTag(projectTag(projectID))
	c.metrics.recordInvalidation(scopeProject, "project")
}

// InvalidateTeam invalidates every project context that was assembled from a
// membership in the team. Needed when a team-project link is removed or a
// user's standing in a linked team changes.
func (c *ProjectChecker) InvalidateTeam(teamID int64) {
	c.cache.InvalidateTag(teamTag(teamID))
	c.metrics.recordInvalidation(scopeProject, "team")
}

// ClearCache removes all cached project contexts
func (c *ProjectChecker) ClearCache() {
	c.cache.Clear()
	c.metrics.recordInvalidation(scopeProject, "clear")
}

// ProjectGrants answers permission queries against one loaded project
// context. Queries are catalog lookups with no I/O, except CanModifyComment
// which may fetch the comment's author.
type ProjectGrants struct {
	context *ProjectContext
	store   ContextStore
	metrics *Metrics
}

// Context returns a copy of the loaded context
func (g *ProjectGrants) Context() ProjectContext {
	return *g.context
}

// Has reports whether the loaded context grants the permission. Project
// owners bypass the role catalog entirely. With no memberships the answer is
// false for every permission. Otherwise the highest project role across all
// memberships decides; a membership without an explicit project role counts
// as viewer and never higher.
func (g *ProjectGrants) Has(p Permission) bool {
	allowed := g.has(p)
	g.metrics.recordCheck(scopeProject, allowed)
	return allowed
}

func (g *ProjectGrants) has(p Permission) bool {
	if g.context.IsOwner {
		return true
	}
	role, ok := g.effectiveRole()
	if !ok {
		return false
	}
	_, granted := projectRoleSets[role][p]
	return granted
}

// effectiveRole returns the maximum project role across all memberships.
// ok is false when the membership list is empty.
func (g *ProjectGrants) effectiveRole() (ProjectRole, bool) {
	if len(g.context.Memberships) == 0 {
		return "", false
	}

	highest := ProjectRoleViewer
	for _, m := range g.context.Memberships {
		if m.ProjectRole != nil && m.ProjectRole.rank() > highest.rank() {
			highest = *m.ProjectRole
		}
	}
	return highest, true
}

// CanModifyComment reports whether the user may edit or delete the comment.
// Users with project-wide comment deletion (admin or owner) may always
// modify; users with comment editing may modify only their own comments.
// The comment author is fetched only when authorship has to be consulted.
func (g *ProjectGrants) CanModifyComment(ctx context.Context, commentID int64) (bool, error) {
	if g.Has(CommentDelete) {
		return true, nil
	}
	if !g.Has(CommentEdit) {
		return false, nil
	}

	authorID, err := g.store.CommentAuthor(ctx, commentID)
	if err != nil {
		return false, err
	}
	return authorID == g.context.UserID, nil
}

// CanViewProject reports whether the user can view the project
func (g *ProjectGrants) CanViewProject() bool { return g.Has(ProjectView) }

// CanEditProject reports whether the user can edit project settings
func (g *ProjectGrants) CanEditProject() bool { return g.Has(ProjectEdit) }

// CanDeleteProject reports whether the user can delete the project. No role
// grants this; it is true only for the project owner.
func (g *ProjectGrants) CanDeleteProject() bool { return g.Has(ProjectDelete) }

// CanArchiveProject reports whether the user can archive the project
func (g *ProjectGrants) CanArchiveProject() bool { return g.Has(ProjectArchive) }

// CanManageTeams reports whether the user can link or unlink teams
func (g *ProjectGrants) CanManageTeams() bool { return g.Has(ProjectManageTeams) }

// All evaluates the full project permission catalog once and computes the
// derived flags. This is the canonical aggregation point.
func (g *ProjectGrants) All() ProjectPermissionSet {
	set := ProjectPermissionSet{
		CanViewProject:    g.has(ProjectView),
		CanEditProject:    g.has(ProjectEdit),
		CanDeleteProject:  g.has(ProjectDelete),
		CanArchiveProject: g.has(ProjectArchive),
		CanManageTeams:    g.has(ProjectManageTeams),

		CanCreateColumns: g.has(ColumnCreate),
		CanEditColumns:   g.has(ColumnEdit),
		CanDeleteColumns: g.has(ColumnDelete),

		CanCreateCards: g.has(CardCreate),
		CanEditCards:   g.has(CardEdit),
		CanDeleteCards: g.has(CardDelete),

		CanCreateComments: g.has(CommentCreate),
		CanEditComments:   g.has(CommentEdit),
		CanDeleteComments: g.has(CommentDelete),

		CanCreateLabels: g.has(LabelCreate),
		CanEditLabels:   g.has(LabelEdit),
		CanDeleteLabels: g.has(LabelDelete),

		CanUploadAttachments: g.has(AttachmentUpload),
		CanDeleteAttachments: g.has(AttachmentDelete),
	}

	set.HasAnyEditPermission = set.CanEditProject || set.CanEditCards || set.CanEditColumns
	set.HasAnyManagementPermission = set.CanEditProject || set.CanManageTeams || set.CanDeleteProject
	set.CanViewSettings = set.CanEditProject || set.CanManageTeams

	return set
}
