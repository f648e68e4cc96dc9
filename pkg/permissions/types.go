package permissions

// Resource represents a resource type on the dashboard
type Resource string

const (
	ResourceTeam       Resource = "team"
	ResourceProject    Resource = "project"
	ResourceColumn     Resource = "column"
	ResourceCard       Resource = "card"
	ResourceComment    Resource = "comment"
	ResourceLabel      Resource = "label"
	ResourceAttachment Resource = "attachment"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionView          Action = "view"
	ActionEdit          Action = "edit"
	ActionDelete        Action = "delete"
	ActionArchive       Action = "archive"
	ActionCreate        Action = "create"
	ActionReorder       Action = "reorder"
	ActionAssign        Action = "assign"
	ActionMove          Action = "move"
	ActionUpload        Action = "upload"
	ActionLeave         Action = "leave"
	ActionManageMembers Action = "manage_members"
	ActionManageRoles   Action = "manage_roles"
	ActionInviteMembers Action = "invite_members"
	ActionRemoveMembers Action = "remove_members"
	ActionManageTeams   Action = "manage_teams"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Team-scoped permission catalog
var (
	TeamView          = Permission{ResourceTeam, ActionView}
	TeamEdit          = Permission{ResourceTeam, ActionEdit}
	TeamDelete        = Permission{ResourceTeam, ActionDelete}
	TeamManageMembers = Permission{ResourceTeam, ActionManageMembers}
	TeamManageRoles   = Permission{ResourceTeam, ActionManageRoles}
	TeamInviteMembers = Permission{ResourceTeam, ActionInviteMembers}
	TeamRemoveMembers = Permission{ResourceTeam, ActionRemoveMembers}
	TeamLeave         = Permission{ResourceTeam, ActionLeave}
)

// Project-scoped permission catalog
var (
	ProjectView        = Permission{ResourceProject, ActionView}
	ProjectEdit        = Permission{ResourceProject, ActionEdit}
	ProjectDelete      = Permission{ResourceProject, ActionDelete}
	ProjectArchive     = Permission{ResourceProject, ActionArchive}
	ProjectManageTeams = Permission{ResourceProject, ActionManageTeams}

	ColumnCreate  = Permission{ResourceColumn, ActionCreate}
	ColumnEdit    = Permission{ResourceColumn, ActionEdit}
	ColumnDelete  = Permission{ResourceColumn, ActionDelete}
	ColumnReorder = Permission{ResourceColumn, ActionReorder}

	CardCreate = Permission{ResourceCard, ActionCreate}
	CardEdit   = Permission{ResourceCard, ActionEdit}
	CardDelete = Permission{ResourceCard, ActionDelete}
	CardAssign = Permission{ResourceCard, ActionAssign}
	CardMove   = Permission{ResourceCard, ActionMove}

	CommentCreate = Permission{ResourceComment, ActionCreate}
	CommentEdit   = Permission{ResourceComment, ActionEdit}
	CommentDelete = Permission{ResourceComment, ActionDelete}

	LabelCreate = Permission{ResourceLabel, ActionCreate}
	LabelEdit   = Permission{ResourceLabel, ActionEdit}
	LabelDelete = Permission{ResourceLabel, ActionDelete}

	AttachmentUpload = Permission{ResourceAttachment, ActionUpload}
	AttachmentDelete = Permission{ResourceAttachment, ActionDelete}
)

// TeamRole represents a user's role within a team
type TeamRole string

const (
	TeamRoleOwner  TeamRole = "owner"
	TeamRoleAdmin  TeamRole = "admin"
	TeamRoleMember TeamRole = "member"
	TeamRoleViewer TeamRole = "viewer"
)

// Valid reports whether the role is a known team role
func (r TeamRole) Valid() bool {
	switch r {
	case TeamRoleOwner, TeamRoleAdmin, TeamRoleMember, TeamRoleViewer:
		return true
	}
	return false
}

// ProjectRole represents a user's role within a project, granted through a
// team membership
type ProjectRole string

const (
	ProjectRoleAdmin  ProjectRole = "admin"
	ProjectRoleEditor ProjectRole = "editor"
	ProjectRoleViewer ProjectRole = "viewer"
)

// Valid reports whether the role is a known project role
func (r ProjectRole) Valid() bool {
	switch r {
	case ProjectRoleAdmin, ProjectRoleEditor, ProjectRoleViewer:
		return true
	}
	return false
}

// rank orders project roles for aggregation across memberships.
// admin > editor > viewer; unknown roles rank below viewer.
func (r ProjectRole) rank() int {
	switch r {
	case ProjectRoleAdmin:
		return 3
	case ProjectRoleEditor:
		return 2
	case ProjectRoleViewer:
		return 1
	}
	return 0
}

// teamRoleCatalog is the single source of truth for which permissions each
// team role unlocks. Team deletion is deliberately absent from every role:
// only the team creator may delete a team, and creators bypass the catalog.
var teamRoleCatalog = map[TeamRole][]Permission{
	TeamRoleOwner: {
		TeamView,
		TeamEdit,
		TeamManageMembers,
		TeamManageRoles,
		TeamInviteMembers,
		TeamRemoveMembers,
	},
	TeamRoleAdmin: {
		TeamView,
		TeamEdit,
		TeamManageMembers,
		TeamInviteMembers,
		TeamRemoveMembers,
	},
	TeamRoleMember: {
		TeamView,
		TeamInviteMembers,
		TeamLeave,
	},
	TeamRoleViewer: {
		TeamView,
		TeamLeave,
	},
}

// projectRoleCatalog is the single source of truth for project roles.
// Project deletion is absent from every role: only the project owner may
// delete, and owners bypass the catalog.
var projectRoleCatalog = map[ProjectRole][]Permission{
	ProjectRoleAdmin: {
		ProjectView,
		ProjectEdit,
		ProjectArchive,
		ProjectManageTeams,
		ColumnCreate, ColumnEdit, ColumnDelete, ColumnReorder,
		CardCreate, CardEdit, CardDelete, CardAssign, CardMove,
		CommentCreate, CommentEdit, CommentDelete,
		LabelCreate, LabelEdit, LabelDelete,
		AttachmentUpload, AttachmentDelete,
	},
	ProjectRoleEditor: {
		ProjectView,
		ColumnCreate, ColumnEdit, ColumnReorder,
		CardCreate, CardEdit, CardAssign, CardMove,
		CommentCreate, CommentEdit,
		LabelCreate, LabelEdit,
		AttachmentUpload,
	},
	ProjectRoleViewer: {
		ProjectView,
		CommentCreate,
	},
}

var (
	teamRoleSets    = buildRoleSets(teamRoleCatalog)
	projectRoleSets = buildRoleSets(projectRoleCatalog)
)

func buildRoleSets[R comparable](catalog map[R][]Permission) map[R]map[Permission]struct{} {
	sets := make(map[R]map[Permission]struct{}, len(catalog))
	for role, perms := range catalog {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		sets[role] = set
	}
	return sets
}

// TeamRolePermissions returns the permission list a team role grants
func TeamRolePermissions(role TeamRole) []Permission {
	perms := teamRoleCatalog[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// ProjectRolePermissions returns the permission list a project role grants
func ProjectRolePermissions(role ProjectRole) []Permission {
	perms := projectRoleCatalog[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// TeamContext is the loaded snapshot of a user's standing within one team
type TeamContext struct {
	UserID    int64     `json:"user_id"`
	TeamID    int64     `json:"team_id"`
	Role      *TeamRole `json:"role,omitempty"`
	IsCreator bool      `json:"is_creator"`
}

// ProjectMembership is one row of the user's team memberships that link to a
// project. Role is the team role; ProjectRole is nil when the team is linked
// to the project but no per-member project role has been assigned.
type ProjectMembership struct {
	TeamID      int64        `json:"team_id"`
	TeamRole    TeamRole     `json:"team_role"`
	ProjectRole *ProjectRole `json:"project_role,omitempty"`
}

// ProjectContext is the loaded snapshot of a user's standing within one project
type ProjectContext struct {
	UserID      int64               `json:"user_id"`
	ProjectID   int64               `json:"project_id"`
	IsOwner     bool                `json:"is_owner"`
	Memberships []ProjectMembership `json:"memberships"`
}

// TeamPermissionSet is the flat, canonical aggregation of every team
// permission check plus the derived flags the dashboard renders from.
// Callers must not re-derive the flags elsewhere.
type TeamPermissionSet struct {
	CanViewTeam      bool `json:"can_view_team"`
	CanEditTeam      bool `json:"can_edit_team"`
	CanDeleteTeam    bool `json:"can_delete_team"`
	CanManageMembers bool `json:"can_manage_members"`
	CanManageRoles   bool `json:"can_manage_roles"`
	CanInviteMembers bool `json:"can_invite_members"`
	CanRemoveMembers bool `json:"can_remove_members"`
	CanLeaveTeam     bool `json:"can_leave_team"`

	CanViewSettings          bool `json:"can_view_settings"`
	HasAnySettingsPermission bool `json:"has_any_settings_permission"`
	HasAnyMemberPermission   bool `json:"has_any_member_permission"`
}

// ProjectPermissionSet is the flat, canonical aggregation of every project
// permission check plus the derived flags.
type ProjectPermissionSet struct {
	CanViewProject    bool `json:"can_view_project"`
	CanEditProject    bool `json:"can_edit_project"`
	CanDeleteProject  bool `json:"can_delete_project"`
	CanArchiveProject bool `json:"can_archive_project"`
	CanManageTeams    bool `json:"can_manage_teams"`

	CanCreateColumns bool `json:"can_create_columns"`
	CanEditColumns   bool `json:"can_edit_columns"`
	CanDeleteColumns bool `json:"can_delete_columns"`

	CanCreateCards bool `json:"can_create_cards"`
	CanEditCards   bool `json:"can_edit_cards"`
	CanDeleteCards bool `json:"can_delete_cards"`

	CanCreateComments bool `json:"can_create_comments"`
	CanEditComments   bool `json:"can_edit_comments"`
	CanDeleteComments bool `json:"can_delete_comments"`

	CanCreateLabels bool `json:"can_create_labels"`
	CanEditLabels   bool `json:"can_edit_labels"`
	CanDeleteLabels bool `json:"can_delete_labels"`

	CanUploadAttachments bool `json:"can_upload_attachments"`
	CanDeleteAttachments bool `json:"can_delete_attachments"`

	HasAnyEditPermission       bool `json:"has_any_edit_permission"`
	HasAnyManagementPermission bool `json:"has_any_management_permission"`
	CanViewSettings            bool `json:"can_view_settings"`
}
