package permissions

import (
	"testing"
)

func hasPermission(perms []Permission, p Permission) bool {
	for _, candidate := range perms {
		if candidate == p {
			return true
		}
	}
	return false
}

func TestTeamRoleCatalog(t *testing.T) {
	tests := []struct {
		role    TeamRole
		granted []Permission
		denied  []Permission
	}{
		{
			role: TeamRoleOwner,
			granted: []Permission{
				TeamView, TeamEdit, TeamManageMembers, TeamManageRoles,
				TeamInviteMembers, TeamRemoveMembers,
			},
			denied: []Permission{TeamDelete, TeamLeave},
		},
		{
			role: TeamRoleAdmin,
			granted: []Permission{
				TeamView, TeamEdit, TeamManageMembers,
				TeamInviteMembers, TeamRemoveMembers,
			},
			denied: []Permission{TeamDelete, TeamManageRoles, TeamLeave},
		},
		{
			role:    TeamRoleMember,
			granted: []Permission{TeamView, TeamInviteMembers, TeamLeave},
			denied: []Permission{
				TeamEdit, TeamDelete, TeamManageMembers,
				TeamManageRoles, TeamRemoveMembers,
			},
		},
		{
			role:    TeamRoleViewer,
			granted: []Permission{TeamView, TeamLeave},
			denied: []Permission{
				TeamEdit, TeamDelete, TeamManageMembers,
				TeamManageRoles, TeamInviteMembers, TeamRemoveMembers,
			},
		},
	}

	for _, tt := range tests {
		perms := TeamRolePermissions(tt.role)
		for _, p := range tt.granted {
			if !hasPermission(perms, p) {
				t.Errorf("%s should grant %s", tt.role, p)
			}
		}
		for _, p := range tt.denied {
			if hasPermission(perms, p) {
				t.Errorf("%s should not grant %s", tt.role, p)
			}
		}
	}
}

func TestNoTeamRoleGrantsDeletion(t *testing.T) {
	for role := range teamRoleCatalog {
		if hasPermission(TeamRolePermissions(role), TeamDelete) {
			t.Errorf("%s must not grant team deletion; that is creator-only", role)
		}
	}
}

func TestNoProjectRoleGrantsDeletion(t *testing.T) {
	for role := range projectRoleCatalog {
		if hasPermission(ProjectRolePermissions(role), ProjectDelete) {
			t.Errorf("%s must not grant project deletion; that is owner-only", role)
		}
	}
}

func TestProjectRoleCatalog(t *testing.T) {
	admin := ProjectRolePermissions(ProjectRoleAdmin)
	for _, p := range []Permission{
		ProjectView, ProjectEdit, ProjectArchive, ProjectManageTeams,
		ColumnDelete, CardDelete, CommentDelete, LabelDelete, AttachmentDelete,
	} {
		if !hasPermission(admin, p) {
			t.Errorf("admin should grant %s", p)
		}
	}

	editor := ProjectRolePermissions(ProjectRoleEditor)
	for _, p := range []Permission{
		ProjectView,
		ColumnCreate, ColumnEdit, ColumnReorder,
		CardCreate, CardEdit, CardAssign, CardMove,
		CommentCreate, CommentEdit,
		LabelCreate, LabelEdit,
		AttachmentUpload,
	} {
		if !hasPermission(editor, p) {
			t.Errorf("editor should grant %s", p)
		}
	}
	for _, p := range []Permission{
		ProjectEdit, ProjectArchive, ProjectManageTeams,
		ColumnDelete, CardDelete, CommentDelete, LabelDelete, AttachmentDelete,
	} {
		if hasPermission(editor, p) {
			t.Errorf("editor should not grant %s", p)
		}
	}

	viewer := ProjectRolePermissions(ProjectRoleViewer)
	if len(viewer) != 2 {
		t.Errorf("viewer should grant exactly 2 permissions, got %d", len(viewer))
	}
	if !hasPermission(viewer, ProjectView) || !hasPermission(viewer, CommentCreate) {
		t.Errorf("viewer should grant project viewing and comment creation, got %v", viewer)
	}
}

func TestRolePermissionsReturnsCopy(t *testing.T) {
	perms := TeamRolePermissions(TeamRoleViewer)
	perms[0] = TeamDelete

	if hasPermission(TeamRolePermissions(TeamRoleViewer), TeamDelete) {
		t.Error("mutating the returned slice must not affect the catalog")
	}
}

func TestRoleValidity(t *testing.T) {
	for _, role := range []TeamRole{TeamRoleOwner, TeamRoleAdmin, TeamRoleMember, TeamRoleViewer} {
		if !role.Valid() {
			t.Errorf("%s should be valid", role)
		}
	}
	if TeamRole("superuser").Valid() {
		t.Error("unknown team role should be invalid")
	}

	for _, role := range []ProjectRole{ProjectRoleAdmin, ProjectRoleEditor, ProjectRoleViewer} {
		if !role.Valid() {
			t.Errorf("%s should be valid", role)
		}
	}
	if ProjectRole("owner").Valid() {
		t.Error("owner is not a project role")
	}
}

func TestProjectRoleRank(t *testing.T) {
	if ProjectRoleAdmin.rank() <= ProjectRoleEditor.rank() {
		t.Error("admin must outrank editor")
	}
	if ProjectRoleEditor.rank() <= ProjectRoleViewer.rank() {
		t.Error("editor must outrank viewer")
	}
	if ProjectRole("bogus").rank() >= ProjectRoleViewer.rank() {
		t.Error("unknown roles must rank below viewer")
	}
}

func TestPermissionString(t *testing.T) {
	if got := TeamManageMembers.String(); got != "team:manage_members" {
		t.Errorf("unexpected string form: %s", got)
	}
	if got := CardMove.String(); got != "card:move" {
		t.Errorf("unexpected string form: %s", got)
	}
}
