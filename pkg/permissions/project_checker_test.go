package permissions

import (
	"context"
	"testing"
	"time"
)

func newProjectChecker(t *testing.T, store ContextStore) *ProjectChecker {
	cache := NewContextCache[*ProjectContext](64, time.Minute)
	return NewProjectChecker(store, cache, nil)
}

func TestProjectChecker_OwnerBypass(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	projectID := seedProject(t, db, "roadmap", alice)
	// Owner has no team membership linking to the project

	checker := newProjectChecker(t, NewStore(db))
	grants, err := checker.Load(ctx, alice, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, p := range []Permission{
		ProjectView, ProjectEdit, ProjectDelete, ProjectArchive,
		ProjectManageTeams, ColumnDelete, CardDelete, CommentDelete,
	} {
		if !grants.Has(p) {
			t.Errorf("Owner should have %s even with no memberships", p)
		}
	}

	projectCtx := grants.Context()
	if !projectCtx.IsOwner {
		t.Error("Context should mark the owner")
	}
	if len(projectCtx.Memberships) != 0 {
		t.Errorf("Expected no memberships, got %d", len(projectCtx.Memberships))
	}
}

func TestProjectChecker_NoMembershipsDeniedEverything(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	mallory := seedUser(t, db, "mallory")
	projectID := seedProject(t, db, "roadmap", alice)

	checker := newProjectChecker(t, NewStore(db))
	grants, err := checker.Load(ctx, mallory, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, p := range []Permission{ProjectView, CommentCreate, CardEdit} {
		if grants.Has(p) {
			t.Errorf("User without memberships should not have %s", p)
		}
	}
	if grants.Has(Permission{Resource: "bogus", Action: "anything"}) {
		t.Error("Unknown permissions must be denied, not granted")
	}
}

func TestProjectChecker_DefaultRoleIsViewer(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	teamID := seedTeam(t, db, "frontend", alice)
	projectID := seedProject(t, db, "roadmap", alice)
	seedProjectTeam(t, db, projectID, teamID)
	seedTeamMember(t, db, teamID, bob, TeamRoleOwner)
	// No explicit project role: team owner or not, bob acts as viewer here

	checker := newProjectChecker(t, NewStore(db))
	grants, err := checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !grants.CanViewProject() {
		t.Error("Linked-team member should view the project")
	}
	if !grants.Has(CommentCreate) {
		t.Error("Viewer default should allow commenting")
	}
	if grants.Has(CardEdit) || grants.CanEditProject() {
		t.Error("Viewer default must never exceed viewer")
	}
}

func TestProjectChecker_HighestRoleWins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	teamA := seedTeam(t, db, "frontend", alice)
	teamB := seedTeam(t, db, "backend", alice)
	projectID := seedProject(t, db, "roadmap", alice)
	seedProjectTeam(t, db, projectID, teamA)
	seedProjectTeam(t, db, projectID, teamB)
	seedTeamMember(t, db, teamA, bob, TeamRoleViewer)
	seedTeamMember(t, db, teamB, bob, TeamRoleViewer)
	seedProjectRole(t, db, projectID, teamA, bob, ProjectRoleViewer)
	seedProjectRole(t, db, projectID, teamB, bob, ProjectRoleAdmin)

	checker := newProjectChecker(t, NewStore(db))
	grants, err := checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !grants.Has(ColumnDelete) {
		t.Error("Admin via any membership should win over viewer")
	}
	if grants.CanDeleteProject() {
		t.Error("Even project admins cannot delete; that is owner-only")
	}
}

func TestProjectChecker_EditorGrants(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	teamID := seedTeam(t, db, "frontend", alice)
	projectID := seedProject(t, db, "roadmap", alice)
	seedProjectTeam(t, db, projectID, teamID)
	seedTeamMember(t, db, teamID, bob, TeamRoleMember)
	seedProjectRole(t, db, projectID, teamID, bob, ProjectRoleEditor)

	checker := newProjectChecker(t, NewStore(db))
	grants, err := checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !grants.Has(CardCreate) || !grants.Has(CardMove) || !grants.Has(AttachmentUpload) {
		t.Error("Editor should create and move cards and upload attachments")
	}
	if grants.Has(CardDelete) || grants.Has(ColumnDelete) || grants.Has(CommentDelete) {
		t.Error("Editor should not hold any deletion grants")
	}
}

func TestProjectChecker_ProjectNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")

	checker := newProjectChecker(t, NewStore(db))
	_, err := checker.Load(ctx, alice, 9999)
	if err != ErrProjectNotFound {
		t.Errorf("Expected ErrProjectNotFound, got %v", err)
	}
}

func TestProjectChecker_CachesContexts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	teamID := seedTeam(t, db, "frontend", alice)
	projectID := seedProject(t, db, "roadmap", alice)
	seedProjectTeam(t, db, projectID, teamID)
	seedTeamMember(t, db, teamID, bob, TeamRoleMember)

	spy := &spyStore{ContextStore: NewStore(db)}
	checker := newProjectChecker(t, spy)

	for i := 0; i < 5; i++ {
		if _, err := checker.Load(ctx, bob, projectID); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}

	if spy.projectOwnerCalls != 1 || spy.membershipCalls != 1 {
		t.Errorf("Expected a single data-layer fetch, got owner=%d memberships=%d",
			spy.projectOwnerCalls, spy.membershipCalls)
	}
}

func TestProjectChecker_InvalidateTeamDropsLinkedContexts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	teamID := seedTeam(t, db, "frontend", alice)
	projectID := seedProject(t, db, "roadmap", alice)
	seedProjectTeam(t, db, projectID, teamID)
	seedTeamMember(t, db, teamID, bob, TeamRoleMember)
	seedProjectRole(t, db, projectID, teamID, bob, ProjectRoleEditor)

	spy := &spyStore{ContextStore: NewStore(db)}
	checker := newProjectChecker(t, spy)

	grants, err := checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !grants.Has(CardEdit) {
		t.Fatal("Editor should edit cards")
	}

	// Unlink the team; the cached context was tagged with the team id and
	// must fall with it.
	if _, err := db.Exec("DELETE FROM project_teams WHERE project_id = ? AND team_id = ?", projectID, teamID); err != nil {
		t.Fatalf("Failed to unlink: %v", err)
	}
	checker.InvalidateTeam(teamID)

	grants, err = checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if grants.Has(ProjectView) {
		t.Error("Access should be gone after the team link was removed")
	}
	if spy.projectOwnerCalls != 2 {
		t.Errorf("Expected refetch after team invalidation, got %d fetches", spy.projectOwnerCalls)
	}
}

func TestProjectGrants_CanModifyComment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")
	teamID := seedTeam(t, db, "frontend", alice)
	projectID := seedProject(t, db, "roadmap", alice)
	seedProjectTeam(t, db, projectID, teamID)
	seedTeamMember(t, db, teamID, bob, TeamRoleMember)
	seedTeamMember(t, db, teamID, carol, TeamRoleMember)
	seedProjectRole(t, db, projectID, teamID, bob, ProjectRoleEditor)
	seedProjectRole(t, db, projectID, teamID, carol, ProjectRoleEditor)

	bobComment := seedComment(t, db, projectID, bob, "ship it")

	spy := &spyStore{ContextStore: NewStore(db)}
	checker := newProjectChecker(t, spy)

	// Author with edit rights may modify their own comment
	grants, err := checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ok, err := grants.CanModifyComment(ctx, bobComment)
	if err != nil {
		t.Fatalf("CanModifyComment failed: %v", err)
	}
	if !ok {
		t.Error("Author with comment editing should modify own comment")
	}

	// Another editor may not touch it
	grants, err = checker.Load(ctx, carol, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ok, err = grants.CanModifyComment(ctx, bobComment)
	if err != nil {
		t.Fatalf("CanModifyComment failed: %v", err)
	}
	if ok {
		t.Error("Editor should not modify someone else's comment")
	}

	// The owner holds comment deletion and never consults authorship
	beforeAuthorCalls := spy.commentAuthorCalls
	grants, err = checker.Load(ctx, alice, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ok, err = grants.CanModifyComment(ctx, bobComment)
	if err != nil {
		t.Fatalf("CanModifyComment failed: %v", err)
	}
	if !ok {
		t.Error("Owner should modify any comment")
	}
	if spy.commentAuthorCalls != beforeAuthorCalls {
		t.Error("Deletion right should short-circuit the author lookup")
	}

	// Unknown comment surfaces the sentinel
	grants, err = checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, err = grants.CanModifyComment(ctx, 9999)
	if err != ErrCommentNotFound {
		t.Errorf("Expected ErrCommentNotFound, got %v", err)
	}
}

func TestProjectGrants_All(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	teamID := seedTeam(t, db, "frontend", alice)
	projectID := seedProject(t, db, "roadmap", alice)
	seedProjectTeam(t, db, projectID, teamID)
	seedTeamMember(t, db, teamID, bob, TeamRoleMember)
	seedProjectRole(t, db, projectID, teamID, bob, ProjectRoleEditor)

	checker := newProjectChecker(t, NewStore(db))
	grants, err := checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	set := grants.All()
	if !set.CanViewProject || !set.CanEditCards || !set.CanCreateColumns {
		t.Errorf("Unexpected editor snapshot: %+v", set)
	}
	if set.CanDeleteCards || set.CanDeleteProject || set.CanManageTeams {
		t.Errorf("Editor snapshot should not include deletion or management: %+v", set)
	}
	if !set.HasAnyEditPermission {
		t.Error("Editor should have the edit flag")
	}
	if set.HasAnyManagementPermission || set.CanViewSettings {
		t.Error("Editor should not have management flags")
	}
}

func TestProjectGrants_AllViewerSnapshot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	teamID := seedTeam(t, db, "frontend", alice)
	projectID := seedProject(t, db, "roadmap", alice)
	seedProjectTeam(t, db, projectID, teamID)
	seedTeamMember(t, db, teamID, bob, TeamRoleViewer)

	checker := newProjectChecker(t, NewStore(db))
	grants, err := checker.Load(ctx, bob, projectID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	set := grants.All()
	expected := ProjectPermissionSet{
		CanViewProject:    true,
		CanCreateComments: true,
	}
	if set != expected {
		t.Errorf("Viewer snapshot mismatch:\n got %+v\nwant %+v", set, expected)
	}
}
