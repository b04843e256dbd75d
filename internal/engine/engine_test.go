package engine_test

import (
	"context"
	"testing"
	"time"

	"bingoboard/internal/config"
	"bingoboard/internal/db"
	"bingoboard/internal/engine"
	"bingoboard/internal/migrate"
	"bingoboard/internal/rules"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("board-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitBoard(ctx, "board-1", "Test Board", "private", "mod"); err != nil {
		t.Fatalf("init board: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func mustTile(t *testing.T, env testEnv, id, name string, points int, prereqs string) {
	t.Helper()
	_, err := env.Engine.CreateTile(env.Ctx, engine.TileCreateOptions{
		ID: id, BoardID: "board-1", Name: name, Points: points, Prereqs: prereqs, ActorID: "mod", Force: true,
	})
	if err != nil {
		t.Fatalf("create tile %s: %v", id, err)
	}
}

func mustTeam(t *testing.T, env testEnv, id, name string) {
	t.Helper()
	if _, err := env.Engine.CreateTeam(env.Ctx, "board-1", id, name, "mod"); err != nil {
		t.Fatalf("create team %s: %v", id, err)
	}
}

func TestSubmissionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	mustTile(t, env, "t1", "First", 5, "")
	mustTeam(t, env, "red", "Red Team")

	s, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "t1", TeamID: "red", Evidence: "screenshot.png", ActorID: "alice",
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	if s.IsComplete || s.IsVerified || s.RequiresAction || s.IsArchived {
		t.Fatalf("new submission should carry no flags: %+v", s)
	}
	s, err = env.Engine.SubmitSubmission(env.Ctx, s.ID, "", "alice")
	if err != nil || !s.IsComplete {
		t.Fatalf("submit: %v complete=%v", err, s.IsComplete)
	}
	s, err = env.Engine.FlagSubmission(env.Ctx, s.ID, "blurry evidence", "mod")
	if err != nil || !s.RequiresAction {
		t.Fatalf("flag: %v", err)
	}
	if s.ModeratorNote != "blurry evidence" {
		t.Fatalf("note not recorded: %q", s.ModeratorNote)
	}
	// resubmission clears the flag
	s, err = env.Engine.SubmitSubmission(env.Ctx, s.ID, "better.png", "alice")
	if err != nil || s.RequiresAction {
		t.Fatalf("resubmit should clear flag: %v %+v", err, s)
	}
	s, err = env.Engine.VerifySubmission(env.Ctx, s.ID, "looks good", "mod")
	if err != nil || !s.IsVerified {
		t.Fatalf("verify: %v", err)
	}
	// verified submissions do not revert without force
	if _, err = env.Engine.RevertSubmission(env.Ctx, s.ID, "alice", false); err == nil {
		t.Fatalf("expected revert of verified submission to fail")
	}
	s, err = env.Engine.RevertSubmission(env.Ctx, s.ID, "mod", true)
	if err != nil || s.IsComplete || s.IsVerified {
		t.Fatalf("forced revert: %v %+v", err, s)
	}
}

func TestDuplicateActiveSubmissionRejected(t *testing.T) {
	env := newTestEnv(t)
	mustTile(t, env, "t1", "First", 5, "")
	mustTeam(t, env, "red", "Red Team")

	s, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "t1", TeamID: "red", ActorID: "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "t1", TeamID: "red", ActorID: "bob",
	})
	if err == nil {
		t.Fatalf("expected duplicate active submission to be rejected")
	}
	// archiving frees the slot
	if _, err := env.Engine.ArchiveSubmission(env.Ctx, s.ID, "mod"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "t1", TeamID: "red", ActorID: "bob",
	}); err != nil {
		t.Fatalf("expected new submission after archive: %v", err)
	}
}

func TestLockedTileBlocksSubmission(t *testing.T) {
	env := newTestEnv(t)
	mustTile(t, env, "a", "Opener", 5, "")
	mustTile(t, env, "b", "Gated", 10, "a")
	mustTeam(t, env, "red", "Red Team")

	_, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "b", TeamID: "red", ActorID: "alice",
	})
	if err == nil {
		t.Fatalf("expected locked tile to reject submission")
	}
	// force bypasses the gate
	forced, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "b", TeamID: "red", ActorID: "mod", Force: true,
	})
	if err != nil {
		t.Fatalf("forced submission: %v", err)
	}
	if _, err := env.Engine.ArchiveSubmission(env.Ctx, forced.ID, "mod"); err != nil {
		t.Fatal(err)
	}
	// completing the prerequisite unlocks the tile
	s, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "a", TeamID: "red", ActorID: "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitSubmission(env.Ctx, s.ID, "", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "b", TeamID: "red", ActorID: "alice",
	}); err != nil {
		t.Fatalf("expected unlocked tile to accept submission: %v", err)
	}
}

func TestTileStatusesHiddenAndPriority(t *testing.T) {
	env := newTestEnv(t)
	mustTile(t, env, "a", "Opener", 5, "")
	mustTile(t, env, "b", "Gated", 10, "a")
	if _, err := env.Engine.CreateTile(env.Ctx, engine.TileCreateOptions{
		ID: "secret", BoardID: "board-1", Name: "Secret", Points: 20, Hidden: true, ActorID: "mod", Force: true,
	}); err != nil {
		t.Fatal(err)
	}
	mustTeam(t, env, "red", "Red Team")

	statuses, err := env.Engine.TileStatuses(env.Ctx, "board-1", "red", false)
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]rules.Status{}
	for _, ts := range statuses {
		byID[ts.Tile.ID] = ts.Status
	}
	if _, ok := byID["secret"]; ok {
		t.Fatalf("hidden tile should be omitted for players")
	}
	if byID["a"] != rules.StatusUnlocked || byID["b"] != rules.StatusLocked {
		t.Fatalf("unexpected statuses: %v", byID)
	}

	all, err := env.Engine.TileStatuses(env.Ctx, "board-1", "red", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("moderator view should include hidden tiles, got %d", len(all))
	}
}

func TestStandingsScoringModes(t *testing.T) {
	env := newTestEnv(t)
	mustTile(t, env, "a", "Five", 5, "")
	mustTile(t, env, "b", "Ten", 10, "")
	mustTeam(t, env, "red", "Red Team")
	mustTeam(t, env, "blue", "Blue Team")

	// red completes both but only "a" gets verified; blue completes "a" only
	ra, _ := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{BoardID: "board-1", TileID: "a", TeamID: "red", ActorID: "r"})
	rb, _ := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{BoardID: "board-1", TileID: "b", TeamID: "red", ActorID: "r"})
	ba, _ := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{BoardID: "board-1", TileID: "a", TeamID: "blue", ActorID: "b"})
	for _, id := range []string{ra.ID, rb.ID, ba.ID} {
		if _, err := env.Engine.SubmitSubmission(env.Ctx, id, "", "x"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.Engine.VerifySubmission(env.Ctx, ra.ID, "", "mod"); err != nil {
		t.Fatal(err)
	}

	standings, err := env.Engine.Standings(env.Ctx, "board-1")
	if err != nil {
		t.Fatal(err)
	}
	if standings[0].TeamID != "red" || standings[0].Score != 15 || standings[0].Rank != 1 {
		t.Fatalf("completion scoring: %+v", standings)
	}
	if standings[1].TeamID != "blue" || standings[1].Score != 5 || standings[1].Rank != 2 {
		t.Fatalf("completion scoring: %+v", standings)
	}

	// switch the board to verified-only scoring
	cfg := config.Default("board-1")
	cfg.Scoring.ScoreOnVerifiedOnly = true
	if err := env.Engine.Repo.UpsertBoardConfig(env.Ctx, "board-1", cfg); err != nil {
		t.Fatal(err)
	}
	standings, err = env.Engine.Standings(env.Ctx, "board-1")
	if err != nil {
		t.Fatal(err)
	}
	if standings[0].TeamID != "red" || standings[0].Score != 5 {
		t.Fatalf("verified-only scoring: %+v", standings)
	}
	if standings[1].TeamID != "blue" || standings[1].Score != 0 {
		t.Fatalf("verified-only scoring: %+v", standings)
	}
}

func TestStrictUnlockPolicy(t *testing.T) {
	env := newTestEnv(t)
	cfg := config.Default("board-1")
	cfg.Scoring.UnlockOnVerifiedOnly = true
	if err := env.Engine.Repo.UpsertBoardConfig(env.Ctx, "board-1", cfg); err != nil {
		t.Fatal(err)
	}
	mustTile(t, env, "a", "Opener", 5, "")
	mustTile(t, env, "b", "Gated", 10, "a")
	mustTeam(t, env, "red", "Red Team")

	s, _ := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{BoardID: "board-1", TileID: "a", TeamID: "red", ActorID: "alice"})
	if _, err := env.Engine.SubmitSubmission(env.Ctx, s.ID, "", "alice"); err != nil {
		t.Fatal(err)
	}
	// completion is not enough under strict unlock
	if _, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "b", TeamID: "red", ActorID: "alice",
	}); err == nil {
		t.Fatalf("expected strict policy to keep tile locked")
	}
	if _, err := env.Engine.VerifySubmission(env.Ctx, s.ID, "", "mod"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "b", TeamID: "red", ActorID: "alice",
	}); err != nil {
		t.Fatalf("expected verified prerequisite to unlock: %v", err)
	}
}

func TestPrereqValidation(t *testing.T) {
	env := newTestEnv(t)
	mustTile(t, env, "a", "Opener", 5, "")

	_, err := env.Engine.CreateTile(env.Ctx, engine.TileCreateOptions{
		ID: "b", BoardID: "board-1", Name: "Gated", Points: 10, Prereqs: "a,ghost", ActorID: "mod",
	})
	if err == nil {
		t.Fatalf("expected unknown prerequisite to be rejected")
	}
	if _, err := env.Engine.CreateTile(env.Ctx, engine.TileCreateOptions{
		ID: "b", BoardID: "board-1", Name: "Gated", Points: 10, Prereqs: "a,ghost", ActorID: "mod", Force: true,
	}); err != nil {
		t.Fatalf("force should bypass validation: %v", err)
	}
	if _, err := env.Engine.CreateTile(env.Ctx, engine.TileCreateOptions{
		ID: "c", BoardID: "board-1", Name: "Self", Points: 1, Prereqs: "c", ActorID: "mod",
	}); err == nil {
		t.Fatalf("expected self reference to be rejected")
	}
}

func TestArchivedSubmissionImmutable(t *testing.T) {
	env := newTestEnv(t)
	mustTile(t, env, "t1", "First", 5, "")
	mustTeam(t, env, "red", "Red Team")
	s, err := env.Engine.CreateSubmission(env.Ctx, engine.SubmissionCreateOptions{
		BoardID: "board-1", TileID: "t1", TeamID: "red", ActorID: "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.ArchiveSubmission(env.Ctx, s.ID, "mod"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitSubmission(env.Ctx, s.ID, "", "alice"); err == nil {
		t.Fatalf("expected archived submission to reject submit")
	}
	if _, err := env.Engine.VerifySubmission(env.Ctx, s.ID, "", "mod"); err == nil {
		t.Fatalf("expected archived submission to reject verify")
	}
}

func TestTeamMembership(t *testing.T) {
	env := newTestEnv(t)
	mustTeam(t, env, "red", "Red Team")
	if err := env.Engine.AssignTeamMember(env.Ctx, "board-1", "red", "alice", "mod"); err != nil {
		t.Fatalf("assign member: %v", err)
	}
	m, err := env.Engine.Repo.GetTeamMembership(env.Ctx, "board-1", "alice")
	if err != nil || m.TeamID != "red" {
		t.Fatalf("membership: %v %+v", err, m)
	}
	// reassignment moves the actor
	mustTeam(t, env, "blue", "Blue Team")
	if err := env.Engine.AssignTeamMember(env.Ctx, "board-1", "blue", "alice", "mod"); err != nil {
		t.Fatal(err)
	}
	m, err = env.Engine.Repo.GetTeamMembership(env.Ctx, "board-1", "alice")
	if err != nil || m.TeamID != "blue" {
		t.Fatalf("reassignment: %v %+v", err, m)
	}
}
