package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bingoboard/internal/config"
	"bingoboard/internal/domain"
	"bingoboard/internal/engine/auth"
	"bingoboard/internal/events"
	"bingoboard/internal/repo"
	"bingoboard/internal/rules"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Auth:   auth.Service{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// InitBoard creates a board, stores its config, seeds RBAC from the config
// roles and makes the creating actor a moderator.
func (e Engine) InitBoard(ctx context.Context, boardID, title, visibility, actorID string) (domain.Board, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Board{}, err
	}
	defer tx.Rollback()

	cfg := config.Default(boardID)
	if title != "" {
		cfg.Board.Title = title
	}
	if visibility != "" {
		cfg.Board.Visibility = visibility
	}
	b := domain.Board{
		ID:         boardID,
		Title:      title,
		Visibility: cfg.Visibility(),
		Status:     "draft",
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO boards(id,title,visibility,status,created_at) VALUES (?,?,?,?,?)`,
		b.ID, b.Title, b.Visibility, b.Status, b.CreatedAt); err != nil {
		return domain.Board{}, fmt.Errorf("insert board: %w", err)
	}
	if err := e.Repo.UpsertBoardConfigTx(ctx, tx, b.ID, cfg); err != nil {
		return domain.Board{}, fmt.Errorf("insert board config: %w", err)
	}
	if err := e.seedRBAC(ctx, tx, b.ID, cfg); err != nil {
		return domain.Board{}, fmt.Errorf("seed rbac: %w", err)
	}
	if actorID != "" {
		if err := e.Auth.EnsureActor(ctx, tx, actorID); err != nil {
			return domain.Board{}, err
		}
		if err := e.Repo.AssignRole(ctx, tx, b.ID, actorID, "moderator"); err != nil {
			return domain.Board{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "board.created", b.ID, "board", b.ID, actorID, events.EventPayload{"visibility": b.Visibility}); err != nil {
		return domain.Board{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

func (e Engine) seedRBAC(ctx context.Context, tx *sql.Tx, boardID string, cfg *config.Config) error {
	for roleID, role := range cfg.RBAC.Roles {
		if err := e.Repo.InsertRole(ctx, tx, roleID, role.Description); err != nil {
			return err
		}
		for _, perm := range role.Permissions {
			if err := e.Repo.InsertPermission(ctx, tx, perm, ""); err != nil {
				return err
			}
			if err := e.Repo.AddRolePermission(ctx, tx, roleID, perm); err != nil {
				return err
			}
		}
	}
	return nil
}

// Policy resolves the board's scoring knobs from the stored config. Missing
// config or missing flags default to the permissive branch.
func (e Engine) Policy(ctx context.Context, boardID string) rules.Policy {
	cfg, err := e.Repo.GetBoardConfig(ctx, boardID)
	if err != nil || cfg == nil {
		if e.Config != nil {
			cfg = e.Config
		} else {
			return rules.Policy{}
		}
	}
	return rules.Policy{
		UnlockOnVerifiedOnly: cfg.Scoring.UnlockOnVerifiedOnly,
		ScoreOnVerifiedOnly:  cfg.Scoring.ScoreOnVerifiedOnly,
	}
}

// TileCreateOptions are parameters for creating a tile.
type TileCreateOptions struct {
	ID          string
	BoardID     string
	Name        string
	Description string
	Points      int
	Prereqs     string
	Row         *int
	Col         *int
	Hidden      bool
	ActorID     string
	Force       bool
}

func (e Engine) CreateTile(ctx context.Context, opts TileCreateOptions) (domain.Tile, error) {
	if opts.Name == "" {
		return domain.Tile{}, errors.New("name is required")
	}
	if opts.BoardID == "" {
		return domain.Tile{}, errors.New("board is required")
	}
	if opts.Points < 0 {
		return domain.Tile{}, errors.New("points must be non-negative")
	}
	if _, err := e.Repo.GetBoard(ctx, opts.BoardID); err != nil {
		return domain.Tile{}, err
	}
	id := opts.ID
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.BoardID+"|"+opts.Name+"|"+now)).String()
	}
	if !opts.Force {
		if err := e.ensurePrereqsResolvable(ctx, opts.BoardID, id, opts.Prereqs); err != nil {
			return domain.Tile{}, err
		}
	}
	t := domain.Tile{
		ID:          id,
		BoardID:     opts.BoardID,
		Name:        opts.Name,
		Description: opts.Description,
		Points:      opts.Points,
		PrereqsRaw:  opts.Prereqs,
		Row:         opts.Row,
		Col:         opts.Col,
		Hidden:      opts.Hidden,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tile{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTileTx(ctx, tx, t); err != nil {
		return domain.Tile{}, err
	}
	if err := e.Events.Append(ctx, tx, "tile.created", t.BoardID, "tile", t.ID, opts.ActorID, events.EventPayload{"name": t.Name, "points": t.Points}); err != nil {
		return domain.Tile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Tile{}, err
	}
	return t, nil
}

// ensurePrereqsResolvable rejects prerequisite text that references tiles
// unknown on the board. The evaluator itself tolerates dangling ids (they
// simply never satisfy), this is a moderator-facing guard against typos.
func (e Engine) ensurePrereqsResolvable(ctx context.Context, boardID, selfID, raw string) error {
	groups := rules.ParsePrereq(raw)
	if len(groups) == 0 {
		return nil
	}
	tiles, err := e.Repo.ListTiles(ctx, boardID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(tiles))
	for _, t := range tiles {
		known[t.ID] = true
	}
	var missing []string
	for _, group := range groups {
		for _, id := range group {
			if id == selfID {
				return fmt.Errorf("tile %s cannot require itself", selfID)
			}
			if !known[id] {
				missing = append(missing, id)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("prerequisites reference unknown tiles: %s", strings.Join(missing, ", "))
	}
	return nil
}

// TileUpdateOptions encapsulates allowed updates.
type TileUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	Points      *int
	Prereqs     *string
	Row         *int
	Col         *int
	Hidden      *bool
	ActorID     string
	Force       bool
}

func (e Engine) UpdateTile(ctx context.Context, opts TileUpdateOptions) (domain.Tile, error) {
	t, err := e.Repo.GetTile(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return t, errors.New("name cannot be empty")
		}
		t.Name = *opts.Name
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Points != nil {
		if *opts.Points < 0 {
			return t, errors.New("points must be non-negative")
		}
		t.Points = *opts.Points
	}
	if opts.Prereqs != nil {
		if !opts.Force {
			if err := e.ensurePrereqsResolvable(ctx, t.BoardID, t.ID, *opts.Prereqs); err != nil {
				return t, err
			}
		}
		t.PrereqsRaw = *opts.Prereqs
	}
	if opts.Row != nil {
		t.Row = opts.Row
	}
	if opts.Col != nil {
		t.Col = opts.Col
	}
	if opts.Hidden != nil {
		t.Hidden = *opts.Hidden
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTileTx(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "tile.updated", t.BoardID, "tile", t.ID, opts.ActorID, events.EventPayload{"name": t.Name}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

func (e Engine) DeleteTile(ctx context.Context, tileID, actorID string) error {
	t, err := e.Repo.GetTile(ctx, tileID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM tiles WHERE id=?`, tileID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "tile.deleted", t.BoardID, "tile", t.ID, actorID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) CreateTeam(ctx context.Context, boardID, teamID, name, actorID string) (domain.Team, error) {
	if name == "" {
		return domain.Team{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetBoard(ctx, boardID); err != nil {
		return domain.Team{}, err
	}
	if teamID == "" {
		teamID = uuid.New().String()
	}
	t := domain.Team{
		ID:        teamID,
		BoardID:   boardID,
		Name:      name,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTeamTx(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "team.created", boardID, "team", t.ID, actorID, events.EventPayload{"name": name}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// AssignTeamMember puts an actor on a team and grants the player role.
func (e Engine) AssignTeamMember(ctx context.Context, boardID, teamID, actorID, byActorID string) error {
	team, err := e.Repo.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.BoardID != boardID {
		return fmt.Errorf("team %s not on board %s", teamID, boardID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Auth.EnsureActor(ctx, tx, actorID); err != nil {
		return err
	}
	if err := e.Repo.UpsertTeamMember(ctx, tx, domain.TeamMember{
		BoardID:   boardID,
		TeamID:    teamID,
		ActorID:   actorID,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	if err := e.Repo.AssignRole(ctx, tx, boardID, actorID, "player"); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "team.member.assigned", boardID, "team", teamID, byActorID, events.EventPayload{"actor_id": actorID}); err != nil {
		return err
	}
	return tx.Commit()
}

// SubmissionCreateOptions are parameters for opening a draft submission.
type SubmissionCreateOptions struct {
	ID       string
	BoardID  string
	TileID   string
	TeamID   string
	Evidence string
	ActorID  string
	Force    bool
}

// CreateSubmission opens a draft for a tile. Unless forced, the tile must be
// unlocked for the team under the board's unlock policy and the team must
// not already have an active submission for it.
func (e Engine) CreateSubmission(ctx context.Context, opts SubmissionCreateOptions) (domain.Submission, error) {
	if opts.BoardID == "" || opts.TileID == "" || opts.TeamID == "" {
		return domain.Submission{}, errors.New("board, tile and team are required")
	}
	tile, err := e.Repo.GetTile(ctx, opts.TileID)
	if err != nil {
		return domain.Submission{}, err
	}
	if tile.BoardID != opts.BoardID {
		return domain.Submission{}, fmt.Errorf("tile %s not on board %s", opts.TileID, opts.BoardID)
	}
	team, err := e.Repo.GetTeam(ctx, opts.TeamID)
	if err != nil {
		return domain.Submission{}, err
	}
	if team.BoardID != opts.BoardID {
		return domain.Submission{}, fmt.Errorf("team %s not on board %s", opts.TeamID, opts.BoardID)
	}
	exists, err := e.Repo.HasActiveSubmission(ctx, opts.BoardID, opts.TileID, opts.TeamID)
	if err != nil {
		return domain.Submission{}, err
	}
	if exists {
		return domain.Submission{}, fmt.Errorf("team %s already has an active submission for tile %s", opts.TeamID, opts.TileID)
	}
	if !opts.Force {
		status, err := e.tileStatusFor(ctx, tile, opts.TeamID)
		if err != nil {
			return domain.Submission{}, err
		}
		if status == rules.StatusLocked {
			return domain.Submission{}, fmt.Errorf("tile %s is locked for team %s", opts.TileID, opts.TeamID)
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	s := domain.Submission{
		ID:        id,
		BoardID:   opts.BoardID,
		TileID:    opts.TileID,
		TeamID:    opts.TeamID,
		Evidence:  opts.Evidence,
		CreatedBy: opts.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSubmissionTx(ctx, tx, s); err != nil {
		return s, err
	}
	if err := e.Events.Append(ctx, tx, "submission.created", s.BoardID, "submission", s.ID, opts.ActorID, events.EventPayload{
		"tile_id": s.TileID,
		"team_id": s.TeamID,
	}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	return s, nil
}

func (e Engine) tileStatusFor(ctx context.Context, tile domain.Tile, teamID string) (rules.Status, error) {
	subs, err := e.Repo.ListSubmissionsByTeam(ctx, tile.BoardID, teamID)
	if err != nil {
		return "", err
	}
	progress := rules.BuildProgress(subs, teamID)
	return rules.Evaluate(tile, progress, e.Policy(ctx, tile.BoardID)), nil
}

// SubmitSubmission marks a draft complete and clears any moderator flag so
// the resubmission goes back into the review queue.
func (e Engine) SubmitSubmission(ctx context.Context, id, evidence, actorID string) (domain.Submission, error) {
	return e.mutateSubmission(ctx, id, actorID, "submission.submitted", func(s *domain.Submission) error {
		if evidence != "" {
			s.Evidence = evidence
		}
		s.IsComplete = true
		s.RequiresAction = false
		return nil
	})
}

// RevertSubmission returns a submission to draft. Reverting a verified
// submission requires force.
func (e Engine) RevertSubmission(ctx context.Context, id, actorID string, force bool) (domain.Submission, error) {
	return e.mutateSubmission(ctx, id, actorID, "submission.reverted", func(s *domain.Submission) error {
		if s.IsVerified && !force {
			return errors.New("submission already verified; revert requires force")
		}
		s.IsComplete = false
		s.IsVerified = false
		return nil
	})
}

// VerifySubmission records moderator approval.
func (e Engine) VerifySubmission(ctx context.Context, id, note, actorID string) (domain.Submission, error) {
	return e.mutateSubmission(ctx, id, actorID, "submission.verified", func(s *domain.Submission) error {
		if note != "" {
			s.ModeratorNote = note
		}
		s.IsVerified = true
		s.RequiresAction = false
		return nil
	})
}

// FlagSubmission sends a submission back to the team for correction.
func (e Engine) FlagSubmission(ctx context.Context, id, note, actorID string) (domain.Submission, error) {
	return e.mutateSubmission(ctx, id, actorID, "submission.flagged", func(s *domain.Submission) error {
		if note != "" {
			s.ModeratorNote = note
		}
		s.RequiresAction = true
		s.IsVerified = false
		return nil
	})
}

// ArchiveSubmission soft-deletes a submission; it no longer counts for
// status or score but stays in the database.
func (e Engine) ArchiveSubmission(ctx context.Context, id, actorID string) (domain.Submission, error) {
	return e.mutateSubmission(ctx, id, actorID, "submission.archived", func(s *domain.Submission) error {
		s.IsArchived = true
		return nil
	})
}

func (e Engine) mutateSubmission(ctx context.Context, id, actorID, eventType string, mutate func(*domain.Submission) error) (domain.Submission, error) {
	s, err := e.Repo.GetSubmission(ctx, id)
	if err != nil {
		return s, err
	}
	if s.IsArchived {
		return s, fmt.Errorf("submission %s is archived", id)
	}
	if err := mutate(&s); err != nil {
		return s, err
	}
	s.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSubmissionTx(ctx, tx, s); err != nil {
		return s, err
	}
	if err := e.Events.Append(ctx, tx, eventType, s.BoardID, "submission", s.ID, actorID, events.EventPayload{
		"tile_id": s.TileID,
		"team_id": s.TeamID,
	}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	return s, nil
}

// TileStatus pairs a tile with its evaluated status for one team.
type TileStatus struct {
	Tile   domain.Tile
	Status rules.Status
}

// TileStatuses evaluates every tile on a board for one team. The progress
// index is built once from the team's submissions and reused across tiles;
// the whole board is recomputed on every call.
func (e Engine) TileStatuses(ctx context.Context, boardID, teamID string, includeHidden bool) ([]TileStatus, error) {
	if _, err := e.Repo.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	tiles, err := e.Repo.ListTiles(ctx, boardID)
	if err != nil {
		return nil, err
	}
	subs, err := e.Repo.ListSubmissionsByTeam(ctx, boardID, teamID)
	if err != nil {
		return nil, err
	}
	progress := rules.BuildProgress(subs, teamID)
	policy := e.Policy(ctx, boardID)
	res := make([]TileStatus, 0, len(tiles))
	for _, t := range tiles {
		if t.Hidden && !includeHidden {
			continue
		}
		res = append(res, TileStatus{Tile: t, Status: rules.Evaluate(t, progress, policy)})
	}
	return res, nil
}

// Standings computes the board scoreboard across all teams, ranked by
// descending score. Team order (creation order) breaks ties.
func (e Engine) Standings(ctx context.Context, boardID string) ([]rules.Standing, error) {
	tiles, err := e.Repo.ListTiles(ctx, boardID)
	if err != nil {
		return nil, err
	}
	teams, err := e.Repo.ListTeams(ctx, boardID)
	if err != nil {
		return nil, err
	}
	subs, err := e.Repo.ListSubmissionsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	teamIDs := make([]string, len(teams))
	for i, t := range teams {
		teamIDs[i] = t.ID
	}
	policy := e.Policy(ctx, boardID)
	return rules.ComputeStandings(tiles, subs, teamIDs, policy.ScoreOnVerifiedOnly), nil
}
