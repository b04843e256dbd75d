package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bingoboard/internal/config"
	"bingoboard/internal/domain"
	"bingoboard/internal/repo"
)

// ResolveBoardAndConfig picks the active board and ensures a board + config
// exist in DB, seeding defaults if missing. It prefers overrides, then the
// single-board DB. If the board does not exist, it is created on the fly.
func ResolveBoardAndConfig(ctx context.Context, boardOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	boardID := boardOverride
	if boardID == "" {
		if b, err := r.SingleBoard(ctx); err == nil {
			boardID = b.ID
		} else {
			return "", nil, fmt.Errorf("board not specified; use --board")
		}
	}
	seedCfg := config.Default(boardID)

	if _, err := r.GetBoard(ctx, boardID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createBoard(ctx, r, boardID, seedCfg, actorID); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetBoardConfig(ctx, boardID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertBoardConfig(ctx, boardID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed board config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Board.ID = boardID
	return boardID, cfg, nil
}

// createBoard inserts a minimal board/config/rbac footprint using the seed config.
func createBoard(ctx context.Context, r repo.Repo, boardID string, seedCfg *config.Config, actorID string) error {
	if seedCfg == nil {
		seedCfg = config.Default(boardID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	b := domain.Board{
		ID:         boardID,
		Title:      seedCfg.Board.Title,
		Visibility: seedCfg.Visibility(),
		Status:     "draft",
		CreatedAt:  now,
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO boards(id,title,visibility,status,created_at) VALUES (?,?,?,?,?)`,
		b.ID, b.Title, b.Visibility, b.Status, b.CreatedAt); err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	if err := r.UpsertBoardConfigTx(ctx, tx, boardID, seedCfg); err != nil {
		return fmt.Errorf("insert board config: %w", err)
	}
	if actorID == "" {
		actorID = "local-user"
	}
	if err := r.EnsureActor(ctx, tx, actorID, now); err != nil {
		return fmt.Errorf("ensure actor: %w", err)
	}
	for roleID, role := range seedCfg.RBAC.Roles {
		if err := r.InsertRole(ctx, tx, roleID, role.Description); err != nil {
			return err
		}
		for _, perm := range role.Permissions {
			if err := r.InsertPermission(ctx, tx, perm, ""); err != nil {
				return err
			}
			if err := r.AddRolePermission(ctx, tx, roleID, perm); err != nil {
				return err
			}
		}
	}
	if err := r.AssignRole(ctx, tx, boardID, actorID, "moderator"); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
