package repo

import (
	"context"
	"database/sql"
	"time"

	"bingoboard/internal/domain"
)

// UpsertTeamMember assigns an actor to a team. An actor belongs to at most
// one team per board; reassignment moves them.
func (r Repo) UpsertTeamMember(ctx context.Context, tx *sql.Tx, m domain.TeamMember) error {
	if m.CreatedAt == "" {
		m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO team_members(board_id, team_id, actor_id, created_at) VALUES (?,?,?,?)
ON CONFLICT(board_id, actor_id) DO UPDATE SET team_id=excluded.team_id`,
		m.BoardID, m.TeamID, m.ActorID, m.CreatedAt)
	return err
}

// GetTeamMembership returns an actor's team on a board.
func (r Repo) GetTeamMembership(ctx context.Context, boardID, actorID string) (domain.TeamMember, error) {
	var m domain.TeamMember
	err := r.DB.QueryRowContext(ctx, `SELECT board_id, team_id, actor_id, created_at FROM team_members WHERE board_id=? AND actor_id=?`,
		boardID, actorID).Scan(&m.BoardID, &m.TeamID, &m.ActorID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) ListTeamMembers(ctx context.Context, boardID, teamID string) ([]domain.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT board_id, team_id, actor_id, created_at FROM team_members WHERE board_id=? AND team_id=? ORDER BY created_at ASC`,
		boardID, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.BoardID, &m.TeamID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) RemoveTeamMember(ctx context.Context, tx *sql.Tx, boardID, actorID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE board_id=? AND actor_id=?`, boardID, actorID)
	return err
}
