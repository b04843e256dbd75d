package repo

import (
	"context"
	"database/sql"

	"bingoboard/internal/domain"
)

const submissionColumns = `id, board_id, tile_id, team_id, evidence, moderator_note, is_complete, is_verified, requires_action, is_archived, created_by, created_at, updated_at`

func (r Repo) InsertSubmissionTx(ctx context.Context, tx *sql.Tx, s domain.Submission) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO submissions(`+submissionColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.BoardID, s.TileID, s.TeamID, nullable(s.Evidence), nullable(s.ModeratorNote),
		boolInt(s.IsComplete), boolInt(s.IsVerified), boolInt(s.RequiresAction), boolInt(s.IsArchived),
		s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) UpdateSubmissionTx(ctx context.Context, tx *sql.Tx, s domain.Submission) error {
	res, err := tx.ExecContext(ctx, `UPDATE submissions SET evidence=?, moderator_note=?, is_complete=?, is_verified=?, requires_action=?, is_archived=?, updated_at=? WHERE id=?`,
		nullable(s.Evidence), nullable(s.ModeratorNote),
		boolInt(s.IsComplete), boolInt(s.IsVerified), boolInt(s.RequiresAction), boolInt(s.IsArchived),
		s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubmission(scan func(dest ...any) error) (domain.Submission, error) {
	var s domain.Submission
	var evidence, note sql.NullString
	var complete, verified, action, archived int
	err := scan(&s.ID, &s.BoardID, &s.TileID, &s.TeamID, &evidence, &note,
		&complete, &verified, &action, &archived, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	if evidence.Valid {
		s.Evidence = evidence.String
	}
	if note.Valid {
		s.ModeratorNote = note.String
	}
	s.IsComplete = complete != 0
	s.IsVerified = verified != 0
	s.RequiresAction = action != 0
	s.IsArchived = archived != 0
	return s, nil
}

func (r Repo) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id=?`, id)
	s, err := scanSubmission(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) listSubmissions(ctx context.Context, query string, args ...any) ([]domain.Submission, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ListSubmissionsByBoard returns every submission on a board, archived
// included; callers that feed the evaluator filter on the flag themselves.
func (r Repo) ListSubmissionsByBoard(ctx context.Context, boardID string) ([]domain.Submission, error) {
	return r.listSubmissions(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE board_id=? ORDER BY created_at ASC, id ASC`, boardID)
}

func (r Repo) ListSubmissionsByTeam(ctx context.Context, boardID, teamID string) ([]domain.Submission, error) {
	return r.listSubmissions(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE board_id=? AND team_id=? ORDER BY created_at ASC, id ASC`, boardID, teamID)
}

func (r Repo) ListSubmissionsByTile(ctx context.Context, boardID, tileID string) ([]domain.Submission, error) {
	return r.listSubmissions(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE board_id=? AND tile_id=? ORDER BY created_at ASC, id ASC`, boardID, tileID)
}

// HasActiveSubmission reports whether a team already has a non-archived
// submission for a tile.
func (r Repo) HasActiveSubmission(ctx context.Context, boardID, tileID, teamID string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM submissions WHERE board_id=? AND tile_id=? AND team_id=? AND is_archived=0 LIMIT 1`,
		boardID, tileID, teamID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
