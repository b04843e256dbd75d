package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bingoboard/internal/config"
	"bingoboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func scanBoard(row *sql.Row) (domain.Board, error) {
	var b domain.Board
	err := row.Scan(&b.ID, &b.Title, &b.Visibility, &b.Status, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) InsertBoard(ctx context.Context, b domain.Board) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO boards(id,title,visibility,status,created_at) VALUES (?,?,?,?,?)`,
		b.ID, b.Title, b.Visibility, b.Status, b.CreatedAt)
	return err
}

func (r Repo) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	return scanBoard(r.DB.QueryRowContext(ctx, `SELECT id,title,visibility,status,created_at FROM boards WHERE id=?`, id))
}

func (r Repo) SingleBoard(ctx context.Context) (domain.Board, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,visibility,status,created_at FROM boards`)
	if err != nil {
		return domain.Board{}, err
	}
	defer rows.Close()
	var boards []domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.Title, &b.Visibility, &b.Status, &b.CreatedAt); err != nil {
			return domain.Board{}, err
		}
		boards = append(boards, b)
	}
	if len(boards) == 0 {
		return domain.Board{}, ErrNotFound
	}
	if len(boards) > 1 {
		return domain.Board{}, fmt.Errorf("multiple boards exist; specify --board")
	}
	return boards[0], nil
}

func (r Repo) ListBoards(ctx context.Context) ([]domain.Board, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,visibility,status,created_at FROM boards ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.Title, &b.Visibility, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r Repo) UpdateBoard(ctx context.Context, id string, title, visibility, status *string) error {
	var (
		fields []string
		args   []any
	)
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if visibility != nil {
		fields = append(fields, "visibility=?")
		args = append(args, *visibility)
	}
	if status != nil {
		fields = append(fields, "status=?")
		args = append(args, *status)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE boards SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteBoard(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM boards WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpsertBoardConfig(ctx context.Context, boardID string, cfg *config.Config) error {
	return upsertBoardConfig(ctx, r.DB, nil, boardID, cfg)
}

func (r Repo) UpsertBoardConfigTx(ctx context.Context, tx *sql.Tx, boardID string, cfg *config.Config) error {
	return upsertBoardConfig(ctx, nil, tx, boardID, cfg)
}

func upsertBoardConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, boardID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Board.ID = boardID
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	query := `INSERT INTO board_configs(board_id, config_yaml, updated_at) VALUES (?,?,?)
ON CONFLICT(board_id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, boardID, data, now)
	} else {
		_, err = db.ExecContext(ctx, query, boardID, data, now)
	}
	return err
}

func (r Repo) GetBoardConfig(ctx context.Context, boardID string) (*config.Config, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT config_yaml FROM board_configs WHERE board_id=?`, boardID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return config.FromYAML([]byte(raw))
}

// Tiles

func (r Repo) InsertTileTx(ctx context.Context, tx *sql.Tx, t domain.Tile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tiles(id,board_id,name,description,points,prereqs_raw,grid_row,grid_col,hidden,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.BoardID, t.Name, nullable(t.Description), t.Points, nullable(t.PrereqsRaw), t.Row, t.Col, boolInt(t.Hidden), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) UpdateTileTx(ctx context.Context, tx *sql.Tx, t domain.Tile) error {
	res, err := tx.ExecContext(ctx, `UPDATE tiles SET name=?, description=?, points=?, prereqs_raw=?, grid_row=?, grid_col=?, hidden=?, updated_at=? WHERE id=?`,
		t.Name, nullable(t.Description), t.Points, nullable(t.PrereqsRaw), t.Row, t.Col, boolInt(t.Hidden), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTile(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tiles WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const tileColumns = `id,board_id,name,COALESCE(description,''),points,COALESCE(prereqs_raw,''),grid_row,grid_col,hidden,created_at,updated_at`

func scanTile(scan func(dest ...any) error) (domain.Tile, error) {
	var t domain.Tile
	var row, col sql.NullInt64
	var hidden int
	err := scan(&t.ID, &t.BoardID, &t.Name, &t.Description, &t.Points, &t.PrereqsRaw, &row, &col, &hidden, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if row.Valid {
		v := int(row.Int64)
		t.Row = &v
	}
	if col.Valid {
		v := int(col.Int64)
		t.Col = &v
	}
	t.Hidden = hidden != 0
	return t, nil
}

func (r Repo) GetTile(ctx context.Context, id string) (domain.Tile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+tileColumns+` FROM tiles WHERE id=?`, id)
	t, err := scanTile(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTiles(ctx context.Context, boardID string) ([]domain.Tile, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+tileColumns+` FROM tiles WHERE board_id=? ORDER BY created_at ASC, id ASC`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Tile
	for rows.Next() {
		t, err := scanTile(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// Teams

func (r Repo) InsertTeamTx(ctx context.Context, tx *sql.Tx, t domain.Team) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO teams(id,board_id,name,created_at) VALUES (?,?,?,?)`,
		t.ID, t.BoardID, t.Name, t.CreatedAt)
	return err
}

func (r Repo) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	var t domain.Team
	err := r.DB.QueryRowContext(ctx, `SELECT id,board_id,name,created_at FROM teams WHERE id=?`, id).
		Scan(&t.ID, &t.BoardID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTeams(ctx context.Context, boardID string) ([]domain.Team, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,board_id,name,created_at FROM teams WHERE board_id=? ORDER BY created_at ASC, id ASC`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.BoardID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTeam(ctx context.Context, id, name string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE teams SET name=? WHERE id=?`, name, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Events

const eventColumns = `id,ts,type,COALESCE(board_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json`

func (r Repo) ListEvents(ctx context.Context, limit int, before int64, boardID string) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var conds []string
	var args []any
	if boardID != "" {
		conds = append(conds, "board_id=?")
		args = append(args, boardID)
	}
	if before > 0 {
		conds = append(conds, "id<?")
		args = append(args, before)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events newer than the cursor in ascending id order.
func (r Repo) EventsAfter(ctx context.Context, limit int, after int64, boardID string) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id>?`
	args := []any{after}
	if boardID != "" {
		query += " AND board_id=?"
		args = append(args, boardID)
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

func (r Repo) LatestEventID(ctx context.Context, boardID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if boardID != "" {
		query += ` WHERE board_id=?`
		args = append(args, boardID)
	}
	var id int64
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.BoardID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountSubmissionStates returns per-state submission counts for a board,
// ignoring archived submissions.
func (r Repo) CountSubmissionStates(ctx context.Context, boardID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT
  CASE
    WHEN is_verified=1 THEN 'verified'
    WHEN requires_action=1 THEN 'requires_action'
    WHEN is_complete=1 THEN 'submitted'
    ELSE 'draft'
  END AS state, COUNT(*)
FROM submissions WHERE board_id=? AND is_archived=0 GROUP BY state`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// helpers

func marshalConfig(cfg *config.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
