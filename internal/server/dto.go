package server

import (
	"encoding/json"

	"bingoboard/internal/config"
	"bingoboard/internal/domain"
	"bingoboard/internal/engine"
	"bingoboard/internal/rules"
)

// Request payloads

type CreateBoardRequest struct {
	ID         string  `json:"id"`
	Title      *string `json:"title,omitempty"`
	Visibility *string `json:"visibility,omitempty" enum:"public,private"`
}

type CreateTileRequest struct {
	ID          *string `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Points      int     `json:"points"`
	Prereqs     *string `json:"prereqs,omitempty"`
	Row         *int    `json:"row,omitempty"`
	Col         *int    `json:"col,omitempty"`
	Hidden      *bool   `json:"hidden,omitempty"`
}

type UpdateTileRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Points      *int    `json:"points,omitempty"`
	Prereqs     *string `json:"prereqs,omitempty"`
	Row         *int    `json:"row,omitempty"`
	Col         *int    `json:"col,omitempty"`
	Hidden      *bool   `json:"hidden,omitempty"`
}

type CreateTeamRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type AssignMemberRequest struct {
	ActorID string `json:"actor_id"`
}

type CreateSubmissionRequest struct {
	ID       *string `json:"id,omitempty"`
	TileID   string  `json:"tile_id"`
	TeamID   string  `json:"team_id"`
	Evidence *string `json:"evidence,omitempty"`
}

type SubmitRequest struct {
	Evidence *string `json:"evidence,omitempty"`
}

type ModerationNoteRequest struct {
	Note *string `json:"note,omitempty"`
}

type RoleChangeRequest struct {
	ActorID string `json:"actor_id"`
	RoleID  string `json:"role_id"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type CreateAPIKeyRequest struct {
	ActorID string  `json:"actor_id"`
	Name    *string `json:"name,omitempty"`
	Key     string  `json:"key"`
}

// Response payloads

type BoardResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Visibility string `json:"visibility" enum:"public,private"`
	Status     string `json:"status" enum:"draft,active,closed"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type TileResponse struct {
	ID          string `json:"id"`
	BoardID     string `json:"board_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
	Prereqs     string `json:"prereqs,omitempty"`
	Row         *int   `json:"row,omitempty"`
	Col         *int   `json:"col,omitempty"`
	Hidden      bool   `json:"hidden"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type TeamResponse struct {
	ID        string `json:"id"`
	BoardID   string `json:"board_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type SubmissionResponse struct {
	ID             string `json:"id"`
	BoardID        string `json:"board_id"`
	TileID         string `json:"tile_id"`
	TeamID         string `json:"team_id"`
	Evidence       string `json:"evidence,omitempty"`
	ModeratorNote  string `json:"moderator_note,omitempty"`
	IsComplete     bool   `json:"is_complete"`
	IsVerified     bool   `json:"is_verified"`
	RequiresAction bool   `json:"requires_action"`
	IsArchived     bool   `json:"is_archived"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type TileStatusResponse struct {
	Tile   TileResponse `json:"tile"`
	Status string       `json:"status" enum:"hidden,locked,unlocked,partial,submitted,requires_action,verified"`
}

type StandingResponse struct {
	Rank           int    `json:"rank"`
	TeamID         string `json:"team_id"`
	Score          int    `json:"score"`
	TilesCompleted int    `json:"tiles_completed"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	BoardID    string         `json:"board_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	TeamID      string   `json:"team_id,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type BoardConfigResponse struct {
	Board   boardConfigSection   `json:"board"`
	Scoring scoringConfigSection `json:"scoring"`
	RBAC    rbacConfigSection    `json:"rbac"`
}

type boardConfigSection struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Visibility string `json:"visibility"`
}

type scoringConfigSection struct {
	UnlockOnVerifiedOnly bool `json:"unlock_on_verified_only"`
	ScoreOnVerifiedOnly  bool `json:"score_on_verified_only"`
}

type rbacConfigSection struct {
	Roles map[string]roleConfigResponse `json:"roles"`
}

type roleConfigResponse struct {
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func boardResponse(b domain.Board) BoardResponse {
	return BoardResponse(b)
}

func tileResponse(t domain.Tile) TileResponse {
	return TileResponse{
		ID:          t.ID,
		BoardID:     t.BoardID,
		Name:        t.Name,
		Description: t.Description,
		Points:      t.Points,
		Prereqs:     t.PrereqsRaw,
		Row:         t.Row,
		Col:         t.Col,
		Hidden:      t.Hidden,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func teamResponse(t domain.Team) TeamResponse {
	return TeamResponse(t)
}

func submissionResponse(s domain.Submission) SubmissionResponse {
	return SubmissionResponse(s)
}

func tileStatusResponse(ts engine.TileStatus) TileStatusResponse {
	return TileStatusResponse{
		Tile:   tileResponse(ts.Tile),
		Status: string(ts.Status),
	}
}

func standingResponse(s rules.Standing) StandingResponse {
	return StandingResponse{
		Rank:           s.Rank,
		TeamID:         s.TeamID,
		Score:          s.Score,
		TilesCompleted: s.TilesCompleted,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		BoardID:    e.BoardID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		ActorID:   k.ActorID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}

func configResponse(cfg *config.Config) BoardConfigResponse {
	res := BoardConfigResponse{
		Board: boardConfigSection{
			ID:         cfg.Board.ID,
			Title:      cfg.Board.Title,
			Visibility: cfg.Visibility(),
		},
		Scoring: scoringConfigSection{
			UnlockOnVerifiedOnly: cfg.Scoring.UnlockOnVerifiedOnly,
			ScoreOnVerifiedOnly:  cfg.Scoring.ScoreOnVerifiedOnly,
		},
		RBAC: rbacConfigSection{Roles: map[string]roleConfigResponse{}},
	}
	for id, role := range cfg.RBAC.Roles {
		res.RBAC.Roles[id] = roleConfigResponse{
			Description: role.Description,
			Permissions: nonNilSlice(role.Permissions),
		}
	}
	return res
}

func mapBoards(items []domain.Board) []BoardResponse {
	res := make([]BoardResponse, 0, len(items))
	for _, b := range items {
		res = append(res, boardResponse(b))
	}
	return res
}

func mapTiles(items []domain.Tile) []TileResponse {
	res := make([]TileResponse, 0, len(items))
	for _, t := range items {
		res = append(res, tileResponse(t))
	}
	return res
}

func mapTeams(items []domain.Team) []TeamResponse {
	res := make([]TeamResponse, 0, len(items))
	for _, t := range items {
		res = append(res, teamResponse(t))
	}
	return res
}

func mapSubmissions(items []domain.Submission) []SubmissionResponse {
	res := make([]SubmissionResponse, 0, len(items))
	for _, s := range items {
		res = append(res, submissionResponse(s))
	}
	return res
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
