package domain

type Board struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Visibility string `json:"visibility" enum:"public,private"`
	Status     string `json:"status" enum:"draft,active,closed"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Tile struct {
	ID          string `json:"id"`
	BoardID     string `json:"board_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
	// PrereqsRaw holds the unlock expression exactly as entered by a
	// moderator: either a comma list of tile ids or a JSON array of arrays.
	PrereqsRaw string `json:"prereqs_raw,omitempty"`
	Row        *int   `json:"row,omitempty"`
	Col        *int   `json:"col,omitempty"`
	Hidden     bool   `json:"hidden"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type Team struct {
	ID        string `json:"id"`
	BoardID   string `json:"board_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Submission is a team's attempt at a tile. The four booleans are
// independent; archived submissions are ignored by status and scoring.
type Submission struct {
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

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	BoardID    string `json:"board_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type TeamMember struct {
	BoardID   string `json:"board_id"`
	TeamID    string `json:"team_id"`
	ActorID   string `json:"actor_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ActorProfile struct {
	BoardID string   `json:"board_id"`
	ActorID string   `json:"actor_id"`
	TeamID  string   `json:"team_id,omitempty"`
	Roles   []string `json:"roles"`
	Actions []string `json:"actions"`
}
