package bingoboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Bingoboard HTTP API client.
type Client struct {
	BaseURL     string
	BoardID     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, boardID string) *Client {
	return &Client{
		BaseURL: baseURL,
		BoardID: boardID,
		Timeout: 10 * time.Second,
	}
}

// Tile represents the API tile model (partial).
type Tile struct {
	ID      string `json:"id"`
	BoardID string `json:"board_id"`
	Name    string `json:"name"`
	Points  int    `json:"points"`
	Prereqs string `json:"prereqs,omitempty"`
	Hidden  bool   `json:"hidden"`
}

// Submission represents a team's attempt at a tile.
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
}

// TileStatus pairs a tile with its evaluated status for one team.
type TileStatus struct {
	Tile   Tile   `json:"tile"`
	Status string `json:"status"`
}

// Standing is one scoreboard row.
type Standing struct {
	Rank           int    `json:"rank"`
	TeamID         string `json:"team_id"`
	Score          int    `json:"score"`
	TilesCompleted int    `json:"tiles_completed"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	BoardID    string         `json:"board_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateSubmission opens a draft submission for a tile.
func (c *Client) CreateSubmission(ctx context.Context, tileID, teamID, evidence string) (Submission, error) {
	body := map[string]any{
		"tile_id":  tileID,
		"team_id":  teamID,
		"evidence": evidence,
	}
	var resp Submission
	err := c.do(ctx, http.MethodPost, c.boardPath("submissions"), body, &resp)
	return resp, err
}

// SubmitSubmission marks a submission complete.
func (c *Client) SubmitSubmission(ctx context.Context, id string) (Submission, error) {
	var resp Submission
	endpoint := c.boardPath(fmt.Sprintf("submissions/%s/submit", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// VerifySubmission records moderator approval.
func (c *Client) VerifySubmission(ctx context.Context, id, note string) (Submission, error) {
	var resp Submission
	endpoint := c.boardPath(fmt.Sprintf("submissions/%s/verify", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"note": note}, &resp)
	return resp, err
}

// FlagSubmission sends a submission back for rework.
func (c *Client) FlagSubmission(ctx context.Context, id, note string) (Submission, error) {
	var resp Submission
	endpoint := c.boardPath(fmt.Sprintf("submissions/%s/flag", url.PathEscape(id)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"note": note}, &resp)
	return resp, err
}

// Tiles lists the board's tiles.
func (c *Client) Tiles(ctx context.Context) ([]Tile, error) {
	var resp []Tile
	err := c.do(ctx, http.MethodGet, c.boardPath("tiles"), nil, &resp)
	return resp, err
}

// TeamStatuses returns evaluated tile statuses for a team.
func (c *Client) TeamStatuses(ctx context.Context, teamID string) ([]TileStatus, error) {
	var resp []TileStatus
	endpoint := c.boardPath(fmt.Sprintf("teams/%s/statuses", url.PathEscape(teamID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Scoreboard returns ranked standings.
func (c *Client) Scoreboard(ctx context.Context) ([]Standing, error) {
	var resp []Standing
	err := c.do(ctx, http.MethodGet, c.boardPath("scoreboard"), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.boardPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) boardPath(p string) string {
	board := url.PathEscape(c.BoardID)
	return fmt.Sprintf("v0/boards/%s/%s", board, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
