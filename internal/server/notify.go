package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"bingoboard/internal/config"
	"bingoboard/internal/domain"
	"bingoboard/internal/engine"
)

const (
	webhookPollInterval = 2 * time.Second
	webhookPostTimeout  = 5 * time.Second
	webhookBatchSize    = 100
)

// webhookDispatcher tails the board's event log and pushes deliveries to the
// configured HTTP targets. Submission events are enriched with the tile's
// re-evaluated status for the acting team and a standings snapshot, so a
// receiver can mirror the board without polling back. Each hook advances its
// own cursor; a failed delivery is retried from the same position on the
// next poll.
type webhookDispatcher struct {
	engine engine.Engine
	board  string
	hooks  []hookTarget

	mu      sync.Mutex
	cursors map[int]int64
}

type hookTarget struct {
	cfg    config.WebhookConfig
	client *http.Client
	wants  map[string]struct{}
}

func newWebhookDispatcher(e engine.Engine, boardID string, hooks []config.WebhookConfig) *webhookDispatcher {
	d := &webhookDispatcher{
		engine:  e,
		board:   boardID,
		cursors: make(map[int]int64),
	}
	for _, cfg := range hooks {
		if cfg.Enabled != nil && !*cfg.Enabled {
			continue
		}
		if strings.TrimSpace(cfg.URL) == "" {
			continue
		}
		timeout := webhookPostTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		d.hooks = append(d.hooks, hookTarget{
			cfg:    cfg,
			client: &http.Client{Timeout: timeout},
			wants:  wantedEvents(cfg.Events),
		})
	}
	return d
}

func startWebhookDispatcher(e engine.Engine) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	boardID := e.Config.Board.ID
	if strings.TrimSpace(boardID) == "" {
		return
	}
	d := newWebhookDispatcher(e, boardID, e.Config.Webhooks)
	if len(d.hooks) == 0 {
		return
	}
	go d.run(context.Background())
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(webhookPollInterval)
	defer ticker.Stop()
	for {
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatchOnce drains pending events for every hook. One pass, no waiting.
func (d *webhookDispatcher) dispatchOnce(ctx context.Context) {
	for i, hook := range d.hooks {
		cursor := d.cursorFor(ctx, i)
		events, err := d.engine.Repo.EventsAfter(ctx, webhookBatchSize, cursor, d.board)
		if err != nil {
			log.Printf("webhook: fetch events failed: %v", err)
			return
		}
		for _, evt := range events {
			if !hook.match(evt.Type) {
				d.setCursor(i, evt.ID)
				continue
			}
			if err := d.deliver(ctx, hook, evt); err != nil {
				log.Printf("webhook: deliver to %s failed: %v", hook.cfg.URL, err)
				break
			}
			d.setCursor(i, evt.ID)
		}
	}
}

// cursorFor returns the hook's position, starting new hooks at the current
// tail so a restart does not replay the whole log.
func (d *webhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx, d.board)
	if err != nil {
		log.Printf("webhook: init cursor failed: %v", err)
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookDelivery struct {
	ID         int64              `json:"id"`
	Type       string             `json:"type"`
	BoardID    string             `json:"board_id"`
	EntityKind string             `json:"entity_kind"`
	EntityID   string             `json:"entity_id,omitempty"`
	ActorID    string             `json:"actor_id"`
	TS         string             `json:"ts"`
	Payload    json.RawMessage    `json:"payload"`
	TileStatus string             `json:"tile_status,omitempty"`
	Standings  []StandingResponse `json:"standings,omitempty"`
}

func (d *webhookDispatcher) deliver(ctx context.Context, hook hookTarget, evt domain.Event) error {
	body := webhookDelivery{
		ID:         evt.ID,
		Type:       evt.Type,
		BoardID:    evt.BoardID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    json.RawMessage("{}"),
	}
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		body.Payload = json.RawMessage(evt.Payload)
	}
	if evt.EntityKind == "submission" {
		d.enrichSubmission(ctx, &body, evt)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bingoboard-Event", evt.Type)
	req.Header.Set("X-Bingoboard-Delivery", fmt.Sprintf("%d", evt.ID))
	req.Header.Set("X-Bingoboard-Board", d.board)
	if strings.TrimSpace(hook.cfg.Secret) != "" {
		req.Header.Set("X-Bingoboard-Secret", hook.cfg.Secret)
	}
	res, err := hook.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// enrichSubmission attaches the affected tile's evaluated status and the
// current standings. Enrichment is best effort; a failed lookup still
// delivers the bare event.
func (d *webhookDispatcher) enrichSubmission(ctx context.Context, body *webhookDelivery, evt domain.Event) {
	var ref struct {
		TileID string `json:"tile_id"`
		TeamID string `json:"team_id"`
	}
	if err := json.Unmarshal([]byte(evt.Payload), &ref); err != nil || ref.TileID == "" || ref.TeamID == "" {
		return
	}
	statuses, err := d.engine.TileStatuses(ctx, evt.BoardID, ref.TeamID, true)
	if err != nil {
		log.Printf("webhook: status enrichment failed: %v", err)
		return
	}
	for _, ts := range statuses {
		if ts.Tile.ID == ref.TileID {
			body.TileStatus = string(ts.Status)
			break
		}
	}
	standings, err := d.engine.Standings(ctx, evt.BoardID)
	if err != nil {
		log.Printf("webhook: standings enrichment failed: %v", err)
		return
	}
	for _, s := range standings {
		body.Standings = append(body.Standings, standingResponse(s))
	}
}

func (h hookTarget) match(eventType string) bool {
	if len(h.wants) == 0 {
		return true
	}
	_, ok := h.wants[eventType]
	return ok
}

func wantedEvents(events []string) map[string]struct{} {
	wants := make(map[string]struct{})
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		wants[key] = struct{}{}
	}
	return wants
}
