package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"bingoboard/internal/config"
	"bingoboard/internal/db"
	"bingoboard/internal/engine"
	"bingoboard/internal/migrate"
)

type webhookRecorder struct {
	mu         sync.Mutex
	deliveries []webhookDelivery
	headers    []http.Header
}

func (r *webhookRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var d webhookDelivery
		if err := json.Unmarshal(data, &d); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.mu.Lock()
		r.deliveries = append(r.deliveries, d)
		r.headers = append(r.headers, req.Header.Clone())
		r.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (r *webhookRecorder) snapshot() []webhookDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]webhookDelivery(nil), r.deliveries...)
}

func newDispatcherEnv(t *testing.T) engine.Engine {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("board-1"))
	if _, err := e.InitBoard(context.Background(), "board-1", "Test Board", "private", "mod"); err != nil {
		t.Fatalf("init board: %v", err)
	}
	return e
}

func TestWebhookDispatcherEnrichesSubmissionEvents(t *testing.T) {
	ctx := context.Background()
	e := newDispatcherEnv(t)

	if _, err := e.CreateTile(ctx, engine.TileCreateOptions{ID: "t1", BoardID: "board-1", Name: "Catch a fish", Points: 10, ActorID: "mod"}); err != nil {
		t.Fatalf("create tile: %v", err)
	}
	if _, err := e.CreateTeam(ctx, "board-1", "red", "Red Team", "mod"); err != nil {
		t.Fatalf("create team: %v", err)
	}
	sub, err := e.CreateSubmission(ctx, engine.SubmissionCreateOptions{BoardID: "board-1", TileID: "t1", TeamID: "red", ActorID: "mod"})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	if _, err := e.SubmitSubmission(ctx, sub.ID, "", "mod"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.VerifySubmission(ctx, sub.ID, "ok", "mod"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	rec := &webhookRecorder{}
	receiver := httptest.NewServer(rec.handler())
	defer receiver.Close()

	d := newWebhookDispatcher(e, "board-1", []config.WebhookConfig{{
		URL:    receiver.URL,
		Secret: "s3cret",
	}})
	// Replay the whole log rather than starting at the tail.
	d.setCursor(0, 0)
	d.dispatchOnce(ctx)

	got := rec.snapshot()
	if len(got) == 0 {
		t.Fatal("no deliveries received")
	}
	var verified *webhookDelivery
	for i := range got {
		if got[i].Type == "submission.verified" {
			verified = &got[i]
		}
	}
	if verified == nil {
		t.Fatalf("submission.verified never delivered; got %d deliveries", len(got))
	}
	if verified.TileStatus != "verified" {
		t.Fatalf("expected tile_status verified, got %q", verified.TileStatus)
	}
	if len(verified.Standings) != 1 || verified.Standings[0].TeamID != "red" || verified.Standings[0].Score != 10 {
		t.Fatalf("unexpected standings snapshot: %+v", verified.Standings)
	}

	rec.mu.Lock()
	lastHeaders := rec.headers[len(rec.headers)-1]
	rec.mu.Unlock()
	if lastHeaders.Get("X-Bingoboard-Board") != "board-1" {
		t.Fatalf("missing board header: %v", lastHeaders)
	}
	if lastHeaders.Get("X-Bingoboard-Secret") != "s3cret" {
		t.Fatalf("missing secret header: %v", lastHeaders)
	}
}

func TestWebhookDispatcherFiltersAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	e := newDispatcherEnv(t)

	if _, err := e.CreateTile(ctx, engine.TileCreateOptions{ID: "t1", BoardID: "board-1", Name: "Tile", Points: 5, ActorID: "mod"}); err != nil {
		t.Fatalf("create tile: %v", err)
	}
	if _, err := e.CreateTeam(ctx, "board-1", "red", "Red Team", "mod"); err != nil {
		t.Fatalf("create team: %v", err)
	}

	rec := &webhookRecorder{}
	receiver := httptest.NewServer(rec.handler())
	defer receiver.Close()

	d := newWebhookDispatcher(e, "board-1", []config.WebhookConfig{{
		URL:    receiver.URL,
		Events: []string{"tile.created"},
	}})
	d.setCursor(0, 0)
	d.dispatchOnce(ctx)

	got := rec.snapshot()
	if len(got) != 1 || got[0].Type != "tile.created" {
		t.Fatalf("expected only tile.created, got %+v", got)
	}

	// A second pass delivers nothing; the cursor moved past filtered
	// events too.
	d.dispatchOnce(ctx)
	if again := rec.snapshot(); len(again) != 1 {
		t.Fatalf("expected no redelivery, got %d deliveries", len(again))
	}
}
