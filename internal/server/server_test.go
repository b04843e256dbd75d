package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"bingoboard/internal/config"
	"bingoboard/internal/db"
	"bingoboard/internal/domain"
	"bingoboard/internal/engine"
	"bingoboard/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("board-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.InitBoard(context.Background(), "board-1", "Test Board", "private", "mod"); err != nil {
		t.Fatalf("init board: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{AllowLegacyActorHeader: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asMod(h map[string]string) map[string]string {
	if h == nil {
		h = map[string]string{}
	}
	h["X-Actor-Id"] = "mod"
	return h
}

func TestSubmissionFlowAndScoreboard(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/boards/board-1"

	res, data := doJSON(t, client, http.MethodPost, base+"/tiles", map[string]any{
		"id": "t1", "name": "Catch a fish", "points": 10,
	}, asMod(nil))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create tile status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/teams", map[string]any{
		"id": "red", "name": "Red Team",
	}, asMod(nil))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create team status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/submissions", map[string]any{
		"tile_id": "t1", "team_id": "red", "evidence": "proof.png",
	}, asMod(nil))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create submission status %d: %s", res.StatusCode, string(data))
	}
	var sub domain.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		t.Fatalf("unmarshal submission: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/submissions/"+sub.ID+"/submit", map[string]any{}, asMod(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/submissions/"+sub.ID+"/verify", map[string]any{"note": "ok"}, asMod(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", res.StatusCode, string(data))
	}
	var verified domain.Submission
	if err := json.Unmarshal(data, &verified); err != nil {
		t.Fatalf("unmarshal verified: %v", err)
	}
	if !verified.IsVerified || verified.ModeratorNote != "ok" {
		t.Fatalf("unexpected verified submission: %+v", verified)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/scoreboard", nil, asMod(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("scoreboard status %d: %s", res.StatusCode, string(data))
	}
	var standings []StandingResponse
	if err := json.Unmarshal(data, &standings); err != nil {
		t.Fatalf("unmarshal standings: %v", err)
	}
	if len(standings) != 1 || standings[0].TeamID != "red" || standings[0].Score != 10 {
		t.Fatalf("unexpected standings: %+v", standings)
	}
}

func TestLockedTileConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/boards/board-1"

	doJSON(t, client, http.MethodPost, base+"/tiles", map[string]any{"id": "a", "name": "Opener", "points": 5}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/tiles", map[string]any{"id": "b", "name": "Gated", "points": 10, "prereqs": "a"}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams", map[string]any{"id": "red", "name": "Red Team"}, asMod(nil))

	res, data := doJSON(t, client, http.MethodPost, base+"/submissions", map[string]any{
		"tile_id": "b", "team_id": "red",
	}, asMod(nil))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for locked tile, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "tile_locked" {
		t.Fatalf("expected tile_locked code, got %s", string(data))
	}
}

func TestHiddenTilesOmittedForPlayers(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/boards/board-1"

	doJSON(t, client, http.MethodPost, base+"/tiles", map[string]any{"id": "t1", "name": "Visible", "points": 5}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/tiles", map[string]any{"id": "secret", "name": "Secret", "points": 20, "hidden": true}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams", map[string]any{"id": "red", "name": "Red Team"}, asMod(nil))
	res, data := doJSON(t, client, http.MethodPost, base+"/teams/red/members", map[string]any{"actor_id": "alice"}, asMod(nil))
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		t.Fatalf("assign member status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/teams/red/statuses", nil, map[string]string{"X-Actor-Id": "alice"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("player statuses status %d: %s", res.StatusCode, string(data))
	}
	var playerView []TileStatusResponse
	if err := json.Unmarshal(data, &playerView); err != nil {
		t.Fatalf("unmarshal statuses: %v", err)
	}
	for _, ts := range playerView {
		if ts.Tile.ID == "secret" {
			t.Fatalf("hidden tile leaked to player: %+v", playerView)
		}
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/teams/red/statuses", nil, asMod(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("moderator statuses status %d: %s", res.StatusCode, string(data))
	}
	var modView []TileStatusResponse
	if err := json.Unmarshal(data, &modView); err != nil {
		t.Fatalf("unmarshal statuses: %v", err)
	}
	if len(modView) != len(playerView)+1 {
		t.Fatalf("expected moderator to see hidden tile: player=%d mod=%d", len(playerView), len(modView))
	}
}

func TestPrivateBoardStatusesCrossTeamForbidden(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/boards/board-1"

	doJSON(t, client, http.MethodPost, base+"/tiles", map[string]any{"id": "t1", "name": "Tile", "points": 5}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams", map[string]any{"id": "red", "name": "Red Team"}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams", map[string]any{"id": "blue", "name": "Blue Team"}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams/red/members", map[string]any{"actor_id": "alice"}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams/blue/members", map[string]any{"actor_id": "bob"}, asMod(nil))
	res, data := doJSON(t, client, http.MethodPost, base+"/submissions", map[string]any{
		"tile_id": "t1", "team_id": "blue",
	}, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("blue submission status %d: %s", res.StatusCode, string(data))
	}

	// alice is on red; blue's statuses on a private board must not leak
	res, data = doJSON(t, client, http.MethodGet, base+"/teams/blue/statuses", nil, map[string]string{"X-Actor-Id": "alice"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-team statuses, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/teams/blue/statuses", nil, map[string]string{"X-Actor-Id": "bob"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("own-team statuses status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, base+"/teams/blue/statuses", nil, asMod(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("moderator statuses status %d: %s", res.StatusCode, string(data))
	}
}

func TestTeamScopedSubmissionForbidden(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/boards/board-1"

	doJSON(t, client, http.MethodPost, base+"/tiles", map[string]any{"id": "t1", "name": "Tile", "points": 5}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams", map[string]any{"id": "red", "name": "Red Team"}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams", map[string]any{"id": "blue", "name": "Blue Team"}, asMod(nil))
	doJSON(t, client, http.MethodPost, base+"/teams/red/members", map[string]any{"actor_id": "alice"}, asMod(nil))

	// alice is on red, submitting for blue must be rejected
	res, data := doJSON(t, client, http.MethodPost, base+"/submissions", map[string]any{
		"tile_id": "t1", "team_id": "blue",
	}, map[string]string{"X-Actor-Id": "alice"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-team submission, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/submissions", map[string]any{
		"tile_id": "t1", "team_id": "red",
	}, map[string]string{"X-Actor-Id": "alice"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("own-team submission status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/boards", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d", res.StatusCode)
	}
}
