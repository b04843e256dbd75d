package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bingoboard/internal/domain"
	"bingoboard/internal/engine"
	"bingoboard/internal/engine/auth"
	"bingoboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"tile_locked"`
	Message string         `json:"message" example:"tile t3 is locked for team red"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"tile_id\":\"t3\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Bingoboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Bingoboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerBoards(group, cfg.Engine)
	registerTiles(group, cfg.Engine)
	registerTeams(group, cfg.Engine)
	registerSubmissions(group, cfg.Engine)
	registerStatuses(group, cfg.Engine)
	registerScoreboard(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerRBAC(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerDevAuth(group, cfg.Engine, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	var te auth.ForbiddenTeamError
	if errors.As(err, &te) {
		return newAPIError(http.StatusForbidden, "forbidden_team", err.Error(), map[string]any{"team_id": te.TeamID})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "is locked"):
		return newAPIError(http.StatusConflict, "tile_locked", msg, nil)
	case strings.Contains(lowered, "active submission"):
		return newAPIError(http.StatusConflict, "submission_conflict", msg, nil)
	case strings.Contains(lowered, "requires force"),
		strings.Contains(lowered, "is archived"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "unknown tiles"),
		strings.Contains(lowered, "cannot require itself"):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func hasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

func requirePermission(ctx context.Context, e engine.Engine, boardID, perm string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if hasPermission(principal.Permissions, perm) {
		return nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	ok, err := e.Auth.ActorHasPermission(ctx, tx, boardID, principal.ActorID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{Permission: perm}
	}
	return nil
}

// actorCan reports permission without turning a miss into an error.
func actorCan(ctx context.Context, e engine.Engine, boardID, perm string) bool {
	return requirePermission(ctx, e, boardID, perm) == nil
}

// requireTeamMembership enforces that the acting principal belongs to the
// team, unless they hold moderator review rights on the board.
func requireTeamMembership(ctx context.Context, e engine.Engine, boardID, teamID string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if actorCan(ctx, e, boardID, "submission.verify") {
		return nil
	}
	m, err := e.Repo.GetTeamMembership(ctx, boardID, principal.ActorID)
	if err != nil || m.TeamID != teamID {
		return auth.ForbiddenTeamError{TeamID: teamID}
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	openPaths := map[string]bool{
		ensureSlash(path.Join(basePath, "health")):         true,
		ensureSlash(path.Join(basePath, "auth/dev/login")): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if openPaths[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func ensureSlash(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Bingoboard API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerBoards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-board",
		Method:        http.MethodPost,
		Path:          "/boards",
		Summary:       "Create board",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateBoardRequest `json:"body"`
	}) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "id is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.InitBoard(ctx, input.Body.ID, stringOrEmpty(input.Body.Title), stringOrEmpty(input.Body.Visibility), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: boardResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []BoardResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListBoards(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []BoardResponse `json:"body"`
		}{Body: mapBoards(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}",
		Summary:     "Get board",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "board.read"); err != nil {
			return nil, handleError(err)
		}
		b, err := e.Repo.GetBoard(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: boardResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-board",
		Method:      http.MethodPatch,
		Path:        "/boards/{board_id}",
		Summary:     "Update board",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
		Body    struct {
			Title      *string `json:"title,omitempty"`
			Visibility *string `json:"visibility,omitempty" enum:"public,private"`
			Status     *string `json:"status,omitempty" enum:"draft,active,closed"`
		} `json:"body"`
	}) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, input.BoardID, "board.update"); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.UpdateBoard(ctx, input.BoardID, input.Body.Title, input.Body.Visibility, input.Body.Status); err != nil {
			return nil, handleError(err)
		}
		b, err := e.Repo.GetBoard(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: boardResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board",
		Method:      http.MethodDelete,
		Path:        "/boards/{board_id}",
		Summary:     "Delete board",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "board.update"); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteBoard(ctx, input.BoardID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board-config",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/config",
		Summary:     "Get board config",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*struct {
		Body BoardConfigResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "board.config.read"); err != nil {
			return nil, handleError(err)
		}
		cfg, err := e.Repo.GetBoardConfig(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BoardConfigResponse `json:"body"`
		}{Body: configResponse(cfg)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "board-status",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/status",
		Summary:     "Board status summary",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "board.read"); err != nil {
			return nil, handleError(err)
		}
		b, err := e.Repo.GetBoard(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		counts, err := e.Repo.CountSubmissionStates(ctx, b.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"board_id":          b.ID,
			"status":            b.Status,
			"submission_counts": counts,
		}}, nil
	})
}

func registerTiles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tile",
		Method:        http.MethodPost,
		Path:          "/boards/{board_id}/tiles",
		Summary:       "Create tile",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string            `path:"board_id"`
		Force   bool              `query:"force"`
		Body    CreateTileRequest `json:"body"`
	}) (*struct {
		Body TileResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if err := requirePermission(ctx, e, input.BoardID, "tile.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTile(ctx, engine.TileCreateOptions{
			ID:          stringOrEmpty(input.Body.ID),
			BoardID:     input.BoardID,
			Name:        input.Body.Name,
			Description: stringOrEmpty(input.Body.Description),
			Points:      input.Body.Points,
			Prereqs:     stringOrEmpty(input.Body.Prereqs),
			Row:         input.Body.Row,
			Col:         input.Body.Col,
			Hidden:      input.Body.Hidden != nil && *input.Body.Hidden,
			ActorID:     actorID,
			Force:       input.Force,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TileResponse `json:"body"`
		}{Body: tileResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tiles",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/tiles",
		Summary:     "List tiles",
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*struct {
		Body []TileResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "tile.read"); err != nil {
			return nil, handleError(err)
		}
		tiles, err := e.Repo.ListTiles(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		if !actorCan(ctx, e, input.BoardID, "tile.update") {
			visible := tiles[:0]
			for _, t := range tiles {
				if !t.Hidden {
					visible = append(visible, t)
				}
			}
			tiles = visible
		}
		return &struct {
			Body []TileResponse `json:"body"`
		}{Body: mapTiles(tiles)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tile",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/tiles/{id}",
		Summary:     "Get tile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
		ID      string `path:"id"`
	}) (*struct {
		Body TileResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "tile.read"); err != nil {
			return nil, handleError(err)
		}
		t, err := e.Repo.GetTile(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if t.BoardID != input.BoardID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "tile not found on board", nil)
		}
		if t.Hidden && !actorCan(ctx, e, input.BoardID, "tile.update") {
			return nil, newAPIError(http.StatusNotFound, "not_found", "tile not found on board", nil)
		}
		return &struct {
			Body TileResponse `json:"body"`
		}{Body: tileResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tile",
		Method:      http.MethodPatch,
		Path:        "/boards/{board_id}/tiles/{id}",
		Summary:     "Update tile",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string            `path:"board_id"`
		ID      string            `path:"id"`
		Force   bool              `query:"force"`
		Body    UpdateTileRequest `json:"body"`
	}) (*struct {
		Body TileResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requirePermission(ctx, e, input.BoardID, "tile.update"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTile(ctx, engine.TileUpdateOptions{
			ID:          input.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Points:      input.Body.Points,
			Prereqs:     input.Body.Prereqs,
			Row:         input.Body.Row,
			Col:         input.Body.Col,
			Hidden:      input.Body.Hidden,
			ActorID:     actorID,
			Force:       input.Force,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TileResponse `json:"body"`
		}{Body: tileResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tile",
		Method:      http.MethodDelete,
		Path:        "/boards/{board_id}/tiles/{id}",
		Summary:     "Delete tile",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
		ID      string `path:"id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "tile.delete"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTile(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTeams(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-team",
		Method:        http.MethodPost,
		Path:          "/boards/{board_id}/teams",
		Summary:       "Create team",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string            `path:"board_id"`
		Body    CreateTeamRequest `json:"body"`
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if err := requirePermission(ctx, e, input.BoardID, "team.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTeam(ctx, input.BoardID, stringOrEmpty(input.Body.ID), input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: teamResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/teams",
		Summary:     "List teams",
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*struct {
		Body []TeamResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "team.read"); err != nil {
			return nil, handleError(err)
		}
		teams, err := e.Repo.ListTeams(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TeamResponse `json:"body"`
		}{Body: mapTeams(teams)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-team-member",
		Method:      http.MethodPost,
		Path:        "/boards/{board_id}/teams/{id}/members",
		Summary:     "Assign actor to team",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string              `path:"board_id"`
		ID      string              `path:"id"`
		Body    AssignMemberRequest `json:"body"`
	}) (*struct{}, error) {
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if err := requirePermission(ctx, e, input.BoardID, "team.update"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AssignTeamMember(ctx, input.BoardID, input.ID, input.Body.ActorID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-team-members",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/teams/{id}/members",
		Summary:     "List team members",
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
		ID      string `path:"id"`
	}) (*struct {
		Body []domain.TeamMember `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "team.read"); err != nil {
			return nil, handleError(err)
		}
		members, err := e.Repo.ListTeamMembers(ctx, input.BoardID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TeamMember `json:"body"`
		}{Body: nonNilSlice(members)}, nil
	})
}

func registerSubmissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-submission",
		Method:        http.MethodPost,
		Path:          "/boards/{board_id}/submissions",
		Summary:       "Open a draft submission",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string                  `path:"board_id"`
		Force   bool                    `query:"force"`
		Body    CreateSubmissionRequest `json:"body"`
	}) (*struct {
		Body SubmissionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.TileID == "" || input.Body.TeamID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "tile_id and team_id are required", nil)
		}
		if err := requirePermission(ctx, e, input.BoardID, "submission.create"); err != nil {
			return nil, handleError(err)
		}
		if err := requireTeamMembership(ctx, e, input.BoardID, input.Body.TeamID); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		force := input.Force && actorCan(ctx, e, input.BoardID, "submission.verify")
		s, err := e.CreateSubmission(ctx, engine.SubmissionCreateOptions{
			ID:       stringOrEmpty(input.Body.ID),
			BoardID:  input.BoardID,
			TileID:   input.Body.TileID,
			TeamID:   input.Body.TeamID,
			Evidence: stringOrEmpty(input.Body.Evidence),
			ActorID:  actorID,
			Force:    force,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubmissionResponse `json:"body"`
		}{Body: submissionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-submissions",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/submissions",
		Summary:     "List submissions",
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
		TeamID  string `query:"team_id"`
		TileID  string `query:"tile_id"`
	}) (*struct {
		Body []SubmissionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "submission.read"); err != nil {
			return nil, handleError(err)
		}
		var items []domain.Submission
		var err error
		switch {
		case input.TeamID != "":
			items, err = e.Repo.ListSubmissionsByTeam(ctx, input.BoardID, input.TeamID)
		case input.TileID != "":
			items, err = e.Repo.ListSubmissionsByTile(ctx, input.BoardID, input.TileID)
		default:
			items, err = e.Repo.ListSubmissionsByBoard(ctx, input.BoardID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []SubmissionResponse `json:"body"`
		}{Body: mapSubmissions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-submission",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/submissions/{id}",
		Summary:     "Get submission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
		ID      string `path:"id"`
	}) (*struct {
		Body SubmissionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "submission.read"); err != nil {
			return nil, handleError(err)
		}
		s, err := e.Repo.GetSubmission(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if s.BoardID != input.BoardID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "submission not found on board", nil)
		}
		return &struct {
			Body SubmissionResponse `json:"body"`
		}{Body: submissionResponse(s)}, nil
	})

	type submissionAction struct {
		perm       string
		teamScoped bool
		run        func(ctx context.Context, e engine.Engine, id, note, actorID string, force bool) (domain.Submission, error)
	}
	actions := map[string]submissionAction{
		"submit": {
			perm:       "submission.submit",
			teamScoped: true,
			run: func(ctx context.Context, e engine.Engine, id, note, actorID string, _ bool) (domain.Submission, error) {
				return e.SubmitSubmission(ctx, id, note, actorID)
			},
		},
		"revert": {
			perm:       "submission.revert",
			teamScoped: true,
			run: func(ctx context.Context, e engine.Engine, id, _, actorID string, force bool) (domain.Submission, error) {
				return e.RevertSubmission(ctx, id, actorID, force)
			},
		},
		"verify": {
			perm: "submission.verify",
			run: func(ctx context.Context, e engine.Engine, id, note, actorID string, _ bool) (domain.Submission, error) {
				return e.VerifySubmission(ctx, id, note, actorID)
			},
		},
		"flag": {
			perm: "submission.flag",
			run: func(ctx context.Context, e engine.Engine, id, note, actorID string, _ bool) (domain.Submission, error) {
				return e.FlagSubmission(ctx, id, note, actorID)
			},
		},
		"archive": {
			perm: "submission.archive",
			run: func(ctx context.Context, e engine.Engine, id, _, actorID string, _ bool) (domain.Submission, error) {
				return e.ArchiveSubmission(ctx, id, actorID)
			},
		},
	}
	for name, action := range actions {
		action := action
		huma.Register(api, huma.Operation{
			OperationID: name + "-submission",
			Method:      http.MethodPost,
			Path:        "/boards/{board_id}/submissions/{id}/" + name,
			Summary:     capitalize(name) + " submission",
			Errors: []int{
				http.StatusForbidden,
				http.StatusNotFound,
				http.StatusConflict,
			},
		}, func(ctx context.Context, input *struct {
			BoardID string                `path:"board_id"`
			ID      string                `path:"id"`
			Force   bool                  `query:"force"`
			Body    ModerationNoteRequest `json:"body,omitempty"`
		}) (*struct {
			Body SubmissionResponse `json:"body"`
		}, error) {
			if err := requirePermission(ctx, e, input.BoardID, action.perm); err != nil {
				return nil, handleError(err)
			}
			s, err := e.Repo.GetSubmission(ctx, input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			if s.BoardID != input.BoardID {
				return nil, newAPIError(http.StatusNotFound, "not_found", "submission not found on board", nil)
			}
			if action.teamScoped {
				if err := requireTeamMembership(ctx, e, input.BoardID, s.TeamID); err != nil {
					return nil, handleError(err)
				}
			}
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			s, err = action.run(ctx, e, input.ID, stringOrEmpty(input.Body.Note), actorID, input.Force)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body SubmissionResponse `json:"body"`
			}{Body: submissionResponse(s)}, nil
		})
	}
}

func registerStatuses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "team-tile-statuses",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/teams/{team_id}/statuses",
		Summary:     "Evaluated tile statuses for a team",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
		TeamID  string `path:"team_id"`
	}) (*struct {
		Body []TileStatusResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "tile.read"); err != nil {
			return nil, handleError(err)
		}
		board, err := e.Repo.GetBoard(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		// On a private board a team's evaluated statuses are visible only
		// to that team's own members and to moderators.
		if board.Visibility == "private" {
			if err := requireTeamMembership(ctx, e, input.BoardID, input.TeamID); err != nil {
				return nil, handleError(err)
			}
		}
		includeHidden := actorCan(ctx, e, input.BoardID, "tile.update")
		statuses, err := e.TileStatuses(ctx, input.BoardID, input.TeamID, includeHidden)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]TileStatusResponse, 0, len(statuses))
		for _, ts := range statuses {
			res = append(res, tileStatusResponse(ts))
		}
		return &struct {
			Body []TileStatusResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerScoreboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "scoreboard",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/scoreboard",
		Summary:     "Ranked team standings",
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*struct {
		Body []StandingResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "scoreboard.read"); err != nil {
			return nil, handleError(err)
		}
		standings, err := e.Standings(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]StandingResponse, 0, len(standings))
		for _, s := range standings {
			res = append(res, standingResponse(s))
		}
		return &struct {
			Body []StandingResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.BoardID, "log.read"); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.ListEvents(ctx, limit+1, cursorID, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerRBAC(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}/me/permissions",
		Summary:     "Current actor permissions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		profile, err := actorProfile(ctx, e, input.BoardID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: profile}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "grant-role",
		Method:      http.MethodPost,
		Path:        "/boards/{board_id}/rbac/roles/grant",
		Summary:     "Grant role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string            `path:"board_id"`
		Body    RoleChangeRequest `json:"body"`
	}) (*struct{}, error) {
		if input.Body.ActorID == "" || input.Body.RoleID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and role_id are required", nil)
		}
		if err := requirePermission(ctx, e, input.BoardID, "board.update"); err != nil {
			return nil, handleError(err)
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := e.Auth.EnsureActor(ctx, tx, input.Body.ActorID); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.AssignRole(ctx, tx, input.BoardID, input.Body.ActorID, input.Body.RoleID); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-role",
		Method:      http.MethodPost,
		Path:        "/boards/{board_id}/rbac/roles/revoke",
		Summary:     "Revoke role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		BoardID string            `path:"board_id"`
		Body    RoleChangeRequest `json:"body"`
	}) (*struct{}, error) {
		if input.Body.ActorID == "" || input.Body.RoleID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and role_id are required", nil)
		}
		if err := requirePermission(ctx, e, input.BoardID, "board.update"); err != nil {
			return nil, handleError(err)
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := e.Repo.RevokeRole(ctx, tx, input.BoardID, input.Body.ActorID, input.Body.RoleID); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func actorProfile(ctx context.Context, e engine.Engine, boardID, actorID string) (WhoAmIResponse, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return WhoAmIResponse{}, err
	}
	defer tx.Rollback()
	roles, err := e.Auth.ActorRoles(ctx, tx, boardID, actorID)
	if err != nil {
		return WhoAmIResponse{}, err
	}
	perms, err := e.Auth.ActorPermissions(ctx, tx, boardID, actorID)
	if err != nil {
		return WhoAmIResponse{}, err
	}
	res := WhoAmIResponse{
		ActorID:     actorID,
		Roles:       nonNilSlice(roles),
		Permissions: nonNilSlice(perms),
	}
	if m, err := e.Repo.GetTeamMembership(ctx, boardID, actorID); err == nil {
		res.TeamID = m.TeamID
	}
	return res, nil
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		roles := principal.Roles
		perms := principal.Permissions
		teamID := ""
		if len(perms) == 0 && e.Config != nil {
			if profile, err := actorProfile(ctx, e, e.Config.Board.ID, principal.ActorID); err == nil {
				if len(roles) == 0 {
					roles = profile.Roles
				}
				perms = profile.Permissions
				teamID = profile.TeamID
			}
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     principal.ActorID,
			TeamID:      teamID,
			Roles:       nonNilSlice(roles),
			Permissions: nonNilSlice(perms),
		}}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Register an API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if input.Body.ActorID == "" || input.Body.Key == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and key are required", nil)
		}
		if e.Config == nil {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "no active board", nil)
		}
		if err := requirePermission(ctx, e, e.Config.Board.ID, "board.update"); err != nil {
			return nil, handleError(err)
		}
		key := domain.APIKey{
			ID:      uuid.New().String(),
			ActorID: input.Body.ActorID,
			Name:    stringOrEmpty(input.Body.Name),
			KeyHash: repo.HashAPIKey(input.Body.Key),
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := e.Auth.EnsureActor(ctx, tx, key.ActorID); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		stored, err := e.Repo.GetAPIKeyByHash(ctx, key.KeyHash)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: apiKeyResponse(stored)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		if e.Config == nil {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "no active board", nil)
		}
		if err := requirePermission(ctx, e, e.Config.Board.ID, "board.update"); err != nil {
			return nil, handleError(err)
		}
		keys, err := e.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			res = append(res, apiKeyResponse(k))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if e.Config == nil {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "no active board", nil)
		}
		if err := requirePermission(ctx, e, e.Config.Board.ID, "board.update"); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDevAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, input.Body.Roles, input.Body.Permissions)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
