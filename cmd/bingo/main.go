package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bingoboard/internal/app"
	"bingoboard/internal/config"
	"bingoboard/internal/db"
	"bingoboard/internal/domain"
	"bingoboard/internal/engine"
	"bingoboard/internal/migrate"
	"bingoboard/internal/repo"
	"bingoboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "bingo",
	Short: "Bingoboard CLI",
	Long: `Bingoboard runs event bingo: teams race to complete tiles on a shared board.
- Workspace: your .bingoboard directory holding only the database; the board config lives in the DB and is imported explicitly.
- Board: the competition itself, with its tiles, teams, and scoring rules.
- Tiles: objectives worth points. A tile can require other tiles first, as a comma list ("a,b") or OR-groups (JSON [["a","b"],["c"]]).
- Teams: groups of players; each actor belongs to at most one team per board.
- Submissions: a team's evidence for a tile. They go draft -> submitted -> verified, can be flagged back for rework, and archived ones stop counting.
- Scoreboard: ranked standings; whether unverified completions score is a board config knob.
- Event log: diary of changes, view with 'bingo log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BINGO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	rootCmd.PersistentFlags().String("board", "", "board id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
	_ = viper.BindPFlag("board", rootCmd.PersistentFlags().Lookup("board"))
}

func registerCommands() {
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(tileCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(submissionCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(scoreboardCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(rbacCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func boardCmd() *cobra.Command {
	board := &cobra.Command{Use: "board", Short: "Manage boards"}
	board.AddCommand(boardListCmd())
	board.AddCommand(boardCreateCmd())
	board.AddCommand(boardShowCmd())
	board.AddCommand(boardUpdateCmd())
	board.AddCommand(boardDeleteCmd())
	board.AddCommand(boardConfigCmd())
	board.AddCommand(boardUseCmd())
	return board
}

func boardListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List boards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListBoards(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func boardCreateCmd() *cobra.Command {
	var id, title, visibility string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create board",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			e := engine.New(conn, cfg)
			b, err := e.InitBoard(cmd.Context(), id, title, visibility, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(b)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "board id")
	cmd.Flags().StringVar(&title, "title", "", "board title")
	cmd.Flags().StringVar(&visibility, "visibility", "public", "visibility (public, private)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func boardShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show a board",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("board")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if target == "" {
					target = e.Config.Board.ID
				}
				b, err := e.Repo.GetBoard(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
}

func boardUpdateCmd() *cobra.Command {
	var title, visibility, status string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a board",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("board")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if target == "" {
					target = e.Config.Board.ID
				}
				var titlePtr, visPtr, statusPtr *string
				if cmd.Flags().Changed("title") {
					titlePtr = &title
				}
				if cmd.Flags().Changed("visibility") {
					visPtr = &visibility
				}
				if cmd.Flags().Changed("status") {
					statusPtr = &status
				}
				if err := e.Repo.UpdateBoard(ctx, target, titlePtr, visPtr, statusPtr); err != nil {
					return err
				}
				b, err := e.Repo.GetBoard(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "board title")
	cmd.Flags().StringVar(&visibility, "visibility", "", "visibility (public, private)")
	cmd.Flags().StringVar(&status, "status", "", "status (draft, active, closed)")
	return cmd
}

func boardDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete a board",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("board")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if target == "" {
					target = e.Config.Board.ID
				}
				return e.Repo.DeleteBoard(ctx, target)
			})
		},
	}
}

func boardUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set current board for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID := strings.TrimSpace(args[0])
			if boardID == "" {
				return fmt.Errorf("board id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "BINGO_BOARD", boardID); err != nil {
				return err
			}
			fmt.Printf("Set BINGO_BOARD=%s in %s/.env\n", boardID, workspace)
			return nil
		},
	}
}

func boardConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage board config",
	}
	cfg.AddCommand(boardConfigShowCmd())
	cfg.AddCommand(boardConfigImportCmd())
	cfg.AddCommand(boardConfigInitCmd())
	return cfg
}

func boardConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show board config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
}

func boardConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import board config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			boardID := cfg.Board.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if boardID == "" {
					boardID = e.Config.Board.ID
				}
				if err := e.Repo.UpsertBoardConfig(ctx, boardID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func boardConfigInitCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default bingoboard.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(id)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "board id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func tileCmd() *cobra.Command {
	tile := &cobra.Command{
		Use:   "tile",
		Short: "Manage tiles",
		Long:  "Tiles are the objectives on the board. Each is worth points and may require other tiles first; requirements accept a comma list or JSON OR-groups.",
	}
	tile.AddCommand(tileCreateCmd())
	tile.AddCommand(tileListCmd())
	tile.AddCommand(tileShowCmd())
	tile.AddCommand(tileUpdateCmd())
	tile.AddCommand(tileDeleteCmd())
	return tile
}

func tileCreateCmd() *cobra.Command {
	var opts engine.TileCreateOptions
	var row, col int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tile",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.Force = viper.GetBool("force")
			if cmd.Flags().Changed("row") {
				opts.Row = &row
			}
			if cmd.Flags().Changed("col") {
				opts.Col = &col
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.BoardID == "" {
					opts.BoardID = e.Config.Board.ID
				}
				t, err := e.CreateTile(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "tile id (optional, generated if omitted)")
	cmd.Flags().StringVar(&opts.BoardID, "board", "", "board id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "tile name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().IntVar(&opts.Points, "points", 0, "points awarded")
	cmd.Flags().StringVar(&opts.Prereqs, "prereqs", "", `prerequisites ("a,b" or JSON [["a"],["b","c"]])`)
	cmd.Flags().IntVar(&row, "row", 0, "grid row")
	cmd.Flags().IntVar(&col, "col", 0, "grid column")
	cmd.Flags().BoolVar(&opts.Hidden, "hidden", false, "hide tile from players")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func tileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tiles, err := e.Repo.ListTiles(ctx, e.Config.Board.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tiles)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Points", "Prereqs", "Hidden"})
				for _, t := range tiles {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Points, t.PrereqsRaw, t.Hidden})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func tileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a tile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func tileUpdateCmd() *cobra.Command {
	var name, description, prereqs string
	var points, row, col int
	var hidden bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a tile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TileUpdateOptions{
				ID:      args[0],
				ActorID: viper.GetString("actor-id"),
				Force:   viper.GetBool("force"),
			}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("points") {
				opts.Points = &points
			}
			if cmd.Flags().Changed("prereqs") {
				opts.Prereqs = &prereqs
			}
			if cmd.Flags().Changed("row") {
				opts.Row = &row
			}
			if cmd.Flags().Changed("col") {
				opts.Col = &col
			}
			if cmd.Flags().Changed("hidden") {
				opts.Hidden = &hidden
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTile(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "tile name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().IntVar(&points, "points", 0, "points awarded")
	cmd.Flags().StringVar(&prereqs, "prereqs", "", "prerequisites")
	cmd.Flags().IntVar(&row, "row", 0, "grid row")
	cmd.Flags().IntVar(&col, "col", 0, "grid column")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "hide tile from players")
	return cmd
}

func tileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTile(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Manage teams"}
	team.AddCommand(teamCreateCmd())
	team.AddCommand(teamListCmd())
	team.AddCommand(teamAddMemberCmd())
	team.AddCommand(teamMembersCmd())
	return team
}

func teamCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTeam(ctx, e.Config.Board.ID, id, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "team id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "team name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func teamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				teams, err := e.Repo.ListTeams(ctx, e.Config.Board.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(teams)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, t := range teams {
					tw.AppendRow(table.Row{t.ID, t.Name, t.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func teamAddMemberCmd() *cobra.Command {
	var teamID, actor string
	cmd := &cobra.Command{
		Use:   "add-member",
		Short: "Assign an actor to a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID == "" || actor == "" {
				return fmt.Errorf("--team and --actor required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.AssignTeamMember(ctx, e.Config.Board.ID, teamID, actor, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "team id")
	cmd.Flags().StringVar(&actor, "actor", "", "actor id")
	return cmd
}

func teamMembersCmd() *cobra.Command {
	var teamID string
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List team members",
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID == "" {
				return fmt.Errorf("--team required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				members, err := e.Repo.ListTeamMembers(ctx, e.Config.Board.ID, teamID)
				if err != nil {
					return err
				}
				return printJSONOrTable(members)
			})
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "team id")
	return cmd
}

func submissionCmd() *cobra.Command {
	sub := &cobra.Command{
		Use:   "submission",
		Short: "Manage submissions",
		Long:  "Submissions carry a team's evidence for a tile. Draft with create, send for review with submit, then a moderator verifies, flags, or archives.",
	}
	sub.AddCommand(submissionCreateCmd())
	sub.AddCommand(submissionListCmd())
	sub.AddCommand(submissionShowCmd())
	sub.AddCommand(submissionActionCmd("submit", "Mark a submission complete", func(ctx context.Context, e engine.Engine, id, note string) (domain.Submission, error) {
		return e.SubmitSubmission(ctx, id, note, viper.GetString("actor-id"))
	}))
	sub.AddCommand(submissionRevertCmd())
	sub.AddCommand(submissionActionCmd("verify", "Verify a submission (moderator)", func(ctx context.Context, e engine.Engine, id, note string) (domain.Submission, error) {
		return e.VerifySubmission(ctx, id, note, viper.GetString("actor-id"))
	}))
	sub.AddCommand(submissionActionCmd("flag", "Flag a submission for rework (moderator)", func(ctx context.Context, e engine.Engine, id, note string) (domain.Submission, error) {
		return e.FlagSubmission(ctx, id, note, viper.GetString("actor-id"))
	}))
	sub.AddCommand(submissionActionCmd("archive", "Archive a submission", func(ctx context.Context, e engine.Engine, id, _ string) (domain.Submission, error) {
		return e.ArchiveSubmission(ctx, id, viper.GetString("actor-id"))
	}))
	return sub
}

func submissionCreateCmd() *cobra.Command {
	var opts engine.SubmissionCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a draft submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.Force = viper.GetBool("force")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.BoardID == "" {
					opts.BoardID = e.Config.Board.ID
				}
				s, err := e.CreateSubmission(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "submission id (optional)")
	cmd.Flags().StringVar(&opts.BoardID, "board", "", "board id")
	cmd.Flags().StringVar(&opts.TileID, "tile", "", "tile id")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "team id")
	cmd.Flags().StringVar(&opts.Evidence, "evidence", "", "evidence reference (URL or note)")
	_ = cmd.MarkFlagRequired("tile")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func submissionListCmd() *cobra.Command {
	var teamID, tileID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				boardID := e.Config.Board.ID
				var items []domain.Submission
				var err error
				switch {
				case teamID != "":
					items, err = e.Repo.ListSubmissionsByTeam(ctx, boardID, teamID)
				case tileID != "":
					items, err = e.Repo.ListSubmissionsByTile(ctx, boardID, tileID)
				default:
					items, err = e.Repo.ListSubmissionsByBoard(ctx, boardID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Tile", "Team", "State", "Updated"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.TileID, s.TeamID, submissionState(s), s.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "filter by team")
	cmd.Flags().StringVar(&tileID, "tile", "", "filter by tile")
	return cmd
}

func submissionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Repo.GetSubmission(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func submissionActionCmd(name, short string, run func(ctx context.Context, e engine.Engine, id, note string) (domain.Submission, error)) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := run(ctx, e, args[0], note)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note attached to the action")
	return cmd
}

func submissionRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert <id>",
		Short: "Return a submission to draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.RevertSubmission(ctx, args[0], viper.GetString("actor-id"), viper.GetBool("force"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func statusCmd() *cobra.Command {
	var teamID string
	var includeHidden bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show evaluated tile statuses for a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID == "" {
				return fmt.Errorf("--team required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				statuses, err := e.TileStatuses(ctx, e.Config.Board.ID, teamID, includeHidden)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(statuses)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Tile", "Name", "Points", "Status"})
				for _, ts := range statuses {
					tw.AppendRow(table.Row{ts.Tile.ID, ts.Tile.Name, ts.Tile.Points, ts.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "team id")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "include hidden tiles (moderator view)")
	return cmd
}

func scoreboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scoreboard",
		Short: "Show ranked team standings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				standings, err := e.Standings(ctx, e.Config.Board.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(standings)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Rank", "Team", "Score", "Tiles"})
				for _, s := range standings {
					tw.AppendRow(table.Row{s.Rank, s.TeamID, s.Score, s.TilesCompleted})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListEvents(ctx, n, 0, e.Config.Board.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func rbacCmd() *cobra.Command {
	rbac := &cobra.Command{Use: "rbac", Short: "Manage roles"}
	rbac.AddCommand(rbacGrantCmd())
	rbac.AddCommand(rbacRevokeCmd())
	return rbac
}

func rbacGrantCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "grant-role",
		Short: "Grant role to actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tx, err := e.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := e.Auth.EnsureActor(ctx, tx, target); err != nil {
					return err
				}
				if err := e.Repo.AssignRole(ctx, tx, e.Config.Board.ID, target, role); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func rbacRevokeCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "revoke-role",
		Short: "Revoke role from actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tx, err := e.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := e.Repo.RevokeRole(ctx, tx, e.Config.Board.ID, target, role); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	apikey := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	apikey.AddCommand(apikeyCreateCmd())
	apikey.AddCommand(apikeyListCmd())
	apikey.AddCommand(apikeyRevokeCmd())
	return apikey
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				return fmt.Errorf("--actor required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				secret := uuid.New().String()
				key := domain.APIKey{
					ID:      uuid.New().String(),
					ActorID: actor,
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				tx, err := e.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := e.Auth.EnsureActor(ctx, tx, actor); err != nil {
					return err
				}
				if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				// The secret is shown once and only the hash is stored.
				return printJSONOrTable(map[string]string{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"name":     key.Name,
					"key":      secret,
				})
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "label for the key")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					t.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor id")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveBoardAndConfig(cmd.Context(), viper.GetString("board"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("BINGO_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			if authCfg.JWTSecret == "" && !allowLegacy {
				return fmt.Errorf("BINGO_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Bingoboard API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-actor-header", false, "accept unauthenticated X-Actor-Id (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveBoardAndConfig(ctx, viper.GetString("board"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func submissionState(s domain.Submission) string {
	switch {
	case s.IsArchived:
		return "archived"
	case s.IsVerified:
		return "verified"
	case s.RequiresAction:
		return "requires_action"
	case s.IsComplete:
		return "submitted"
	default:
		return "draft"
	}
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
