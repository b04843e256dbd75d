package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models bingoboard.yml.
type Config struct {
	Board struct {
		ID         string `yaml:"id"`
		Title      string `yaml:"title"`
		Visibility string `yaml:"visibility"`
	} `yaml:"board"`
	Scoring struct {
		UnlockOnVerifiedOnly bool `yaml:"unlock_on_verified_only"`
		ScoreOnVerifiedOnly  bool `yaml:"score_on_verified_only"`
	} `yaml:"scoring"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// WebhookConfig describes one event push target.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with bingo board config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Board.ID == "" {
		return fmt.Errorf("config.board.id is required")
	}
	switch c.Board.Visibility {
	case "", "public", "private":
	default:
		return fmt.Errorf("config.board.visibility must be public or private")
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["moderator"]; !ok {
			return fmt.Errorf("config.rbac.roles must include moderator")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Visibility returns the effective board visibility, defaulting to public.
func (c *Config) Visibility() string {
	if c.Board.Visibility == "" {
		return "public"
	}
	return c.Board.Visibility
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "bingoboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(boardID string) string {
	return fmt.Sprintf(defaultTemplate, boardID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a board.
func Default(boardID string) *Config {
	var cfg Config
	cfg.Board.ID = boardID
	cfg.Board.Visibility = "public"
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, boardID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `board:
  id: %s
  title: ""
  visibility: public

scoring:
  unlock_on_verified_only: false
  score_on_verified_only: false

rbac:
  roles:
    moderator:
      description: "Reviews evidence, verifies and flags submissions, edits tiles"
      permissions:
        - board.read
        - board.update
        - board.config.read
        - board.config.update
        - tile.create
        - tile.read
        - tile.update
        - tile.delete
        - team.create
        - team.read
        - team.update
        - submission.read
        - submission.verify
        - submission.flag
        - submission.archive
        - scoreboard.read
        - log.read
    captain:
      description: "Manages a single team's roster and submissions"
      permissions:
        - board.read
        - tile.read
        - team.read
        - submission.create
        - submission.read
        - submission.submit
        - submission.revert
        - submission.archive
        - scoreboard.read
    player:
      description: "Submits evidence for their own team"
      permissions:
        - board.read
        - tile.read
        - team.read
        - submission.create
        - submission.read
        - submission.submit
        - submission.revert
        - scoreboard.read
`
