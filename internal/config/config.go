// Package config assembles the immutable run configuration from .env,
// environment variables, and the mappings YAML file. The engine receives
// the resulting value explicitly; nothing in the core reads ambient state.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultMappingsPath is where the mappings file lives unless --config
// points elsewhere.
const DefaultMappingsPath = "config/mappings.yaml"

// Configuration errors. These are run-fatal: they abort before any remote
// call is attempted.
var (
	ErrMissingToken       = errors.New("GITHUB_TOKEN is not set")
	ErrMissingOwner       = errors.New("GITHUB_ORG is not set")
	ErrMissingPrimaryRepo = errors.New("no primary repository configured")
)

// Config is the immutable configuration for one run.
type Config struct {
	Token   string // GitHub personal access token
	Owner   string // organization or user owning the repositories
	BaseURL string // API base URL, overridable for GitHub Enterprise

	PrimaryRepo   string // default target for rows without a Repository column
	SecondaryRepo string // optional second repository of the project
	ProjectLabel  string // appended to every created issue when set
	LedgerDir     string // where run ledgers are stored

	// Import option defaults; command flags override these.
	FailOnMissingMilestone bool
	RequireAssignee        bool
	MaxRetryAttempts       int
}

// mappingsFile mirrors the YAML layout of config/mappings.yaml.
type mappingsFile struct {
	RepositoryRules struct {
		Primary   string `yaml:"primary"`
		Secondary string `yaml:"secondary"`
	} `yaml:"repository_rules"`
	ProjectLabel string `yaml:"project_label"`
	LedgerDir    string `yaml:"ledger_dir"`
	Import       struct {
		FailOnMissingMilestone bool `yaml:"fail_on_missing_milestone"`
		RequireAssignee        bool `yaml:"require_assignee"`
		MaxRetryAttempts       *int `yaml:"max_retry_attempts"`
	} `yaml:"import"`
}

// Load builds a Config from .env (if present), the environment, and the
// mappings file at mappingsPath. A missing mappings file is not an error;
// everything it provides can also come from the environment.
func Load(mappingsPath string) (*Config, error) {
	// Best-effort, matching dotenv semantics: a missing .env is fine and
	// existing environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	for _, key := range []string{
		"GITHUB_TOKEN", "GITHUB_ORG", "GITHUB_API_URL",
		"EPICIMPORT_PRIMARY_REPO", "EPICIMPORT_SECONDARY_REPO",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	cfg := &Config{
		Token:            v.GetString("GITHUB_TOKEN"),
		Owner:            v.GetString("GITHUB_ORG"),
		BaseURL:          v.GetString("GITHUB_API_URL"),
		PrimaryRepo:      v.GetString("EPICIMPORT_PRIMARY_REPO"),
		SecondaryRepo:    v.GetString("EPICIMPORT_SECONDARY_REPO"),
		MaxRetryAttempts: 3,
	}

	if mappingsPath == "" {
		mappingsPath = DefaultMappingsPath
	}
	if err := cfg.applyMappings(mappingsPath); err != nil {
		return nil, err
	}

	if cfg.LedgerDir == "" {
		cfg.LedgerDir = ".epicimport/runs"
	}
	return cfg, nil
}

func (c *Config) applyMappings(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - user-supplied config path
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading mappings file: %w", err)
	}

	var m mappingsFile
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	// Environment wins over the mappings file for repository names.
	if c.PrimaryRepo == "" {
		c.PrimaryRepo = m.RepositoryRules.Primary
	}
	if c.SecondaryRepo == "" {
		c.SecondaryRepo = m.RepositoryRules.Secondary
	}
	c.ProjectLabel = m.ProjectLabel
	if m.LedgerDir != "" {
		c.LedgerDir = m.LedgerDir
	}
	c.FailOnMissingMilestone = m.Import.FailOnMissingMilestone
	c.RequireAssignee = m.Import.RequireAssignee
	if m.Import.MaxRetryAttempts != nil {
		c.MaxRetryAttempts = *m.Import.MaxRetryAttempts
	}
	return nil
}

// Validate reports the first configuration problem that makes remote work
// impossible. Callers treat any returned error as run-fatal.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.Owner == "" {
		return ErrMissingOwner
	}
	if c.PrimaryRepo == "" {
		return ErrMissingPrimaryRepo
	}
	return nil
}

// Repositories returns the configured repository set, primary first.
func (c *Config) Repositories() []string {
	repos := []string{c.PrimaryRepo}
	if c.SecondaryRepo != "" && c.SecondaryRepo != c.PrimaryRepo {
		repos = append(repos, c.SecondaryRepo)
	}
	return repos
}
