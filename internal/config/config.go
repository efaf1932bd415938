// internal/config/config.go
//
// This package handles configuration and the .zakupki directory structure.
// Every working directory that runs zakupki gets a .zakupki/ folder holding
// config.yaml and the log files.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in each working directory
	ProjectDirName = ".zakupki"

	// RegNumberPlaceholder is substituted with the notice identifier in registry links.
	RegNumberPlaceholder = "{reg_number}"

	defaultBaseURL      = "http://localhost:8000/api"
	defaultUserID       = 1
	defaultTimeout      = 60 * time.Second
	defaultNoticeLimit  = 10
	defaultNoticeURL    = "https://zakupki.gov.ru/epz/order/notice/zk20/view/common-info.html?regNumber=" + RegNumberPlaceholder
	defaultStartScreen  = ScreenStage1
	defaultConfirmQuit  = ConfirmQuitAlways
	defaultLogLevel     = "info"
	defaultLogFileName  = "zakupki.log"
	defaultJournalName  = "journal.log"
	configFileName      = "config.yaml"
	projectConfigHeader = "# zakupki project configuration\n"
)

// Screens the TUI can start on.
const (
	ScreenStage1 = "stage1"
	ScreenStage2 = "stage2"
)

// Quit guard modes.
const (
	ConfirmQuitAlways = "always"
	ConfirmQuitDirty  = "dirty"
	ConfirmQuitNever  = "never"
)

const defaultProjectConfigYAML = projectConfigHeader + `version: 1

# Backend the screens talk to. All paths (/stage1, /overrides, ...) are relative to base_url.
api:
  base_url: http://localhost:8000/api
  user_id: 1
  timeout: 60s

stage1:
  # Page size used until the user runs an ingestion with a different count.
  default_limit: 10

registry:
  notice_url: https://zakupki.gov.ru/epz/order/notice/zk20/view/common-info.html?regNumber={reg_number}

ui:
  start_screen: stage1
  # always | dirty | never
  confirm_quit: always

logging:
  level: info
`

// APIConfig describes the backend connection.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	UserID  int           `yaml:"user_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// Stage1Config holds stage-1 screen preferences.
type Stage1Config struct {
	DefaultLimit int `yaml:"default_limit"`
}

// RegistryConfig describes the external public registry.
type RegistryConfig struct {
	NoticeURL string `yaml:"notice_url"`
}

// UIConfig captures screen preferences.
type UIConfig struct {
	StartScreen string `yaml:"start_screen"`
	ConfirmQuit string `yaml:"confirm_quit"`
}

// LoggingConfig selects the zap level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProjectConfig models .zakupki/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	API      APIConfig      `yaml:"api"`
	Stage1   Stage1Config   `yaml:"stage1"`
	Registry RegistryConfig `yaml:"registry"`
	UI       UIConfig       `yaml:"ui"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EnvOverrides are read from the process environment after .env files are loaded.
// Zero values leave the file configuration untouched.
type EnvOverrides struct {
	BaseURL     string        `env:"ZAKUPKI_API_BASE_URL"`
	UserID      int           `env:"ZAKUPKI_USER_ID"`
	Timeout     time.Duration `env:"ZAKUPKI_API_TIMEOUT"`
	ConfirmQuit string        `env:"ZAKUPKI_CONFIRM_QUIT"`
	LogLevel    string        `env:"ZAKUPKI_LOG_LEVEL"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory where the user ran `zakupki` from
	ProjectDir string

	// StateDir is ProjectDir/.zakupki
	StateDir string

	Project ProjectConfig
}

// InitProjectDir creates the .zakupki directory structure in the given directory.
//
// Structure created:
// .zakupki/
// ├── config.yaml
// └── logs/        <- zap log file and the activity journal
func InitProjectDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	return ensureProjectConfig(filepath.Join(stateDir, configFileName))
}

// NewConfig creates a new Config populated with project settings, .env files and
// environment overrides, in that order.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := loadDotEnv(projectDir); err != nil {
		return nil, err
	}
	var overrides EnvOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Apply(overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply layers non-zero overrides on top of the loaded configuration and
// re-validates the result. CLI flags go through here as well.
func (c *Config) Apply(o EnvOverrides) error {
	if v := strings.TrimSpace(o.BaseURL); v != "" {
		c.Project.API.BaseURL = v
	}
	if o.UserID > 0 {
		c.Project.API.UserID = o.UserID
	}
	if o.Timeout > 0 {
		c.Project.API.Timeout = o.Timeout
	}
	if v := strings.TrimSpace(o.ConfirmQuit); v != "" {
		c.Project.UI.ConfirmQuit = v
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		c.Project.Logging.Level = v
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// LogFilePath returns the zap log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogsDir(), defaultLogFileName)
}

// JournalPath returns the activity journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), defaultJournalName)
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, configFileName)
}

// NoticeURL builds the public registry link for a notice. The identifier is
// inserted verbatim.
func (c *Config) NoticeURL(regNumber string) string {
	return strings.ReplaceAll(c.Project.Registry.NoticeURL, RegNumberPlaceholder, regNumber)
}

// StartScreen returns the screen the TUI opens on.
func (c *Config) StartScreen() string {
	return c.Project.UI.StartScreen
}

// SetStartScreen remembers the last visited screen in .zakupki/config.yaml.
func (c *Config) SetStartScreen(screen string) error {
	screen = strings.ToLower(strings.TrimSpace(screen))
	if !validScreen(screen) {
		return fmt.Errorf("config: unknown screen %q", screen)
	}
	if c.Project.UI.StartScreen == screen {
		return nil
	}
	c.Project.UI.StartScreen = screen
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		API: APIConfig{
			BaseURL: defaultBaseURL,
			UserID:  defaultUserID,
			Timeout: defaultTimeout,
		},
		Stage1:   Stage1Config{DefaultLimit: defaultNoticeLimit},
		Registry: RegistryConfig{NoticeURL: defaultNoticeURL},
		UI: UIConfig{
			StartScreen: defaultStartScreen,
			ConfirmQuit: defaultConfirmQuit,
		},
		Logging: LoggingConfig{Level: defaultLogLevel},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = defaultBaseURL
	}
	if pc.API.UserID == 0 {
		pc.API.UserID = defaultUserID
	}
	if pc.API.Timeout == 0 {
		pc.API.Timeout = defaultTimeout
	}
	if pc.Stage1.DefaultLimit == 0 {
		pc.Stage1.DefaultLimit = defaultNoticeLimit
	}
	if strings.TrimSpace(pc.Registry.NoticeURL) == "" {
		pc.Registry.NoticeURL = defaultNoticeURL
	}
	if strings.TrimSpace(pc.UI.StartScreen) == "" {
		pc.UI.StartScreen = defaultStartScreen
	}
	if strings.TrimSpace(pc.UI.ConfirmQuit) == "" {
		pc.UI.ConfirmQuit = defaultConfirmQuit
	}
	if strings.TrimSpace(pc.Logging.Level) == "" {
		pc.Logging.Level = defaultLogLevel
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	pc.Registry.NoticeURL = strings.TrimSpace(pc.Registry.NoticeURL)
	pc.UI.StartScreen = strings.ToLower(strings.TrimSpace(pc.UI.StartScreen))
	pc.UI.ConfirmQuit = strings.ToLower(strings.TrimSpace(pc.UI.ConfirmQuit))
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	parsed, err := url.Parse(pc.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", pc.API.BaseURL)
	}
	if pc.API.UserID < 1 {
		return fmt.Errorf("api.user_id must be >= 1")
	}
	if pc.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if pc.Stage1.DefaultLimit < 1 {
		return fmt.Errorf("stage1.default_limit must be >= 1")
	}
	if !strings.Contains(pc.Registry.NoticeURL, RegNumberPlaceholder) {
		return fmt.Errorf("registry.notice_url must contain %s", RegNumberPlaceholder)
	}
	if !validScreen(pc.UI.StartScreen) {
		return fmt.Errorf("ui.start_screen must be '%s' or '%s'", ScreenStage1, ScreenStage2)
	}
	switch pc.UI.ConfirmQuit {
	case ConfirmQuitAlways, ConfirmQuitDirty, ConfirmQuitNever:
	default:
		return fmt.Errorf("ui.confirm_quit must be 'always', 'dirty' or 'never'")
	}
	switch pc.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	return nil
}

func validScreen(screen string) bool {
	return screen == ScreenStage1 || screen == ScreenStage2
}

// loadDotEnv loads .env and .env.local from the project directory when present.
// Variables already set in the environment win.
func loadDotEnv(projectDir string) error {
	var existing []string
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(projectDir, name)
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: load env files: %w", err)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	data = append([]byte(projectConfigHeader), data...)
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
