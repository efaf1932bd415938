// cmd/zakupki/main.go
//
// This is the entry point for the zakupki review desk.
// When you run `zakupki` from any directory, that directory becomes the project:
// settings live in ./.zakupki/config.yaml and logs in ./.zakupki/logs.
//
// Flow:
// 1. Create the .zakupki folder if needed and load the configuration
// 2. Layer environment variables and CLI flags on top
// 3. Open the zap log file and the activity journal
// 4. Connect the API client and launch the TUI

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/zakupki-desk/internal/api"
	"github.com/kingrea/zakupki-desk/internal/config"
	"github.com/kingrea/zakupki-desk/internal/logbook"
	"github.com/kingrea/zakupki-desk/internal/logging"
	"github.com/kingrea/zakupki-desk/internal/tui"
)

var (
	projectDir string
	baseURL    string
	userID     int
	timeout    time.Duration
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "zakupki",
	Short: "Terminal desk for reviewing public procurement notices",
	Long: `zakupki walks procurement notices through two review stages.

Stage 1 lists freshly collected notices and forwards the chosen ones to AI analysis.
Stage 2 shows the analysed records, lets you correct extracted fields and approve
records for mailing link generation.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDesk(cmd.Context(), "")
	},
}

var stage1Cmd = &cobra.Command{
	Use:   "stage1",
	Short: "Open the desk on the stage 1 notice list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDesk(cmd.Context(), tui.ScreenStage1)
	},
}

var stage2Cmd = &cobra.Command{
	Use:   "stage2",
	Short: "Open the desk on the stage 2 review workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDesk(cmd.Context(), tui.ScreenStage2)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .zakupki/config.yaml with default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveProjectDir()
		if err != nil {
			return err
		}
		if err := config.InitProjectDir(dir); err != nil {
			return err
		}
		cfg, err := config.NewConfig(dir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.ProjectConfigPath())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", "", "project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend base URL (overrides config and ZAKUPKI_API_BASE_URL)")
	rootCmd.PersistentFlags().IntVar(&userID, "user-id", 0, "operator id sent with every request")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(stage1Cmd, stage2Cmd, initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveProjectDir() (string, error) {
	if projectDir != "" {
		return filepath.Abs(projectDir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

// loadConfig prepares the project folder and applies flag overrides last.
func loadConfig() (*config.Config, error) {
	dir, err := resolveProjectDir()
	if err != nil {
		return nil, err
	}
	if err := config.InitProjectDir(dir); err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(config.EnvOverrides{
		BaseURL: baseURL,
		UserID:  userID,
		Timeout: timeout,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDesk(ctx context.Context, screen tui.Screen) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.OptionsFromConfig(cfg, verbose))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	journal, err := logbook.New(cfg.JournalPath(), logger)
	if err != nil {
		return err
	}

	client, err := api.New(
		cfg.Project.API.BaseURL,
		cfg.Project.API.UserID,
		api.WithTimeout(cfg.Project.API.Timeout),
		api.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []tui.AppOption{
		tui.WithLogger(logger),
		tui.WithLogbook(journal),
		tui.WithContext(ctx),
	}
	if screen != "" {
		opts = append(opts, tui.WithStartScreen(screen))
	}
	app, err := tui.NewApp(cfg, client, opts...)
	if err != nil {
		return err
	}

	logger.Info("desk started",
		zap.String("project", cfg.ProjectDir),
		zap.String("base_url", cfg.Project.API.BaseURL),
		zap.Int("user_id", cfg.Project.API.UserID),
	)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	logger.Info("desk stopped")
	return nil
}
