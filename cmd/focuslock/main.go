// Package main is the CLI entry point for focuslock.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focuslock/internal/config"
	"github.com/eliteGoblin/focusd/focuslock/internal/daemon"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/policy"
	"github.com/eliteGoblin/focusd/focuslock/internal/settings"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focuslock",
	Short: "Focus lock - kicks you out of distracting apps",
	Long: `focuslock watches which app is in the foreground on your phone and
sends you back to the home screen when a blocked app stays open longer
than the kick delay (20 seconds by default).

Phone, dialer, messages and settings are never blocked.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the focus lock service",
	Long: `Runs the service in the foreground until interrupted. With --detach the
service is started in the background and its output goes to the log file
in the data directory.`,
	RunE: runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check service status",
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked and always-allowed apps",
	RunE:  runList,
}

var blockCmd = &cobra.Command{
	Use:   "block <app-id>",
	Short: "Add an app to the blocked set",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlock,
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <app-id>",
	Short: "Remove an app from the blocked set",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnblock,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default blocked set",
	RunE:  runReset,
}

var delayCmd = &cobra.Command{
	Use:   "delay [duration]",
	Short: "Show or set the kick delay (e.g. 20s, 1m)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDelay,
}

var goalsCmd = &cobra.Command{
	Use:   "goals [text...]",
	Short: "Show or set your focus goals",
	RunE:  runGoals,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent kicks",
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	runSource    string
	runAction    string
	runDetach    bool
	runChild     bool
	historyLimit int
	jsonOutput   bool
)

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "Event source: adb, nats or stdin (overrides config)")
	runCmd.Flags().StringVar(&runAction, "action", "", "Kick action: adb, process or log (overrides config)")
	runCmd.Flags().BoolVar(&runDetach, "detach", false, "Start in the background")
	runCmd.Flags().BoolVar(&runChild, "child", false, "")
	_ = runCmd.Flags().MarkHidden("child")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of kicks to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(unblockCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(delayCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the config and derives the data paths.
func loadConfig() (*config.Config, *infra.ExecModeConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	paths := infra.DetectExecMode().WithDataDir(cfg.DataDir)
	if err := os.MkdirAll(paths.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, paths, nil
}

// withSettings opens the prefs store for a one-shot command.
func withSettings(fn func(s *settings.Settings, store prefsBackend) error) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg, paths)
	if err != nil {
		return fmt.Errorf("failed to open prefs store: %w", err)
	}
	defer store.Close()
	return fn(settings.New(store), store)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	if runSource != "" {
		cfg.Source.Kind = runSource
	}
	if runAction != "" {
		cfg.Action.Kind = runAction
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.UsesADB() {
		if _, err := exec.LookPath(cfg.ADB.Path); err != nil {
			return fmt.Errorf("adb not found (set adb.path or FOCUSLOCK_ADB_PATH): %w", err)
		}
	}

	registry := infra.NewFileRegistry(paths.DataDir, infra.NewProcessManager())
	if alive, entry, _ := registry.IsAlive(); alive {
		fmt.Printf("focuslock is already running (pid %d)\n", entry.PID)
		return nil
	}

	if runDetach {
		if cfg.Source.Kind == config.SourceStdin {
			return errors.New("the stdin source cannot run detached")
		}
		childArgs := []string{"run", "--child", "--source", cfg.Source.Kind, "--action", cfg.Action.Kind}
		pid, err := daemon.StartDetached(childArgs, paths.LogPath)
		if err != nil {
			return err
		}
		fmt.Printf("focuslock started in the background (pid %d)\n", pid)
		fmt.Printf("Log: %s\n", paths.LogPath)
		return nil
	}

	level, _ := cfg.ZapLevel()
	// A detached child already has stdout/stderr pointed at the log file.
	logger := createLogger(level, paths.LogPath, !runChild)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runService(ctx, cfg, paths, logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}
	registry := infra.NewFileRegistry(paths.DataDir, infra.NewProcessManager())

	fmt.Println("\n=== focuslock Status ===")
	alive, entry, err := registry.IsAlive()
	switch {
	case err != nil:
		fmt.Printf("Status: UNKNOWN (%v)\n", err)
	case alive:
		fmt.Println("Status: RUNNING")
		fmt.Printf("Source: %s\n", entry.Source)
		if entry.TrackingApp != "" {
			fmt.Printf("Tracking: %s\n", policy.NewCatalog().DisplayName(entry.TrackingApp))
		}
		if entry.LastHeartbeat > 0 {
			lastBeat := time.Unix(entry.LastHeartbeat, 0)
			fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
		}
	default:
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'focuslock run --detach' to start.")
	}

	fmt.Printf("\nExecution mode: %s\n", paths.Mode)
	fmt.Printf("Data dir: %s\n", paths.DataDir)
	fmt.Printf("Store: %s\n", cfg.Store.Backend)

	if err := withSettingsFor(cfg, paths, func(s *settings.Settings) {
		blocked, _ := s.BlockedApps()
		delay, _ := s.KickDelay()
		fmt.Printf("Blocked apps: %d\n", len(blocked))
		fmt.Printf("Kick delay: %s\n", delay)
	}); err != nil {
		fmt.Printf("Settings: unavailable (%v)\n", err)
	}
	fmt.Println("========================")
	return nil
}

// withSettingsFor is withSettings for an already loaded config.
func withSettingsFor(cfg *config.Config, paths *infra.ExecModeConfig, fn func(s *settings.Settings)) error {
	store, err := openStore(cfg, paths)
	if err != nil {
		return err
	}
	defer store.Close()
	fn(settings.New(store))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	return withSettings(func(s *settings.Settings, _ prefsBackend) error {
		blocked, err := s.BlockedApps()
		if err != nil {
			fmt.Printf("Warning: %v (showing defaults)\n", err)
		}
		catalog := policy.NewCatalog()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\n=== Blocked Applications ===")
		for _, id := range blocked.Sorted() {
			note := ""
			if policy.IsWhitelisted(id) {
				note = "(always allowed, never kicked)"
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", catalog.DisplayName(id), id, note)
		}
		fmt.Fprintln(w, "\n=== Always Allowed ===")
		for _, id := range policy.Whitelist().Sorted() {
			fmt.Fprintf(w, "  %s\n", id)
		}
		fmt.Fprintln(w, "============================")
		return w.Flush()
	})
}

func runBlock(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	return withSettings(func(s *settings.Settings, _ prefsBackend) error {
		if err := s.AddBlockedApp(id); err != nil {
			return fmt.Errorf("failed to block %s: %w", id, err)
		}
		if policy.IsWhitelisted(id) {
			fmt.Printf("Added %s, but it is always allowed and will never be kicked.\n", id)
			return nil
		}
		fmt.Printf("Blocked %s\n", policy.NewCatalog().DisplayName(id))
		return nil
	})
}

func runUnblock(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	return withSettings(func(s *settings.Settings, _ prefsBackend) error {
		if err := s.RemoveBlockedApp(id); err != nil {
			return fmt.Errorf("failed to unblock %s: %w", id, err)
		}
		fmt.Printf("Unblocked %s\n", policy.NewCatalog().DisplayName(id))
		return nil
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	return withSettings(func(s *settings.Settings, _ prefsBackend) error {
		if err := s.ResetToDefaults(); err != nil {
			return fmt.Errorf("failed to reset blocked apps: %w", err)
		}
		fmt.Printf("Restored %d default blocked apps\n", len(policy.DefaultBlockedApps()))
		return nil
	})
}

func runDelay(cmd *cobra.Command, args []string) error {
	return withSettings(func(s *settings.Settings, _ prefsBackend) error {
		if len(args) == 0 {
			delay, err := s.KickDelay()
			if err != nil {
				fmt.Printf("Warning: %v (showing default)\n", err)
			}
			fmt.Printf("Kick delay: %s\n", delay)
			return nil
		}

		delay, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", args[0], err)
		}
		if err := s.SetKickDelay(delay); err != nil {
			return err
		}
		fmt.Printf("Kick delay set to %s\n", delay)
		return nil
	})
}

func runGoals(cmd *cobra.Command, args []string) error {
	return withSettings(func(s *settings.Settings, _ prefsBackend) error {
		if len(args) == 0 {
			goals, err := s.Goals()
			if err != nil {
				return err
			}
			if goals == "" {
				fmt.Println("No goals set. Run 'focuslock goals <text>' to set them.")
				return nil
			}
			fmt.Println(goals)
			return nil
		}
		if err := s.SetGoals(strings.Join(args, " ")); err != nil {
			return fmt.Errorf("failed to save goals: %w", err)
		}
		fmt.Println("Goals saved")
		return nil
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withSettings(func(_ *settings.Settings, store prefsBackend) error {
		records, err := store.RecentKicks(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No kicks yet.")
			return nil
		}

		catalog := policy.NewCatalog()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tAPP\tTRACKED\tRESULT")
		for _, r := range records {
			result := "ok"
			if !r.Success {
				result = "failed: " + r.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.At.Local().Format(time.DateTime),
				catalog.DisplayName(r.AppID),
				r.TrackedFor.Round(time.Second),
				result)
		}
		return w.Flush()
	})
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(data))
	} else {
		fmt.Printf("focuslock %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
