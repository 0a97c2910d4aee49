// Package main is the CLI entry point for winmon.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/win_mon/internal/config"
	"github.com/eliteGoblin/focusd/win_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
	"github.com/eliteGoblin/focusd/win_mon/internal/infra"
	"github.com/eliteGoblin/focusd/win_mon/internal/policy"
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
	Use:   "winmon",
	Short: "Window monitor - limits time spent in focused applications",
	Long: `winmon watches which X11 window has focus and how long it has kept it.
Windows are matched against the rules in WINDOWS_SETTINGS; once a window has
been focused continuously for longer than its rule allows, the owning process
is sent SIGTERM (or, with REAL_TERMINATE off, only logged).

There is no stop command.`,
	Version:       Version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile == "" {
			return nil
		}
		if err := config.LoadEnvFile(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor in the foreground",
	Long: `Runs the poll loop until SIGINT or SIGTERM.
When started as root, privileges are dropped to USER first.`,
	RunE: runDaemon,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitor in the background",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check monitor status",
	Long:  `Shows whether the monitor is running, its last heartbeat and what it is tracking.`,
	RunE:  runStatus,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List configured window rules",
	Long:  `Shows every rule in match order, how its pattern is interpreted and its timeout.`,
	RunE:  runRules,
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Show which rule a window would match",
	Long: `Classifies a window by title (--name) and WM_CLASS instance (--class)
against the configured rules, without talking to the display server.`,
	RunE: runClassify,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent terminations",
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath   string
	envFile      string
	jsonOutput   bool
	windowName   string
	windowClass  string
	historyLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default depends on exec mode)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load WINMON_* variables from a dotenv file")

	classifyCmd.Flags().StringVar(&windowName, "name", "", "Window title")
	classifyCmd.Flags().StringVar(&windowClass, "class", "", "WM_CLASS instance (short name)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of events to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveConfigPath returns --config or the exec mode default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return infra.DetectExecMode().ConfigPath
}

// resolveDataDir returns DATA_DIR or the exec mode default.
func resolveDataDir(cfg *config.Config) string {
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	return infra.DetectExecMode().DataDir
}

func runStart(cmd *cobra.Command, args []string) error {
	pm := infra.NewProcessManager()
	statusFile := infra.NewStatusFile()

	if status, _ := statusFile.Read(); status != nil && pm.IsRunning(status.PID) {
		fmt.Printf("winmon is already running (pid %d)\n", status.PID)
		return nil
	}

	path := resolveConfigPath()
	if _, err := config.Load(path); err != nil {
		return err
	}

	pid, err := daemon.StartDaemon(path, envFile)
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Println("\n=== winmon Started ===")
	fmt.Printf("PID: %d\n", pid)
	fmt.Printf("Config: %s\n", path)
	fmt.Println("Run 'winmon status' to check on it.")
	fmt.Println("======================")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	pm := infra.NewProcessManager()
	statusFile := infra.NewStatusFile()

	fmt.Println("\n=== winmon Status ===")

	status, err := statusFile.Read()
	if err != nil || status == nil || !pm.IsRunning(status.PID) {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'winmon start' to enable monitoring.")
		return nil
	}

	fmt.Println("Status: RUNNING")
	if status.DryRun {
		fmt.Println("Mode: dry run (terminations are only logged)")
	} else {
		fmt.Println("Mode: enforcing")
	}
	fmt.Printf("PID: %d\n", status.PID)
	fmt.Printf("Session: %s\n", status.SessionID)
	if status.Display != "" {
		fmt.Printf("Display: %s\n", status.Display)
	}
	fmt.Printf("Started: %s\n", status.StartedAt.Local().Format(time.RFC1123))
	fmt.Printf("Last heartbeat: %s ago\n", time.Since(status.LastPoll).Round(time.Second))
	if !status.LastSweep.IsZero() {
		fmt.Printf("Last sweep: %s ago\n", time.Since(status.LastSweep).Round(time.Second))
	}
	fmt.Printf("Rules: %d\n", status.Rules)
	fmt.Printf("Tracked windows: %d\n", status.TrackedKeys)
	fmt.Println("=====================")
	return nil
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	table := policy.Compile(cfg.Rules)

	fmt.Println("\n=== Window Rules ===")
	if table.Len() == 0 {
		fmt.Println("No rules configured.")
	}
	for _, p := range table.Patterns() {
		timeout, _ := table.Timeout(p.Key)
		fmt.Printf("  %-30q %-8s %s\n", p.Key, p.Kind, formatTimeout(timeout))
	}
	fmt.Println("====================")
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	table := policy.Compile(cfg.Rules)

	var fullName *string
	if cmd.Flags().Changed("name") {
		fullName = &windowName
	}

	match, err := table.Classify(fullName, windowClass)
	if err != nil {
		return err
	}
	if match == nil {
		fmt.Println("No rule matches; the window is tracked on its own and never terminated.")
		return nil
	}
	timeout, _ := table.Timeout(match.Key)
	fmt.Printf("Rule: %q (%s)\nTimeout: %s\n", match.Key, match.Kind, formatTimeout(timeout))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	history, err := infra.OpenHistory(resolveDataDir(cfg))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer history.Close()

	events, err := history.Recent(historyLimit)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Recent Terminations ===")
	if len(events) == 0 {
		fmt.Println("None recorded.")
	}
	for _, ev := range events {
		fmt.Printf("%s  %-10s %-20q pid=%d (%s) %ds > %s\n",
			ev.At.Local().Format("2006-01-02 15:04:05"), ev.Outcome, ev.Rule,
			ev.PID, ev.ProcessName, ev.Duration, formatTimeout(ev.Timeout))
	}
	fmt.Println("===========================")
	return nil
}

func formatTimeout(t domain.Timeout) string {
	if t == domain.Unlimited {
		return "unlimited"
	}
	return (time.Duration(t) * time.Second).String()
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("winmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
