package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/engine"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/store"
	"github.com/thrane20/dillinger/internal/ui"
)

var installStart struct {
	installer string
	target    string
	args      []string
	env       []string
	arch      string
	wineVer   string
	watch     bool
}

var installLogsAfter int

func init() {
	f := installStartCmd.Flags()
	f.StringVar(&installStart.installer, "installer", "", "installer executable or archive on the host (required)")
	f.StringVar(&installStart.target, "install-path", "", "install directory (default: <installed volume>/<game-id>)")
	f.StringSliceVar(&installStart.args, "arg", nil, "installer argument (repeatable)")
	f.StringSliceVar(&installStart.env, "env", nil, "installer environment KEY=VALUE (repeatable)")
	f.StringVar(&installStart.arch, "wine-arch", "", "override the wine architecture")
	f.StringVar(&installStart.wineVer, "wine-version", "", "override the wine version")
	f.BoolVar(&installStart.watch, "watch", false, "follow the installation until it finishes")
	installStartCmd.MarkFlagRequired("installer")

	installLogsCmd.Flags().IntVar(&installLogsAfter, "after", 0, "only show lines after this log id")

	installCmd.AddCommand(installStartCmd, installPollCmd, installCancelCmd, installResetCmd,
		installStatusCmd, installLogsCmd, installWatchCmd)
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run and track game installations",
}

var installStartCmd = &cobra.Command{
	Use:   "start <game-id> <platform>",
	Short: "Launch the installer for a platform",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := parseEnv(installStart.env)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			rec, err := a.engine.Start(ctx, engine.StartRequest{
				GameID:        args[0],
				PlatformID:    args[1],
				InstallerPath: installStart.installer,
				InstallPath:   installStart.target,
				Args:          installStart.args,
				Env:           env,
				WineArch:      installStart.arch,
				WineVersionID: installStart.wineVer,
			})
			if err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Installing into " + ui.White.Render(rec.InstallPath) + " " + ui.Dim.Render(rec.ContainerID))
			if !installStart.watch {
				return nil
			}
			return watchInstall(ctx, a, args[0], args[1], 0)
		})
	},
}

var installPollCmd = &cobra.Command{
	Use:   "poll <game-id> <platform>",
	Short: "Reconcile an installation with its installer container",
	Args:  cobra.ExactArgs(2),
	RunE: recordCmd(func(ctx context.Context, a *app, gameID, platformID string) (*games.InstallationRecord, error) {
		return a.engine.Poll(ctx, gameID, platformID)
	}),
}

var installCancelCmd = &cobra.Command{
	Use:   "cancel <game-id> <platform>",
	Short: "Stop a running installation",
	Args:  cobra.ExactArgs(2),
	RunE: recordCmd(func(ctx context.Context, a *app, gameID, platformID string) (*games.InstallationRecord, error) {
		return a.engine.Cancel(ctx, gameID, platformID)
	}),
}

var installResetCmd = &cobra.Command{
	Use:   "reset <game-id> <platform>",
	Short: "Clear an installed or failed installation",
	Args:  cobra.ExactArgs(2),
	RunE: recordCmd(func(ctx context.Context, a *app, gameID, platformID string) (*games.InstallationRecord, error) {
		return a.engine.Reset(ctx, gameID, platformID)
	}),
}

var installStatusCmd = &cobra.Command{
	Use:   "status <game-id> <platform>",
	Short: "Show the stored installation record",
	Args:  cobra.ExactArgs(2),
	RunE: recordCmd(func(ctx context.Context, a *app, gameID, platformID string) (*games.InstallationRecord, error) {
		return a.engine.Get(ctx, gameID, platformID)
	}),
}

var installLogsCmd = &cobra.Command{
	Use:   "logs <game-id> <platform>",
	Short: "Print installation log lines",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if installLogsAfter < 0 {
			return fmt.Errorf("--after must not be negative")
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			entries, _, err := a.engine.Logs(ctx, args[0], args[1], installLogsAfter)
			if err != nil {
				return err
			}
			printLogs(entries)
			return nil
		})
	},
}

var installWatchCmd = &cobra.Command{
	Use:   "watch <game-id> <platform>",
	Short: "Poll an installation and follow its log until it finishes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return watchInstall(ctx, a, args[0], args[1], 0)
		})
	},
}

func recordCmd(fn func(ctx context.Context, a *app, gameID, platformID string) (*games.InstallationRecord, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			rec, err := fn(ctx, a, args[0], args[1])
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		})
	}
}

func printRecord(rec *games.InstallationRecord) {
	fmt.Println(ui.Field("  Status:     ", ui.Status(string(rec.Status))))
	if rec.ContainerID != "" {
		fmt.Println(ui.Field("  Container:  ", rec.ContainerID))
	}
	if rec.InstallerPath != "" {
		fmt.Println(ui.Field("  Installer:  ", rec.InstallerPath))
	}
	if rec.InstallPath != "" {
		fmt.Println(ui.Field("  Install to: ", rec.InstallPath))
	}
	if rec.DownloadCachePath != "" {
		fmt.Println(ui.Field("  Cache:      ", rec.DownloadCachePath))
	}
	if rec.Error != "" {
		fmt.Println(ui.Field("  Error:      ", ui.Red.Render(rec.Error)))
	}
}

func printLogs(entries []*store.LogEntry) {
	for _, e := range entries {
		line := fmt.Sprintf("%s %-5s %s", e.Timestamp.Local().Format("15:04:05"), e.Level, e.Message)
		switch e.Level {
		case "error":
			fmt.Println(ui.Red.Render(line))
		case "warn":
			fmt.Println(ui.Yellow.Render(line))
		default:
			fmt.Println(line)
		}
	}
}

// watchInstall polls until the installation leaves installing, printing new
// log lines as they arrive.
func watchInstall(ctx context.Context, a *app, gameID, platformID string, cursor int) error {
	ticker := time.NewTicker(a.cfg.PollInterval())
	defer ticker.Stop()
	for {
		rec, err := a.engine.Poll(ctx, gameID, platformID)
		if err != nil {
			return err
		}
		entries, next, err := a.engine.Logs(ctx, gameID, platformID, cursor)
		if err != nil {
			return err
		}
		printLogs(entries)
		cursor = next
		if rec.Status != games.StatusInstalling {
			fmt.Println()
			printRecord(rec)
			if rec.Status == games.StatusFailed {
				return fmt.Errorf("installation failed")
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
