package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/engine"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/ui"
)

var platformSet struct {
	filePath   string
	command    string
	args       []string
	env        []string
	workingDir string
	wineArch   string
	wineVer    string
	winetricks []string
	overlay    bool
}

func init() {
	f := platformSetCmd.Flags()
	f.StringVar(&platformSet.filePath, "file-path", "", "ROM or game file for file-based platforms")
	f.StringVar(&platformSet.command, "launch-command", "", "command that starts the game")
	f.StringSliceVar(&platformSet.args, "arg", nil, "launch argument (repeatable)")
	f.StringSliceVar(&platformSet.env, "env", nil, "launch environment KEY=VALUE (repeatable)")
	f.StringVar(&platformSet.workingDir, "working-dir", "", "launch working directory")
	f.StringVar(&platformSet.wineArch, "wine-arch", "", "wine architecture (win32 or win64)")
	f.StringVar(&platformSet.wineVer, "wine-version", "", "wine version id")
	f.StringSliceVar(&platformSet.winetricks, "winetricks", nil, "winetricks verb (repeatable)")
	f.BoolVar(&platformSet.overlay, "overlay", false, "enable the performance overlay")

	platformCmd.AddCommand(platformAddCmd, platformSelectCmd, platformRemoveCmd, platformSetCmd, platformDefaultCmd)
	rootCmd.AddCommand(platformCmd)
}

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Manage a game's platform configurations",
}

var platformAddCmd = &cobra.Command{
	Use:   "add <game-id> <platform>",
	Short: "Add a platform with default settings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if _, err := a.games.AddPlatform(ctx, args[0], nil, args[1]); err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Added " + ui.White.Render(args[1]))
			return nil
		})
	},
}

var platformSelectCmd = &cobra.Command{
	Use:   "select <game-id> <platform>",
	Short: "Print the draft for a platform (stored config or defaults)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			d, err := a.games.SelectPlatform(ctx, args[0], nil, args[1])
			if err != nil {
				return err
			}
			return printJSON(d)
		})
	},
}

var platformRemoveCmd = &cobra.Command{
	Use:   "remove <game-id> <platform>",
	Short: "Remove a platform from a game",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			g, err := a.games.RemovePlatform(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Removed " + ui.White.Render(args[1]) + ui.Dim.Render(", default is now "+orDash(g.DefaultPlatformID)))
			return nil
		})
	},
}

var platformSetCmd = &cobra.Command{
	Use:   "set <game-id> <platform>",
	Short: "Edit and commit a platform configuration",
	Long:  "Loads the platform's draft, applies the given flags and commits it. An unconfigured platform is added.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			d, err := a.games.SelectPlatform(ctx, args[0], nil, args[1])
			if err != nil {
				return err
			}
			if d.Settings == nil {
				def := games.DefaultSettings(args[1])
				d.Settings = &def
			}
			flags := cmd.Flags()
			s := d.Settings
			if flags.Changed("file-path") {
				d.FilePath = &platformSet.filePath
			}
			if flags.Changed("launch-command") {
				s.Launch.Command = platformSet.command
			}
			if flags.Changed("arg") {
				s.Launch.Args = platformSet.args
			}
			if flags.Changed("env") {
				env, err := parseEnv(platformSet.env)
				if err != nil {
					return err
				}
				s.Launch.Env = env
			}
			if flags.Changed("working-dir") {
				s.Launch.WorkingDir = platformSet.workingDir
			}
			if flags.Changed("wine-arch") {
				s.Wine.Arch = platformSet.wineArch
			}
			if flags.Changed("wine-version") {
				s.Wine.VersionID = platformSet.wineVer
			}
			if flags.Changed("winetricks") {
				s.Wine.WinetricksVerbs = platformSet.winetricks
			}
			if flags.Changed("overlay") {
				s.Overlay = platformSet.overlay
			}
			if _, err := a.games.CommitDraft(ctx, args[0], d); err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Saved " + ui.White.Render(args[1]))
			return nil
		})
	},
}

var platformDefaultCmd = &cobra.Command{
	Use:   "default <game-id> <platform>",
	Short: "Set a game's default platform",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if _, err := a.games.SetDefaultPlatform(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Default platform is now " + ui.White.Render(args[1]))
			return nil
		})
	},
}

// parseEnv turns KEY=VALUE pairs into a map, rejecting reserved keys.
func parseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env %q, want KEY=VALUE", p)
		}
		env[k] = v
	}
	if err := engine.ValidateEnvVars(env); err != nil {
		return nil, err
	}
	return env, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
