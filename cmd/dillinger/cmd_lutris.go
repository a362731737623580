package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/lutris"
	"github.com/thrane20/dillinger/internal/setup"
	"github.com/thrane20/dillinger/internal/ui"
)

func init() {
	lutrisCmd.AddCommand(lutrisAttachCmd, lutrisSelectCmd, lutrisShowCmd)
	rootCmd.AddCommand(lutrisCmd)
}

var lutrisCmd = &cobra.Command{
	Use:   "lutris",
	Short: "Attach and select Lutris installer scripts",
}

var lutrisAttachCmd = &cobra.Command{
	Use:   "attach <game-id> <platform> <script.yml>...",
	Short: "Replace a platform's Lutris installers with the given scripts",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var installers []lutris.Installer
		for _, path := range args[2:] {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			inst, err := lutris.ParseInstaller(data, id)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			installers = append(installers, *inst)
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if _, err := a.games.AttachLutrisInstallers(ctx, args[0], args[1], installers); err != nil {
				return err
			}
			fmt.Printf("%s Attached %d installer(s)\n", ui.Check(), len(installers))
			return nil
		})
	},
}

var lutrisSelectCmd = &cobra.Command{
	Use:   "select <game-id> <platform> [installer-id]",
	Short: "Select the Lutris installer to use (prompts when omitted)",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			pc, err := platformOf(ctx, a, args[0], args[1])
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 3 {
				id = args[2]
			} else if id, err = setup.SelectInstaller(pc.LutrisInstallers); err != nil {
				return err
			}
			g, err := a.games.SelectLutrisInstaller(ctx, args[0], args[1], id)
			if err != nil {
				return err
			}
			w := g.Platform(args[1]).Settings.Wine
			fmt.Println(ui.Check() + " Selected " + ui.White.Render(id))
			fmt.Println(ui.Field("  Arch:       ", orDash(w.Arch)))
			fmt.Println(ui.Field("  Winetricks: ", orDash(strings.Join(w.WinetricksVerbs, " "))))
			fmt.Println(ui.Field("  Overrides:  ", orDash(strings.Join(w.DLLOverrides, ","))))
			return nil
		})
	},
}

var lutrisShowCmd = &cobra.Command{
	Use:   "show <game-id> <platform>",
	Short: "List the attached Lutris installers",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			pc, err := platformOf(ctx, a, args[0], args[1])
			if err != nil {
				return err
			}
			if len(pc.LutrisInstallers) == 0 {
				fmt.Println(ui.Dim.Render("No installers attached."))
				return nil
			}
			for _, inst := range pc.LutrisInstallers {
				mark := "  "
				if inst.ID == pc.SelectedLutrisInstallerID {
					mark = ui.Check() + " "
				}
				f := lutris.FragmentOf(&inst.Script)
				fmt.Printf("%s%s  %s %s\n", mark, ui.White.Render(inst.ID), inst.Slug, ui.Dim.Render(inst.Version))
				fmt.Println(ui.Dim.Render(fmt.Sprintf("      arch=%s winetricks=%s", orDash(f.Arch), orDash(strings.Join(f.WinetricksVerbs, " ")))))
			}
			return nil
		})
	},
}

func platformOf(ctx context.Context, a *app, gameID, platformID string) (*games.PlatformConfig, error) {
	g, err := a.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	pc := g.Platform(platformID)
	if pc == nil {
		return nil, errs.NotFound("platform %s is not configured for %s", platformID, gameID)
	}
	return pc, nil
}
