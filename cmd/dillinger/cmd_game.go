package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/ui"
)

var (
	gameCreatePlatform string
	gameShowJSON       bool
)

func init() {
	gameCreateCmd.Flags().StringVar(&gameCreatePlatform, "platform", "", "first platform to configure (e.g. windows-wine)")
	gameShowCmd.Flags().BoolVar(&gameShowJSON, "json", false, "print the full record as JSON")
	gameCmd.AddCommand(gameCreateCmd, gameListCmd, gameShowCmd, gameRemoveCmd)
	rootCmd.AddCommand(gameCmd)
}

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Manage catalogued games",
}

var gameCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Catalogue a new game",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			g, err := a.games.CreateGame(ctx, strings.Join(args, " "), gameCreatePlatform)
			if err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Created " + ui.White.Render(g.Title) + " " + ui.Dim.Render(g.ID))
			return nil
		})
	},
}

var gameListCmd = &cobra.Command{
	Use:   "list",
	Short: "List games",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			list, err := a.games.ListGames(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println(ui.Dim.Render("No games yet. Add one with: dillinger game create <title>"))
				return nil
			}
			for _, g := range list {
				var plats []string
				for _, pc := range g.Platforms {
					plats = append(plats, pc.PlatformID+"="+ui.Status(string(pc.InstallationOf().Status)))
				}
				fmt.Printf("%s  %s  %s\n", ui.Dim.Render(g.ID), ui.White.Render(g.Title), strings.Join(plats, " "))
			}
			return nil
		})
	},
}

var gameShowCmd = &cobra.Command{
	Use:   "show <game-id>",
	Short: "Show a game and its platform configs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			g, err := a.games.GetGame(ctx, args[0])
			if err != nil {
				return err
			}
			if gameShowJSON {
				return printJSON(g)
			}
			printGame(g)
			return nil
		})
	},
}

var gameRemoveCmd = &cobra.Command{
	Use:   "remove <game-id>",
	Short: "Remove a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.games.DeleteGame(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Removed " + ui.White.Render(args[0]))
			return nil
		})
	},
}

func printGame(g *games.Game) {
	fmt.Println(ui.Cyan.Render(g.Title) + " " + ui.Dim.Render(g.ID))
	fmt.Println(ui.Field("  Default:   ", g.DefaultPlatformID))
	for _, pc := range g.Platforms {
		rec := pc.InstallationOf()
		fmt.Println()
		fmt.Println(ui.White.Render("  " + games.LookupPlatform(pc.PlatformID).Name + " (" + pc.PlatformID + ")"))
		fmt.Println(ui.Field("    Status:    ", "") + ui.Status(string(rec.Status)))
		if pc.FilePath != "" {
			fmt.Println(ui.Field("    File:      ", pc.FilePath))
		}
		if rec.InstallPath != "" {
			fmt.Println(ui.Field("    Installed: ", rec.InstallPath))
		}
		if rec.Error != "" {
			fmt.Println(ui.Field("    Error:     ", "") + ui.Red.Render(rec.Error))
		}
		if pc.Settings.Launch.Command != "" {
			fmt.Println(ui.Field("    Launch:    ", pc.Settings.Launch.Command))
		}
		if w := pc.Settings.Wine; w.Arch != "" || w.VersionID != "" {
			fmt.Println(ui.Field("    Wine:      ", strings.TrimSpace(w.Arch+" "+w.VersionID)))
		}
		if len(pc.LutrisInstallers) > 0 {
			sel := pc.SelectedLutrisInstallerID
			if sel == "" {
				sel = "none selected"
			}
			fmt.Println(ui.Field("    Lutris:    ", fmt.Sprintf("%d attached, %s", len(pc.LutrisInstallers), sel)))
		}
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
