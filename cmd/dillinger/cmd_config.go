package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/ui"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View the Dillinger configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		orNone := func(s string) string {
			if s == "" {
				return "(none)"
			}
			return s
		}

		fmt.Println(ui.Cyan.Render("Data dir: ") + ui.White.Render(cfg.DataDir))
		fmt.Println(ui.Cyan.Render("Database: ") + ui.White.Render(cfg.DBPath()))
		fmt.Println(ui.Cyan.Render("Log file: ") + ui.White.Render(orNone(cfg.Log.File)))
		fmt.Println()
		fmt.Println(ui.Cyan.Render("Service:"))
		fmt.Println(ui.Field("  Listen:    ", cfg.ListenAddr()))
		fmt.Println(ui.Field("  Auth:      ", cfg.Auth.Mode))
		fmt.Println(ui.Field("  Metrics:   ", strconv.FormatBool(cfg.Metrics.Enabled)))
		fmt.Println()
		fmt.Println(ui.Cyan.Render("Docker:"))
		fmt.Println(ui.Field("  Socket:    ", cfg.Docker.Socket))
		fmt.Println(ui.Field("  Image:     ", cfg.Docker.WineImage))
		fmt.Println(ui.Field("  Network:   ", orNone(cfg.Docker.Network)))
		fmt.Println(ui.Field("  GPU:       ", strconv.FormatBool(cfg.Docker.GPU)))
		fmt.Println()
		fmt.Println(ui.Cyan.Render("Installer:"))
		fmt.Println(ui.Field("  Poll:      ", cfg.PollInterval().String()))
		fmt.Println(ui.Field("  Arch:      ", cfg.Installer.DefaultArch))
		fmt.Println(ui.Field("  Require 1: ", strconv.FormatBool(cfg.Installer.RequirePlatform)))
		fmt.Println()
		fmt.Println(ui.Cyan.Render("Events:"))
		fmt.Println(ui.Field("  NATS:      ", orNone(cfg.Events.NATSURL)))
		fmt.Println(ui.Field("  Subject:   ", cfg.Events.Subject))
		fmt.Println()
		fmt.Println(ui.Dim.Render("Config file: " + configPath))
		return nil
	},
}
