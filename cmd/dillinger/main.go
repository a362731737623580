package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/config"
	"github.com/thrane20/dillinger/internal/ui"
	"github.com/thrane20/dillinger/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "dillinger",
	Short:         "Dillinger game library and installer service",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Long = ui.Green.Render("Dillinger") + " " + ui.Cyan.Render(version.Version) + "\n" +
		ui.Dim.Render("Catalogues games per platform and runs their installers in Wine containers.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath(), "path to config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Cross()+" "+err.Error())
		os.Exit(1)
	}
}
