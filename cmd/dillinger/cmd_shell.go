package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/docker"
	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
)

var shellPath string

func init() {
	shellCmd.Flags().StringVar(&shellPath, "shell", "/bin/bash", "shell to run in the installer container")
	rootCmd.AddCommand(shellCmd)
}

var shellCmd = &cobra.Command{
	Use:   "shell <game-id> <platform>",
	Short: "Open a shell in a running installer container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			rec, err := a.engine.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if rec.Status != games.StatusInstalling || rec.ContainerID == "" {
				return errs.InvalidRequest("%s/%s has no running installer (%s)", args[0], args[1], rec.Status)
			}
			c := docker.ShellCmd(rec.ContainerID, shellPath)
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("shell in %s: %w", rec.ContainerID, err)
			}
			return nil
		})
	},
}
