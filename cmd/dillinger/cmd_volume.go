package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/setup"
	"github.com/thrane20/dillinger/internal/ui"
	"github.com/thrane20/dillinger/internal/volumes"
)

var volumeCreate struct {
	typ     string
	purpose string
	storage string
}

var (
	volumeListAll   bool
	volumeImportAs  string
	volumeRemoveYes bool
)

func init() {
	f := volumeCreateCmd.Flags()
	f.StringVar(&volumeCreate.typ, "type", string(volumes.TypeDocker), "volume type (docker or bind)")
	f.StringVar(&volumeCreate.purpose, "purpose", string(volumes.PurposeOther), "storage purpose")
	f.StringVar(&volumeCreate.storage, "storage-type", "", "backing disk (ssd, platter, archive)")
	volumeListCmd.Flags().BoolVar(&volumeListAll, "all", false, "include untracked docker volumes")
	volumeImportCmd.Flags().StringVar(&volumeImportAs, "purpose", string(volumes.PurposeOther), "storage purpose for the imported volume")
	volumeRemoveCmd.Flags().BoolVarP(&volumeRemoveYes, "yes", "y", false, "do not ask for confirmation")

	volumeCmd.AddCommand(volumeCreateCmd, volumeListCmd, volumeReassignCmd, volumeImportCmd,
		volumeRemoveCmd, volumeDefaultsCmd, volumeStorageTypeCmd)
	rootCmd.AddCommand(volumeCmd)
}

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Manage storage volumes and their purposes",
}

var volumeCreateCmd = &cobra.Command{
	Use:   "create <name> <host-path>",
	Short: "Track a new volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			v, err := a.volumes.Create(ctx, volumes.CreateRequest{
				Name:        args[0],
				HostPath:    args[1],
				Type:        volumes.Type(volumeCreate.typ),
				Purpose:     volumes.Purpose(volumeCreate.purpose),
				StorageType: volumes.StorageType(volumeCreate.storage),
			})
			if err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Created " + ui.White.Render(v.Name) + " " + ui.Dim.Render(v.ID))
			return nil
		})
	},
}

var volumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked volumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			vols, err := a.volumes.List(ctx)
			if err != nil {
				return err
			}
			for _, v := range vols {
				fmt.Printf("%s  %-20s %-10s %-6s %s %s\n", ui.Dim.Render(v.ID), ui.White.Render(v.Name),
					v.Purpose, v.Type, v.HostPath, ui.Dim.Render(string(v.StorageType)))
			}
			if !volumeListAll {
				if len(vols) == 0 {
					fmt.Println(ui.Dim.Render("No volumes tracked."))
				}
				return nil
			}
			unmanaged, err := a.volumes.Discover(ctx)
			if err != nil {
				return err
			}
			for _, u := range unmanaged {
				fmt.Printf("%s  %-20s %s %s\n", ui.Dim.Render("untracked"), u.Name, u.Driver, u.HostPath)
			}
			return nil
		})
	},
}

var volumeReassignCmd = &cobra.Command{
	Use:   "reassign <volume-id> <purpose>",
	Short: "Move a storage purpose to a volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			v, err := a.volumes.ReassignPurpose(ctx, args[0], volumes.Purpose(args[1]))
			if err != nil {
				return err
			}
			fmt.Println(ui.Check() + " " + ui.White.Render(v.Name) + " now holds " + string(v.Purpose))
			return nil
		})
	},
}

var volumeImportCmd = &cobra.Command{
	Use:   "import <docker-volume>",
	Short: "Start tracking an existing docker volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			unmanaged, err := a.volumes.Discover(ctx)
			if err != nil {
				return err
			}
			name := strings.TrimPrefix(args[0], volumes.UnmanagedPrefix)
			for _, u := range unmanaged {
				if u.Handle != name {
					continue
				}
				v, err := a.volumes.Create(ctx, volumes.CreateRequest{
					Name:     u.Name,
					HostPath: u.HostPath,
					Type:     volumes.TypeDocker,
					Purpose:  volumes.Purpose(volumeImportAs),
					Handle:   u.Handle,
				})
				if err != nil {
					return err
				}
				fmt.Println(ui.Check() + " Imported " + ui.White.Render(v.Name) + " " + ui.Dim.Render(v.ID))
				return nil
			}
			return errs.NotFound("no untracked docker volume named %s", name)
		})
	},
}

var volumeRemoveCmd = &cobra.Command{
	Use:   "remove <volume-id>",
	Short: "Stop tracking a volume and delete its docker volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			v, err := a.volumes.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !volumeRemoveYes {
				ok, err := setup.Confirm("Remove volume "+v.Name+"?", "Files under "+v.HostPath+" are left in place.")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println(ui.Dim.Render("Aborted."))
					return nil
				}
			}
			if err := a.volumes.Remove(ctx, v.ID); err != nil {
				return err
			}
			fmt.Println(ui.Check() + " Removed " + ui.White.Render(v.Name))
			return nil
		})
	},
}

var volumeDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Show which volume holds each storage purpose",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			for _, p := range volumes.Purposes {
				v, err := a.volumes.ResolveDefault(ctx, p)
				if err != nil {
					return err
				}
				holder := ui.Dim.Render("unassigned")
				if v != nil {
					holder = v.Name + " " + ui.Dim.Render(v.HostPath)
				}
				fmt.Println(ui.Field(fmt.Sprintf("  %-11s", string(p)+":"), holder))
			}
			return nil
		})
	},
}

var volumeStorageTypeCmd = &cobra.Command{
	Use:   "storage-type <volume-id> <ssd|platter|archive>",
	Short: "Record the backing disk of a volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			v, err := a.volumes.SetStorageType(ctx, args[0], volumes.StorageType(args[1]))
			if err != nil {
				return err
			}
			fmt.Println(ui.Check() + " " + ui.White.Render(v.Name) + " is " + string(v.StorageType))
			return nil
		})
	},
}
