package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/docker"
	"github.com/thrane20/dillinger/internal/metrics"
	"github.com/thrane20/dillinger/internal/server"
	"github.com/thrane20/dillinger/internal/version"
)

func getPrimaryIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Dillinger service",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(appOptions{logToFile: true, events: true})
		if err != nil {
			return err
		}
		defer a.Close()
		cfg := a.cfg
		ctx := cmd.Context()

		fmt.Printf("Dillinger %s starting...\n", version.Version)
		fmt.Printf("  config:  %s\n", configPath)
		fmt.Printf("  db:      %s\n", cfg.DBPath())
		fmt.Printf("  listen:  %s\n", cfg.ListenAddr())
		fmt.Printf("  auth:    %s\n", cfg.Auth.Mode)

		pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
		if info, err := a.docker.Info(pingCtx); err != nil {
			fmt.Printf("  docker:  unreachable at %s (%v), installs will fail until it is up\n", cfg.Docker.Socket, err)
		} else {
			fmt.Printf("  docker:  %s at %s\n", info.ServerVersion, cfg.Docker.Socket)
		}
		cancelPing()
		fmt.Printf("  image:   %s\n", cfg.Docker.WineImage)
		if cfg.Docker.GPU {
			fmt.Printf("  gpu:     %d device(s)\n", len(docker.DetectGPUDevices()))
		}
		if a.nats != nil {
			fmt.Printf("  events:  nats %s (subject %s)\n", cfg.Events.NATSURL, cfg.Events.Subject)
		}
		if cfg.Metrics.Enabled {
			metrics.Register()
			fmt.Printf("  metrics: /metrics\n")
		}

		srv := server.New(cfg, server.Deps{
			Games:      a.games,
			Installs:   a.engine,
			Volumes:    a.volumes,
			Hub:        a.hub,
			Docker:     a.docker,
			Installers: a.runner,
			DB:         a.store,
		})

		// Installs that were running when the service stopped are picked up
		// by the first reconcile pass.
		reconcileCtx, stopReconcile := context.WithCancel(ctx)
		defer stopReconcile()
		go a.engine.RunReconciler(reconcileCtx, cfg.PollInterval())
		fmt.Printf("  poll:    every %s\n", cfg.PollInterval())

		errCh := make(chan error, 1)
		go func() {
			addr := srv.Addr()
			if strings.HasPrefix(addr, "0.0.0.0:") {
				if ip := getPrimaryIP(); ip != "" {
					fmt.Printf("\nListening on http://%s (http://%s)\n", addr, ip+addr[len("0.0.0.0"):])
				} else {
					fmt.Printf("\nListening on http://%s\n", addr)
				}
			} else {
				fmt.Printf("\nListening on http://%s\n", addr)
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			return err
		case <-ctx.Done():
		}
		fmt.Println("\nShutting down...")
		stopReconcile()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
