package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/config"
	"github.com/thrane20/dillinger/internal/docker"
	"github.com/thrane20/dillinger/internal/engine"
	"github.com/thrane20/dillinger/internal/events"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/logging"
	"github.com/thrane20/dillinger/internal/scanner"
	"github.com/thrane20/dillinger/internal/store"
	"github.com/thrane20/dillinger/internal/volumes"
)

// app is the wired service graph shared by serve and the CLI commands.
// The CLI opens the same database and docker socket as the service.
type app struct {
	cfg     *config.Config
	store   *store.Store
	docker  *docker.Client
	runner  *docker.Runner
	games   *games.Service
	volumes *volumes.Registry
	engine  *engine.Engine
	hub     *events.Hub

	closers []io.Closer
	nats    *events.NATSPublisher
}

type appOptions struct {
	// logToFile sends the standard logger to the configured log file.
	logToFile bool
	// events connects the NATS publisher when one is configured.
	events bool
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no config at %s, run 'dillinger init' first", configPath)
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openApp(opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	if opts.logToFile {
		c, err := logging.Setup(cfg.Log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c)
	} else {
		log.SetOutput(io.Discard)
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		a.Close()
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	a.store, err = store.Open(cfg.DBPath())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.closers = append(a.closers, a.store)

	a.docker, err = docker.NewClient(docker.ClientConfig{Socket: cfg.Docker.Socket, Timeout: 30 * time.Second})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = docker.NewRunner(a.docker, docker.RunnerConfig{
		Image:   cfg.Docker.WineImage,
		Network: cfg.Docker.Network,
		GPU:     cfg.Docker.GPU,
		Scan:    scanner.Scan,
	})

	var pub events.Publisher
	if opts.events && cfg.Events.NATSURL != "" {
		a.nats, err = events.ConnectNATS(cfg.Events.NATSURL)
		if err != nil {
			log.Printf("[events] %v, continuing without NATS", err)
		} else {
			pub = a.nats
		}
	}
	a.hub = events.NewHub(pub, cfg.Events.Subject)

	games.DefaultArch = cfg.Installer.DefaultArch
	locks := &games.Locks{}
	a.games = games.NewService(a.store, locks)
	a.games.RequireOne = cfg.Installer.RequirePlatform
	a.volumes = volumes.NewRegistry(a.store, a.docker)
	a.engine = engine.New(engine.Options{
		Games:    a.store,
		Locks:    locks,
		Runner:   a.runner,
		Scanner:  engine.ScannerFunc(scanner.Scan),
		Logs:     a.store,
		Volumes:  a.volumes,
		Notifier: a.hub,
	})
	return a, nil
}

// Close releases everything openApp acquired, newest first.
func (a *app) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

// withApp opens the app for one CLI command.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
