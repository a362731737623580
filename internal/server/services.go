package server

import (
	"context"

	"github.com/thrane20/dillinger/internal/docker"
	"github.com/thrane20/dillinger/internal/engine"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/lutris"
	"github.com/thrane20/dillinger/internal/store"
	"github.com/thrane20/dillinger/internal/volumes"
)

// GameService isolates game and platform operations from HTTP handlers.
type GameService interface {
	CreateGame(ctx context.Context, title, platformID string) (*games.Game, error)
	GetGame(ctx context.Context, id string) (*games.Game, error)
	ListGames(ctx context.Context) ([]*games.Game, error)
	DeleteGame(ctx context.Context, id string) error
	SelectPlatform(ctx context.Context, gameID string, current *games.Draft, platformID string) (*games.Draft, error)
	AddPlatform(ctx context.Context, gameID string, current *games.Draft, platformID string) (*games.Draft, error)
	RemovePlatform(ctx context.Context, gameID, platformID string) (*games.Game, error)
	CommitDraft(ctx context.Context, gameID string, d *games.Draft) (*games.Game, error)
	SetDefaultPlatform(ctx context.Context, gameID, platformID string) (*games.Game, error)
	AttachLutrisInstallers(ctx context.Context, gameID, platformID string, installers []lutris.Installer) (*games.Game, error)
	SelectLutrisInstaller(ctx context.Context, gameID, platformID, installerID string) (*games.Game, error)
}

// InstallService isolates the installation lifecycle from HTTP handlers.
type InstallService interface {
	Get(ctx context.Context, gameID, platformID string) (*games.InstallationRecord, error)
	Start(ctx context.Context, req engine.StartRequest) (*games.InstallationRecord, error)
	Poll(ctx context.Context, gameID, platformID string) (*games.InstallationRecord, error)
	Cancel(ctx context.Context, gameID, platformID string) (*games.InstallationRecord, error)
	Reset(ctx context.Context, gameID, platformID string) (*games.InstallationRecord, error)
	Logs(ctx context.Context, gameID, platformID string, afterID int) ([]*store.LogEntry, int, error)
}

// VolumeService isolates the volume registry from HTTP handlers.
type VolumeService interface {
	Create(ctx context.Context, req volumes.CreateRequest) (*volumes.Volume, error)
	List(ctx context.Context) ([]volumes.Volume, error)
	Get(ctx context.Context, id string) (*volumes.Volume, error)
	Remove(ctx context.Context, id string) error
	ReassignPurpose(ctx context.Context, id string, purpose volumes.Purpose) (*volumes.Volume, error)
	SetStorageType(ctx context.Context, id string, st volumes.StorageType) (*volumes.Volume, error)
	Discover(ctx context.Context) ([]volumes.Unmanaged, error)
	ResolveDefault(ctx context.Context, purpose volumes.Purpose) (*volumes.Volume, error)
	Defaults(ctx context.Context) (*volumes.Defaults, error)
	Usage(ctx context.Context, id string) (*volumes.Usage, error)
}

// DockerHealth reports daemon health for /api/health.
type DockerHealth interface {
	Info(ctx context.Context) (*docker.Info, error)
}

// InstallerLister lists installer containers for /api/health.
type InstallerLister interface {
	Installers(ctx context.Context) ([]docker.ContainerSummary, error)
}

// DBPinger checks the database for /api/health.
type DBPinger interface {
	Ping(ctx context.Context) error
}

var (
	_ GameService     = (*games.Service)(nil)
	_ InstallService  = (*engine.Engine)(nil)
	_ VolumeService   = (*volumes.Registry)(nil)
	_ DockerHealth    = (*docker.Client)(nil)
	_ InstallerLister = (*docker.Runner)(nil)
	_ DBPinger        = (*store.Store)(nil)
)
