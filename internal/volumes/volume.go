// Package volumes tracks storage volumes and which of them holds each
// storage purpose (installers, downloads, installed games, ROMs).
package volumes

import (
	"context"
	"time"
)

// Purpose is the logical storage role of a volume.
type Purpose string

const (
	PurposeInstallers Purpose = "installers"
	PurposeDownloads  Purpose = "downloads"
	PurposeInstalled  Purpose = "installed"
	PurposeROMs       Purpose = "roms"
	PurposeOther      Purpose = "other"
)

// Purposes lists the exclusive purposes, each held by at most one volume.
var Purposes = []Purpose{PurposeInstallers, PurposeDownloads, PurposeInstalled, PurposeROMs}

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeOther || p.Exclusive()
}

// Exclusive reports whether at most one volume may hold p.
func (p Purpose) Exclusive() bool {
	for _, x := range Purposes {
		if p == x {
			return true
		}
	}
	return false
}

// Type is how a volume reaches its host path.
type Type string

const (
	TypeDocker Type = "docker"
	TypeBind   Type = "bind"
)

func (t Type) Valid() bool { return t == TypeDocker || t == TypeBind }

// StorageType is informational metadata about the backing disk.
type StorageType string

const (
	StorageSSD     StorageType = "ssd"
	StoragePlatter StorageType = "platter"
	StorageArchive StorageType = "archive"
)

func (s StorageType) Valid() bool {
	switch s {
	case "", StorageSSD, StoragePlatter, StorageArchive:
		return true
	}
	return false
}

// Volume is a tracked storage volume. Handle identifies the underlying
// storage: the docker volume name, or the cleaned host path for binds.
type Volume struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	HostPath    string      `json:"host_path"`
	Type        Type        `json:"type"`
	Purpose     Purpose     `json:"purpose"`
	StorageType StorageType `json:"storage_type,omitempty"`
	Handle      string      `json:"handle"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Unmanaged is a host volume that is not tracked. It is never persisted;
// creating a volume with its Handle adopts it.
type Unmanaged struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	HostPath string  `json:"host_path"`
	Driver   string  `json:"driver"`
	Handle   string  `json:"handle"`
	Purpose  Purpose `json:"purpose"`
}

// HostVolume is a volume as reported by the storage host.
type HostVolume struct {
	Name       string            `json:"name"`
	Driver     string            `json:"driver"`
	Mountpoint string            `json:"mountpoint"`
	Device     string            `json:"device,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// Path returns the host directory backing the volume: the bind device when
// set, else the driver mountpoint.
func (h HostVolume) Path() string {
	if h.Device != "" {
		return h.Device
	}
	return h.Mountpoint
}

// Defaults maps each assigned purpose to its holder and carries
// per-volume metadata.
type Defaults struct {
	Purposes map[Purpose]string     `json:"purposes"`
	Metadata map[string]VolumeMeta `json:"metadata"`
}

type VolumeMeta struct {
	StorageType StorageType `json:"storage_type,omitempty"`
}

// Repository persists the tracked set. UpdateVolumes runs fn on the
// current set inside one write transaction and stores the set fn returns;
// writers in other processes sharing the database are serialized, so fn
// never works on a stale copy. An error from fn aborts the transaction
// and is returned unchanged.
type Repository interface {
	LoadVolumes(ctx context.Context) ([]Volume, error)
	UpdateVolumes(ctx context.Context, fn func(vols []Volume) ([]Volume, error)) error
}

// Host manages the underlying docker volumes.
type Host interface {
	CreateVolume(ctx context.Context, name, hostPath string, labels map[string]string) error
	RemoveVolume(ctx context.Context, name string) error
	ListVolumes(ctx context.Context) ([]HostVolume, error)
}
