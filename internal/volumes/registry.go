package volumes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/metrics"
)

// UnmanagedPrefix marks the synthesized ids of unmanaged volumes.
const UnmanagedPrefix = "unmanaged:"

// Labels set on docker volumes the registry creates.
const (
	LabelManaged = "dillinger.managed"
	LabelPurpose = "dillinger.purpose"
)

// Registry owns the tracked volume set. Every mutation edits the set inside
// one repository transaction, so a purpose moves from one holder to
// another in a single persisted write even when several processes share
// the database.
type Registry struct {
	mu   sync.Mutex
	repo Repository
	host Host
}

// NewRegistry returns a Registry. host may be nil when docker volumes are
// not available; only bind volumes can be created then.
func NewRegistry(repo Repository, host Host) *Registry {
	return &Registry{repo: repo, host: host}
}

// CreateRequest describes a volume to create. Handle adopts an existing
// docker volume instead of creating one.
type CreateRequest struct {
	Name        string      `json:"name"`
	HostPath    string      `json:"host_path"`
	Type        Type        `json:"type,omitempty"`
	Purpose     Purpose     `json:"purpose,omitempty"`
	StorageType StorageType `json:"storage_type,omitempty"`
	Handle      string      `json:"handle,omitempty"`
}

var volumeNameRe = regexp.MustCompile(`[^a-z0-9_.-]+`)

// DockerVolumeName derives the docker volume name for a display name.
func DockerVolumeName(name string) string {
	slug := volumeNameRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-.")
	if slug == "" {
		slug = "volume"
	}
	return "dillinger_" + slug
}

func (r *Registry) load(ctx context.Context) ([]Volume, error) {
	vols, err := r.repo.LoadVolumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading volumes: %w", err)
	}
	return vols, nil
}

// update applies fn to the stored set in one repository transaction.
func (r *Registry) update(ctx context.Context, fn func(vols []Volume) ([]Volume, error)) error {
	err := r.repo.UpdateVolumes(ctx, fn)
	if err != nil && !errs.IsExpected(err) {
		return fmt.Errorf("saving volumes: %w", err)
	}
	return err
}

func indexOf(vols []Volume, id string) int {
	for i := range vols {
		if vols[i].ID == id {
			return i
		}
	}
	return -1
}

// claim gives purpose to vols[i], revoking it from any other holder.
func claim(vols []Volume, i int, purpose Purpose) {
	if purpose.Exclusive() {
		for j := range vols {
			if j != i && vols[j].Purpose == purpose {
				log.Printf("[volumes] revoking %s from %s (%s)", purpose, vols[j].Name, vols[j].ID)
				vols[j].Purpose = PurposeOther
			}
		}
	}
	if purpose.Exclusive() && vols[i].Purpose != purpose {
		metrics.VolumePurposeChanged()
	}
	vols[i].Purpose = purpose
}

func (req *CreateRequest) normalize() error {
	req.Name = strings.TrimSpace(req.Name)
	req.HostPath = strings.TrimSpace(req.HostPath)
	if req.Name == "" {
		return errs.InvalidRequest("volume name is required")
	}
	if req.HostPath == "" {
		return errs.InvalidRequest("host path is required")
	}
	if !filepath.IsAbs(req.HostPath) {
		return errs.InvalidRequest("host path %q must be absolute", req.HostPath)
	}
	req.HostPath = filepath.Clean(req.HostPath)
	if err := ValidateHostPath(req.HostPath); err != nil {
		return errs.InvalidRequest("%v", err)
	}
	if req.Type == "" {
		req.Type = TypeDocker
	}
	if !req.Type.Valid() {
		return errs.InvalidRequest("unknown volume type %q", req.Type)
	}
	if req.Purpose == "" {
		req.Purpose = PurposeOther
	}
	if !req.Purpose.Valid() {
		return errs.InvalidRequest("unknown purpose %q", req.Purpose)
	}
	if !req.StorageType.Valid() {
		return errs.InvalidRequest("unknown storage type %q", req.StorageType)
	}
	if req.Type == TypeBind && req.Handle != "" && filepath.Clean(req.Handle) != req.HostPath {
		return errs.InvalidRequest("bind volumes cannot adopt a handle")
	}
	return nil
}

// Create tracks a new volume and, when it carries an exclusive purpose,
// moves that purpose to it.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*Volume, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	adopt := req.Handle != "" && req.Type == TypeDocker
	handle := req.HostPath
	if req.Type == TypeDocker {
		handle = req.Handle
		if handle == "" {
			handle = DockerVolumeName(req.Name)
		}
	}
	tracked := func(vols []Volume) error {
		for _, v := range vols {
			if v.Handle != handle {
				continue
			}
			if v.HostPath == req.HostPath {
				return errs.DuplicateHostPath("volume %s already targets %s", v.Name, req.HostPath)
			}
			return errs.AlreadyConfigured("storage handle %s is already tracked as %s", handle, v.Name)
		}
		return nil
	}

	// Checked before touching docker, and again when the entry is written.
	vols, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := tracked(vols); err != nil {
		return nil, err
	}

	created := false
	if req.Type == TypeDocker && !adopt {
		if r.host == nil {
			return nil, errs.InvalidRequest("docker volumes are not available")
		}
		labels := map[string]string{LabelManaged: "true", LabelPurpose: string(req.Purpose)}
		if err := r.host.CreateVolume(ctx, handle, req.HostPath, labels); err != nil {
			return nil, errs.ExternalRunner(err, "creating docker volume %s", handle)
		}
		created = true
	}

	var v Volume
	raced := false
	err = r.update(ctx, func(vols []Volume) ([]Volume, error) {
		if err := tracked(vols); err != nil {
			raced = true
			return nil, err
		}
		vols = append(vols, Volume{
			ID:          uuid.NewString(),
			Name:        req.Name,
			HostPath:    req.HostPath,
			Type:        req.Type,
			StorageType: req.StorageType,
			Handle:      handle,
			CreatedAt:   time.Now().UTC(),
		})
		i := len(vols) - 1
		claim(vols, i, req.Purpose)
		v = vols[i]
		return vols, nil
	})
	if err != nil {
		// A handle tracked meanwhile belongs to the other writer; leave its
		// docker volume alone.
		if created && !raced {
			if rmErr := r.host.RemoveVolume(ctx, handle); rmErr != nil {
				log.Printf("[volumes] rollback of docker volume %s failed: %v", handle, rmErr)
			}
		}
		return nil, err
	}
	log.Printf("[volumes] created %s (%s, %s) at %s", req.Name, req.Type, req.Purpose, req.HostPath)
	return &v, nil
}

// ReassignPurpose moves purpose to the volume id. The previous holder, if
// any, becomes "other" in the same write.
func (r *Registry) ReassignPurpose(ctx context.Context, id string, purpose Purpose) (*Volume, error) {
	if !purpose.Valid() {
		return nil, errs.InvalidRequest("unknown purpose %q", purpose)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var v Volume
	err := r.update(ctx, func(vols []Volume) ([]Volume, error) {
		i := indexOf(vols, id)
		if i < 0 {
			return nil, errs.NotFound("volume %s not found", id)
		}
		if vols[i].Purpose != purpose {
			claim(vols, i, purpose)
		}
		v = vols[i]
		return vols, nil
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ImportUnmanaged returns the host volumes that are not tracked yet as
// transient entries. Matching is by storage handle.
func (r *Registry) ImportUnmanaged(ctx context.Context, host []HostVolume) ([]Unmanaged, error) {
	r.mu.Lock()
	vols, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	tracked := make(map[string]bool, len(vols))
	for _, v := range vols {
		tracked[v.Handle] = true
	}
	var out []Unmanaged
	for _, hv := range host {
		if hv.Name == "" || tracked[hv.Name] {
			continue
		}
		tracked[hv.Name] = true
		out = append(out, Unmanaged{
			ID:       UnmanagedPrefix + hv.Name,
			Name:     hv.Name,
			HostPath: hv.Path(),
			Driver:   hv.Driver,
			Handle:   hv.Name,
			Purpose:  PurposeOther,
		})
	}
	return out, nil
}

// Discover lists the host's docker volumes and returns the untracked ones.
func (r *Registry) Discover(ctx context.Context) ([]Unmanaged, error) {
	if r.host == nil {
		return nil, nil
	}
	host, err := r.host.ListVolumes(ctx)
	if err != nil {
		return nil, errs.ExternalRunner(err, "listing docker volumes")
	}
	return r.ImportUnmanaged(ctx, host)
}

// Remove stops tracking a volume and deletes its docker volume. A purpose
// it held stays unassigned. The entry is untracked first; a docker volume
// that then fails to delete shows up as unmanaged and is reported.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var v Volume
	err := r.update(ctx, func(vols []Volume) ([]Volume, error) {
		i := indexOf(vols, id)
		if i < 0 {
			return nil, errs.NotFound("volume %s not found", id)
		}
		v = vols[i]
		return append(vols[:i:i], vols[i+1:]...), nil
	})
	if err != nil {
		return err
	}
	log.Printf("[volumes] removed %s (%s)", v.Name, v.ID)

	if v.Type == TypeDocker && r.host != nil {
		if err := r.host.RemoveVolume(ctx, v.Handle); err != nil && !errors.Is(err, errs.ErrNotFound) {
			log.Printf("[volumes] %s is untracked but docker volume %s was not removed: %v", v.Name, v.Handle, err)
			return errs.ExternalRunner(err, "volume %s untracked, removing docker volume %s", v.Name, v.Handle)
		}
	}
	return nil
}

// ResolveDefault returns the holder of purpose, or nil when unassigned.
func (r *Registry) ResolveDefault(ctx context.Context, purpose Purpose) (*Volume, error) {
	if !purpose.Exclusive() {
		return nil, errs.InvalidRequest("%q is not a default purpose", purpose)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	vols, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range vols {
		if v.Purpose == purpose {
			return &v, nil
		}
	}
	return nil, nil
}

// Defaults derives the purpose map and metadata from the tracked set.
func (r *Registry) Defaults(ctx context.Context) (*Defaults, error) {
	vols, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	d := &Defaults{Purposes: map[Purpose]string{}, Metadata: map[string]VolumeMeta{}}
	for _, v := range vols {
		if v.Purpose.Exclusive() {
			d.Purposes[v.Purpose] = v.ID
		}
		if v.StorageType != "" {
			d.Metadata[v.ID] = VolumeMeta{StorageType: v.StorageType}
		}
	}
	return d, nil
}

// List returns the tracked volumes sorted by name.
func (r *Registry) List(ctx context.Context) ([]Volume, error) {
	r.mu.Lock()
	vols, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(vols, func(i, j int) bool { return vols[i].Name < vols[j].Name })
	return vols, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*Volume, error) {
	r.mu.Lock()
	vols, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	i := indexOf(vols, id)
	if i < 0 {
		return nil, errs.NotFound("volume %s not found", id)
	}
	return &vols[i], nil
}

// SetStorageType records informational disk metadata for a volume.
func (r *Registry) SetStorageType(ctx context.Context, id string, st StorageType) (*Volume, error) {
	if !st.Valid() {
		return nil, errs.InvalidRequest("unknown storage type %q", st)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var v Volume
	err := r.update(ctx, func(vols []Volume) ([]Volume, error) {
		i := indexOf(vols, id)
		if i < 0 {
			return nil, errs.NotFound("volume %s not found", id)
		}
		vols[i].StorageType = st
		v = vols[i]
		return vols, nil
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Usage is the capacity of the filesystem backing a volume.
type Usage struct {
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
}

// Usage reports capacity and free space of the volume's host path.
func (r *Registry) Usage(ctx context.Context, id string) (*Usage, error) {
	v, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return PathUsage(v.HostPath)
}

// PathUsage statfs's path.
func PathUsage(path string) (*Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	u := &Usage{
		TotalBytes: st.Blocks * bsize,
		FreeBytes:  st.Bavail * bsize,
	}
	u.UsedBytes = u.TotalBytes - st.Bfree*bsize
	return u, nil
}
