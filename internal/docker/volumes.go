package docker

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/thrane20/dillinger/internal/volumes"
)

type volumeBody struct {
	Name       string            `json:"Name"`
	Driver     string            `json:"Driver"`
	DriverOpts map[string]string `json:"DriverOpts,omitempty"`
	Labels     map[string]string `json:"Labels,omitempty"`
	Mountpoint string            `json:"Mountpoint,omitempty"`
	Options    map[string]string `json:"Options,omitempty"`
}

// CreateVolume creates a local docker volume bound to hostPath.
func (c *Client) CreateVolume(ctx context.Context, name, hostPath string, labels map[string]string) error {
	body := volumeBody{
		Name:   name,
		Driver: "local",
		DriverOpts: map[string]string{
			"type":   "none",
			"o":      "bind",
			"device": hostPath,
		},
		Labels: labels,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/volumes/create", nil, body, nil); err != nil {
		return fmt.Errorf("creating volume %s: %w", name, err)
	}
	return nil
}

// RemoveVolume deletes a docker volume. A volume that is already gone is
// not an error.
func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	err := c.doRequest(ctx, http.MethodDelete, "/volumes/"+name, nil, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("removing volume %s: %w", name, err)
	}
	return nil
}

// ListVolumes returns every docker volume on the host, sorted by name.
func (c *Client) ListVolumes(ctx context.Context) ([]volumes.HostVolume, error) {
	var resp struct {
		Volumes []volumeBody `json:"Volumes"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/volumes", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing volumes: %w", err)
	}
	out := make([]volumes.HostVolume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		out = append(out, volumes.HostVolume{
			Name:       v.Name,
			Driver:     v.Driver,
			Mountpoint: v.Mountpoint,
			Device:     v.Options["device"],
			Labels:     v.Labels,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
