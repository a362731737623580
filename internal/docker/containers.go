package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DeviceMapping passes a host device node into a container.
type DeviceMapping struct {
	PathOnHost        string `json:"PathOnHost"`
	PathInContainer   string `json:"PathInContainer"`
	CgroupPermissions string `json:"CgroupPermissions"`
}

// ContainerCreateOptions defines the parameters for creating a container.
type ContainerCreateOptions struct {
	Name        string
	Image       string
	Cmd         []string
	Env         []string
	Labels      map[string]string
	Binds       []string
	Devices     []DeviceMapping
	WorkingDir  string
	NetworkMode string
	Tty         bool
}

type createBody struct {
	Image      string            `json:"Image"`
	Cmd        []string          `json:"Cmd,omitempty"`
	Env        []string          `json:"Env,omitempty"`
	Labels     map[string]string `json:"Labels,omitempty"`
	WorkingDir string            `json:"WorkingDir,omitempty"`
	Tty        bool              `json:"Tty,omitempty"`
	HostConfig hostConfig        `json:"HostConfig"`
}

type hostConfig struct {
	Binds       []string        `json:"Binds,omitempty"`
	Devices     []DeviceMapping `json:"Devices,omitempty"`
	NetworkMode string          `json:"NetworkMode,omitempty"`
}

// CreateContainer creates a container and returns its id.
func (c *Client) CreateContainer(ctx context.Context, opts ContainerCreateOptions) (string, error) {
	if opts.Image == "" {
		return "", fmt.Errorf("container image is required")
	}
	query := url.Values{}
	if opts.Name != "" {
		query.Set("name", opts.Name)
	}
	body := createBody{
		Image:      opts.Image,
		Cmd:        opts.Cmd,
		Env:        opts.Env,
		Labels:     opts.Labels,
		WorkingDir: opts.WorkingDir,
		Tty:        opts.Tty,
		HostConfig: hostConfig{
			Binds:       opts.Binds,
			Devices:     opts.Devices,
			NetworkMode: opts.NetworkMode,
		},
	}
	var created struct {
		ID       string   `json:"Id"`
		Warnings []string `json:"Warnings"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/containers/create", query, body, &created); err != nil {
		return "", fmt.Errorf("creating container %s: %w", opts.Name, err)
	}
	return created.ID, nil
}

// StartContainer starts a created container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/containers/"+id+"/start", nil, nil, nil); err != nil {
		return fmt.Errorf("starting container %s: %w", id, err)
	}
	return nil
}

// ContainerState is the State object of a container inspect.
type ContainerState struct {
	Status     string `json:"Status"`
	Running    bool   `json:"Running"`
	Restarting bool   `json:"Restarting"`
	OOMKilled  bool   `json:"OOMKilled"`
	ExitCode   int    `json:"ExitCode"`
	Error      string `json:"Error"`
	StartedAt  string `json:"StartedAt"`
	FinishedAt string `json:"FinishedAt"`
}

// ContainerInfo is the subset of a container inspect the service reads.
type ContainerInfo struct {
	ID    string         `json:"Id"`
	Name  string         `json:"Name"`
	State ContainerState `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
}

// InspectContainer returns a container's state and config.
func (c *Client) InspectContainer(ctx context.Context, id string) (*ContainerInfo, error) {
	var info ContainerInfo
	if err := c.doRequest(ctx, http.MethodGet, "/containers/"+id+"/json", nil, nil, &info); err != nil {
		return nil, fmt.Errorf("inspecting container %s: %w", id, err)
	}
	return &info, nil
}

// KillContainer sends SIGKILL to a running container.
func (c *Client) KillContainer(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/containers/"+id+"/kill", nil, nil, nil); err != nil {
		return fmt.Errorf("killing container %s: %w", id, err)
	}
	return nil
}

// RemoveContainer deletes a container, killing it first when force is set.
func (c *Client) RemoveContainer(ctx context.Context, id string, force bool) error {
	query := url.Values{}
	query.Set("force", strconv.FormatBool(force))
	if err := c.doRequest(ctx, http.MethodDelete, "/containers/"+id, query, nil, nil); err != nil {
		return fmt.Errorf("removing container %s: %w", id, err)
	}
	return nil
}

// ContainerSummary is one entry of GET /containers/json.
type ContainerSummary struct {
	ID     string            `json:"Id"`
	Names  []string          `json:"Names"`
	Image  string            `json:"Image"`
	State  string            `json:"State"`
	Status string            `json:"Status"`
	Labels map[string]string `json:"Labels"`
}

// ListContainers returns all containers (running or not) carrying every
// given label.
func (c *Client) ListContainers(ctx context.Context, labels map[string]string) ([]ContainerSummary, error) {
	query := url.Values{}
	query.Set("all", "true")
	if len(labels) > 0 {
		var filter []string
		for k, v := range labels {
			filter = append(filter, k+"="+v)
		}
		data, err := json.Marshal(map[string][]string{"label": filter})
		if err != nil {
			return nil, err
		}
		query.Set("filters", string(data))
	}
	var out []ContainerSummary
	if err := c.doRequest(ctx, http.MethodGet, "/containers/json", query, nil, &out); err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}
	return out, nil
}
