package docker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestServer creates an httptest.Server and a Client pointing to it.
func newTestServer(t *testing.T, handler http.Handler) (*httptest.Server, *Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client := &Client{
		baseURL:    ts.URL,
		version:    DefaultAPIVersion,
		httpClient: ts.Client(),
	}
	return ts, client
}

func TestNewClientSocketForms(t *testing.T) {
	c, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatalf("NewClient(default): %v", err)
	}
	if c.baseURL != "http://docker" || c.version != DefaultAPIVersion {
		t.Errorf("default client = %q %q", c.baseURL, c.version)
	}

	c, err = NewClient(ClientConfig{Socket: "tcp://10.0.0.5:2375", APIVersion: "v1.41"})
	if err != nil {
		t.Fatalf("NewClient(tcp): %v", err)
	}
	if c.baseURL != "http://10.0.0.5:2375" || c.version != "v1.41" {
		t.Errorf("tcp client = %q %q", c.baseURL, c.version)
	}

	if _, err := NewClient(ClientConfig{Socket: "docker.sock"}); err == nil {
		t.Error("expected error for relative socket path")
	}
}

func TestPing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.43/_ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	_, client := newTestServer(t, mux)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.43/containers/abc/json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "No such container: abc"})
	})
	_, client := newTestServer(t, mux)
	_, err := client.InspectContainer(context.Background(), "abc")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if !strings.Contains(err.Error(), "No such container: abc") {
		t.Errorf("error = %q, want daemon message", err.Error())
	}
}

func TestServerErrorPlainBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.43/info", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "daemon exploded", http.StatusInternalServerError)
	})
	_, client := newTestServer(t, mux)
	_, err := client.Info(context.Background())
	if err == nil || !strings.Contains(err.Error(), "docker API 500: daemon exploded") {
		t.Fatalf("err = %v", err)
	}
	if IsNotFound(err) || IsConflict(err) {
		t.Error("500 misclassified")
	}
}

func TestCreateContainer(t *testing.T) {
	var got createBody
	var gotName string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.43/containers/create", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotName = r.URL.Query().Get("name")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"Id": "c0ffee", "Warnings": []string{}})
	})
	_, client := newTestServer(t, mux)

	id, err := client.CreateContainer(context.Background(), ContainerCreateOptions{
		Name:   "dillinger-test",
		Image:  "dillinger-wine:latest",
		Cmd:    []string{"wine", "/installer/setup.exe"},
		Binds:  []string{"/srv/i:/installer:ro"},
		Labels: map[string]string{LabelRole: RoleInstaller},
	})
	if err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	if id != "c0ffee" || gotName != "dillinger-test" {
		t.Errorf("id = %q, name = %q", id, gotName)
	}
	if got.Image != "dillinger-wine:latest" || len(got.HostConfig.Binds) != 1 || got.Labels[LabelRole] != RoleInstaller {
		t.Errorf("body = %+v", got)
	}
}

func TestCreateContainerRequiresImage(t *testing.T) {
	_, client := newTestServer(t, http.NewServeMux())
	if _, err := client.CreateContainer(context.Background(), ContainerCreateOptions{Name: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestListContainersFilter(t *testing.T) {
	var filters string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.43/containers/json", func(w http.ResponseWriter, r *http.Request) {
		filters = r.URL.Query().Get("filters")
		json.NewEncoder(w).Encode([]ContainerSummary{{ID: "a", State: "running"}})
	})
	_, client := newTestServer(t, mux)
	out, err := client.ListContainers(context.Background(), map[string]string{LabelRole: RoleInstaller})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "a" {
		t.Errorf("containers = %+v", out)
	}
	if filters != `{"label":["dillinger.role=installer"]}` {
		t.Errorf("filters = %s", filters)
	}
}

func TestCreateVolume(t *testing.T) {
	var got volumeBody
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.43/volumes/create", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})
	_, client := newTestServer(t, mux)

	err := client.CreateVolume(context.Background(), "dillinger_games", "/mnt/games", map[string]string{"dillinger.managed": "true"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Driver != "local" || got.DriverOpts["type"] != "none" || got.DriverOpts["o"] != "bind" || got.DriverOpts["device"] != "/mnt/games" {
		t.Errorf("body = %+v", got)
	}
}

func TestRemoveVolumeNotFoundIsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.43/volumes/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"get gone: no such volume"}`))
	})
	mux.HandleFunc("/v1.43/volumes/busy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"volume is in use"}`))
	})
	_, client := newTestServer(t, mux)
	if err := client.RemoveVolume(context.Background(), "gone"); err != nil {
		t.Errorf("RemoveVolume(gone) = %v, want nil", err)
	}
	if err := client.RemoveVolume(context.Background(), "busy"); !IsConflict(err) {
		t.Errorf("RemoveVolume(busy) = %v, want conflict", err)
	}
}

func TestListVolumes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.43/volumes", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Volumes":[
			{"Name":"zeta","Driver":"local","Mountpoint":"/var/lib/docker/volumes/zeta/_data"},
			{"Name":"alpha","Driver":"local","Mountpoint":"/var/lib/docker/volumes/alpha/_data",
			 "Options":{"device":"/mnt/alpha","o":"bind","type":"none"},"Labels":{"dillinger.managed":"true"}}
		]}`))
	})
	_, client := newTestServer(t, mux)
	vols, err := client.ListVolumes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vols) != 2 || vols[0].Name != "alpha" {
		t.Fatalf("volumes = %+v", vols)
	}
	if vols[0].Path() != "/mnt/alpha" {
		t.Errorf("alpha path = %q", vols[0].Path())
	}
	if vols[1].Path() != "/var/lib/docker/volumes/zeta/_data" {
		t.Errorf("zeta path = %q", vols[1].Path())
	}
}
