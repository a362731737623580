package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/thrane20/dillinger/internal/config"
	"github.com/thrane20/dillinger/internal/engine"
	"github.com/thrane20/dillinger/internal/events"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/store"
	"github.com/thrane20/dillinger/internal/volumes"
)

// fakeRunner hands out ctr-N handles and reports whatever status the test
// set for them, running by default.
type fakeRunner struct {
	mu         sync.Mutex
	n          int
	statuses   map[string]engine.RunStatus
	launchErr  error
	terminated []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{statuses: map[string]engine.RunStatus{}}
}

func (f *fakeRunner) Launch(ctx context.Context, spec engine.LaunchSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launchErr != nil {
		return "", f.launchErr
	}
	f.n++
	return fmt.Sprintf("ctr-%d", f.n), nil
}

func (f *fakeRunner) Status(ctx context.Context, handle string) (engine.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.statuses[handle]; ok {
		return st, nil
	}
	return engine.Running(), nil
}

func (f *fakeRunner) Terminate(ctx context.Context, handle string) error {
	f.mu.Lock()
	f.terminated = append(f.terminated, handle)
	f.mu.Unlock()
	return nil
}

func (f *fakeRunner) set(handle string, st engine.RunStatus) {
	f.mu.Lock()
	f.statuses[handle] = st
	f.mu.Unlock()
}

// fakeHost is an in-memory docker volume host.
type fakeHost struct {
	mu   sync.Mutex
	vols map[string]volumes.HostVolume
}

func (h *fakeHost) CreateVolume(ctx context.Context, name, hostPath string, labels map[string]string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vols[name] = volumes.HostVolume{Name: name, Driver: "local", Device: hostPath, Labels: labels}
	return nil
}

func (h *fakeHost) RemoveVolume(ctx context.Context, name string) error {
	h.mu.Lock()
	delete(h.vols, name)
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) ListVolumes(ctx context.Context) ([]volumes.HostVolume, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]volumes.HostVolume, 0, len(h.vols))
	for _, v := range h.vols {
		out = append(out, v)
	}
	return out, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DataDir = "/tmp/dillinger-test"
	cfg.Service.BindAddress = "127.0.0.1"
	cfg.Service.Port = 0
	cfg.Auth.Mode = config.AuthModeNone
	return cfg
}

type testEnv struct {
	srv    *Server
	store  *store.Store
	runner *fakeRunner
	host   *fakeHost
	hub    *events.Hub
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &testEnv{
		store:  st,
		runner: newFakeRunner(),
		host:   &fakeHost{vols: map[string]volumes.HostVolume{}},
		hub:    events.NewHub(nil, ""),
	}
	locks := &games.Locks{}
	gameSvc := games.NewService(st, locks)
	reg := volumes.NewRegistry(st, env.host)
	eng := engine.New(engine.Options{
		Games:    st,
		Locks:    locks,
		Runner:   env.runner,
		Logs:     st,
		Volumes:  reg,
		Notifier: env.hub,
	})
	env.srv = New(cfg, Deps{
		Games:    gameSvc,
		Installs: eng,
		Volumes:  reg,
		Hub:      env.hub,
		DB:       st,
	})
	return env
}

func testServer(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, testConfig())
}

func doRequest(t *testing.T, srv *Server, method, path string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, w.Body.String())
	}
	return result
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

// createGame creates a game with one platform and returns its id.
func createGame(t *testing.T, env *testEnv, platformID string) string {
	t.Helper()
	w := doRequest(t, env.srv, "POST", "/api/games", fmt.Sprintf(`{"title":"Half-Life","platform_id":%q}`, platformID))
	expectStatus(t, w, http.StatusCreated)
	var g games.Game
	decodeInto(t, w, &g)
	return g.ID
}
