package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/thrane20/dillinger/internal/games"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestHubDeliversFiltered(t *testing.T) {
	h := NewHub(nil, "")
	all, cancelAll := h.Subscribe(4, nil)
	defer cancelAll()
	one, cancelOne := h.Subscribe(4, ForInstallation("g1", "windows-wine"))
	defer cancelOne()

	h.InstallationChanged("g1", "windows-wine", games.InstallationRecord{Status: games.StatusInstalling})
	h.InstallationChanged("g2", "windows-wine", games.InstallationRecord{Status: games.StatusFailed})

	if len(all) != 2 {
		t.Errorf("unfiltered subscriber got %d events, want 2", len(all))
	}
	if len(one) != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", len(one))
	}
	ev := <-one
	if ev.Installation.Status != games.StatusInstalling || ev.Time.IsZero() {
		t.Errorf("event = %+v", ev)
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub(nil, "")
	ch, cancel := h.Subscribe(1, nil)
	h.VolumeChanged("v1", nil)
	h.VolumeChanged("v2", nil) // must not block
	if len(ch) != 1 {
		t.Errorf("buffered = %d", len(ch))
	}
	cancel()
	cancel()
	h.VolumeChanged("v3", nil) // no subscribers left
}

func TestHubForwardsToPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewHub(pub, "dillinger")
	h.InstallationChanged("g1", "windows-wine", games.InstallationRecord{Status: games.StatusInstalled})
	h.VolumeChanged("v1", nil)

	if len(pub.subjects) != 2 {
		t.Fatalf("published %d", len(pub.subjects))
	}
	if pub.subjects[0] != "dillinger.installation.g1.windows-wine" || pub.subjects[1] != "dillinger.volume.v1" {
		t.Errorf("subjects = %v", pub.subjects)
	}
	var ev Event
	if err := json.Unmarshal(pub.payloads[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Installation == nil || ev.Installation.Status != games.StatusInstalled {
		t.Errorf("payload = %s", pub.payloads[0])
	}
}
