package supervise

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hostling/hostling/internal/resource"
)

func TestSitePublisherPublishAndTeardown(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sites")
	pub := NewSitePublisher(dir)

	proc, err := pub.Spawn(context.Background(), Spec{
		ID:     "landing",
		Kind:   resource.KindWebsite,
		Config: `{"domain":"example.com"}`,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if proc.PID() != 0 {
		t.Fatalf("site proc has no OS process, pid = %d", proc.PID())
	}
	if !proc.Alive() {
		t.Fatalf("published site must be alive")
	}

	marker := filepath.Join(dir, "landing.site")
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	var m siteMarker
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode marker: %v", err)
	}
	if m.ID != "landing" || m.Config != `{"domain":"example.com"}` || m.PublishedAt.IsZero() {
		t.Fatalf("marker contents: %+v", m)
	}

	if err := proc.Stop(0); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if proc.Alive() {
		t.Fatalf("stopped site must not be alive")
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("marker must be removed on stop: %v", err)
	}
	// stopping twice is fine
	if err := proc.Stop(0); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestSitePublisherValidatesSource(t *testing.T) {
	pub := NewSitePublisher(t.TempDir())
	_, err := pub.Spawn(context.Background(), Spec{
		ID:       "broken",
		Kind:     resource.KindWebsite,
		FilePath: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	if err == nil {
		t.Fatalf("expected error for missing site source")
	}
}

func TestSitePublisherAcceptsExistingSource(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	pub := NewSitePublisher(t.TempDir())
	proc, err := pub.Spawn(context.Background(), Spec{
		ID: "docs", Kind: resource.KindWebsite, FilePath: src,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	defer func() { _ = proc.Stop(0) }()
	if !proc.Alive() {
		t.Fatalf("expected published site to be alive")
	}
}

func TestSiteAliveReflectsExternalRemoval(t *testing.T) {
	dir := t.TempDir()
	pub := NewSitePublisher(dir)
	proc, err := pub.Spawn(context.Background(), Spec{ID: "flaky", Kind: resource.KindWebsite})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// someone deletes the published marker out from under the engine
	if err := os.Remove(filepath.Join(dir, "flaky.site")); err != nil {
		t.Fatalf("remove marker: %v", err)
	}
	if proc.Alive() {
		t.Fatalf("alive must report false after the marker vanishes")
	}
}
