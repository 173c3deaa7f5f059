package supervise

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// SitePublisher "deploys" a static website by dropping a marker file into
// PublishDir. Real SSL/domain provisioning would replace this Spawner; the
// lifecycle engine is indifferent to how publication actually happens.
type SitePublisher struct {
	PublishDir string
}

func NewSitePublisher(dir string) *SitePublisher { return &SitePublisher{PublishDir: dir} }

type siteMarker struct {
	ID          string    `json:"id"`
	SourcePath  string    `json:"source_path"`
	Config      string    `json:"config"`
	PublishedAt time.Time `json:"published_at"`
}

func (s *SitePublisher) Spawn(ctx context.Context, spec Spec) (Proc, error) {
	if spec.FilePath != "" {
		if _, err := os.Stat(spec.FilePath); err != nil {
			return nil, fmt.Errorf("site source for %s: %w", spec.ID, err)
		}
	}
	if err := os.MkdirAll(s.PublishDir, 0o750); err != nil {
		return nil, err
	}
	marker := filepath.Join(s.PublishDir, spec.ID+".site")
	data, err := json.Marshal(siteMarker{
		ID:          spec.ID,
		SourcePath:  spec.FilePath,
		Config:      spec.Config,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(marker, data, 0o640); err != nil {
		return nil, fmt.Errorf("publish %s: %w", spec.ID, err)
	}
	return &siteProc{marker: marker}, nil
}

type siteProc struct {
	marker  string
	stopped atomic.Bool
}

func (p *siteProc) PID() int { return 0 }

func (p *siteProc) Alive() bool {
	if p.stopped.Load() {
		return false
	}
	_, err := os.Stat(p.marker)
	return err == nil
}

func (p *siteProc) Stop(time.Duration) error {
	p.stopped.Store(true)
	if err := os.Remove(p.marker); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
