package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/soratv/vod-api/log"
)

// workspace is the scoped scratch directory one job works in. Everything the
// job writes locally (downloaded source, encoder output) lives under Dir, so
// cleanup is a single RemoveAll and two jobs can never collide.
type workspace struct {
	Dir string
}

func newWorkspace(baseDir, requestID string) (*workspace, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	dir, err := os.MkdirTemp(baseDir, "transcode-"+requestID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create job workspace: %w", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "out"), 0755); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create encode output dir: %w", err)
	}
	return &workspace{Dir: dir}, nil
}

// SourcePath is where the downloaded source asset is written.
func (w *workspace) SourcePath() string {
	return filepath.Join(w.Dir, "source")
}

// OutDir is where ffmpeg writes playlists and segments.
func (w *workspace) OutDir() string {
	return filepath.Join(w.Dir, "out")
}

// Cleanup removes the whole workspace. Best effort; a leftover directory is
// only a disk-space problem, never a correctness one.
func (w *workspace) Cleanup(requestID string) {
	if err := os.RemoveAll(w.Dir); err != nil {
		log.LogError(requestID, "failed to clean up job workspace", err, "dir", w.Dir)
	}
}
