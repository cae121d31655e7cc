package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soratv/vod-api/store"
	"github.com/soratv/vod-api/video"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	mu sync.Mutex
	// signed GET URLs resolve to this server
	server *httptest.Server
	puts   map[string]string // key -> content type
}

func newFakeObjectStore(t *testing.T) *fakeObjectStore {
	f := &fakeObjectStore{puts: map[string]string{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-source-bytes"))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeObjectStore) PresignGet(key string, expiry time.Duration) (string, error) {
	return f.server.URL + "/" + key, nil
}

func (f *fakeObjectStore) PresignPut(key, contentType string, expiry time.Duration) (string, error) {
	return f.server.URL + "/" + key, nil
}

func (f *fakeObjectStore) Put(key string, body []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[key] = contentType
	return nil
}

func (f *fakeObjectStore) uploadedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.puts))
	for k := range f.puts {
		keys = append(keys, k)
	}
	return keys
}

type fakeProber struct {
	info video.SourceInfo
}

func (f fakeProber) ProbeSource(requestID, path string) video.SourceInfo {
	return f.info
}

// fakeRunner fabricates the encoder output: a master playlist plus one
// variant playlist and segment per mapped variant, written where the argv
// says ffmpeg would write them.
type fakeRunner struct {
	err  error
	runs int
}

func (f *fakeRunner) Run(ctx context.Context, requestID string, args []string) error {
	f.runs++
	if f.err != nil {
		return f.err
	}
	outDir := filepath.Dir(args[len(args)-1])

	var variants int
	for i, a := range args {
		if a == "-var_stream_map" {
			variants = len(strings.Fields(args[i+1]))
		}
	}

	var master strings.Builder
	master.WriteString("#EXTM3U\n#EXT-X-VERSION:6\n")
	for i := 0; i < variants; i++ {
		fmt.Fprintf(&master, "#EXT-X-STREAM-INF:BANDWIDTH=%d\nstream_%d.m3u8\n", 1000000*(i+1), i)
		variant := fmt.Sprintf("#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nstream_%d_000.ts\n#EXT-X-ENDLIST\n", i)
		if err := os.WriteFile(filepath.Join(outDir, fmt.Sprintf("stream_%d.m3u8", i)), []byte(variant), 0644); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(outDir, fmt.Sprintf("stream_%d_000.ts", i)), []byte("segment"), 0644); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(outDir, "master.m3u8"), []byte(master.String()), 0644)
}

func newTestWorker(t *testing.T, db *store.Memory, objects *fakeObjectStore, prober fakeProber, runner *fakeRunner) *Worker {
	return &Worker{
		Store:       db,
		ObjectStore: objects,
		Prober:      prober,
		Runner:      runner,
		WorkDir:     t.TempDir(),
	}
}

func seedVideo(t *testing.T, db *store.Memory) *store.Video {
	vid := &store.Video{
		UploaderID:    10,
		Title:         "clip",
		SourceAssetID: 1,
		Status:        store.VideoStatusProcessing,
	}
	require.NoError(t, db.InsertVideo(context.Background(), vid))
	return vid
}

// seedRenditions writes the processing rows the service inserts at dispatch
// time, in preference order.
func seedRenditions(t *testing.T, db *store.Memory, videoID int64, profiles []video.EncodedProfile) {
	sorted := append([]video.EncodedProfile{}, profiles...)
	video.SortByPreference(sorted)
	for _, p := range sorted {
		require.NoError(t, db.InsertRendition(context.Background(), &store.Rendition{
			VideoID:          videoID,
			RepresentationID: p.Name,
			Bitrate:          p.Bitrate,
			Resolution:       p.Resolution,
			Status:           store.RenditionStatusProcessing,
		}))
	}
}

func renditionsByName(t *testing.T, db *store.Memory, videoID int64) map[string]*store.Rendition {
	renditions, err := db.SelectRenditionsByVideoID(context.Background(), videoID)
	require.NoError(t, err)
	byName := map[string]*store.Rendition{}
	for _, r := range renditions {
		byName[r.RepresentationID] = r
	}
	return byName
}

func TestRunJobSkipsRenditionsAboveSourceResolution(t *testing.T) {
	db := store.NewMemory()
	vid := seedVideo(t, db)
	seedRenditions(t, db, vid.ID, video.StandardLadder)
	objects := newFakeObjectStore(t)
	runner := &fakeRunner{}
	w := newTestWorker(t, db, objects, fakeProber{video.SourceInfo{Width: 1280, Height: 720, HasAudio: true, Duration: 12.5}}, runner)

	err := w.RunJob(context.Background(), Job{
		RequestID: "test1",
		VideoID:   vid.ID,
		SourceKey: "attachments/source.mp4",
		Profiles:  video.StandardLadder,
	})
	require.NoError(t, err)
	require.Equal(t, 1, runner.runs)

	byName := renditionsByName(t, db, vid.ID)
	require.Len(t, byName, 4)
	require.Equal(t, store.RenditionStatusFailed, byName["1080p"].Status)
	require.Empty(t, byName["1080p"].ManifestPath)
	require.Equal(t, store.RenditionStatusReady, byName["720p"].Status)
	require.Equal(t, store.RenditionStatusReady, byName["360p"].Status)
	require.Equal(t, store.RenditionStatusReady, byName["240p"].Status)

	// Producible renditions claim variant ordinals in preference order.
	prefix := fmt.Sprintf("videos/%d/hls/", vid.ID)
	require.Equal(t, prefix+"stream_0.m3u8", byName["720p"].ManifestPath)
	require.Equal(t, prefix+"stream_1.m3u8", byName["360p"].ManifestPath)
	require.Equal(t, prefix+"stream_2.m3u8", byName["240p"].ManifestPath)

	got, err := db.SelectVideoByID(context.Background(), vid.ID)
	require.NoError(t, err)
	require.Equal(t, store.VideoStatusReady, got.Status)
	require.NotNil(t, got.DurationSec)
	require.Equal(t, 12.5, *got.DurationSec)

	uploaded := objects.uploadedKeys()
	require.Contains(t, uploaded, prefix+"master.m3u8")
	require.Contains(t, uploaded, prefix+"stream_0.m3u8")
	require.Contains(t, uploaded, prefix+"stream_0_000.ts")
	require.Contains(t, uploaded, prefix+"stream_2_000.ts")
	require.Equal(t, "application/vnd.apple.mpegurl", objects.puts[prefix+"master.m3u8"])
	require.Equal(t, "video/mp2t", objects.puts[prefix+"stream_0_000.ts"])
}

func TestRunJobEncodeFailureMarksEverythingFailed(t *testing.T) {
	db := store.NewMemory()
	vid := seedVideo(t, db)
	seedRenditions(t, db, vid.ID, video.StandardLadder)
	objects := newFakeObjectStore(t)
	runner := &fakeRunner{err: fmt.Errorf("exit status 1")}
	w := newTestWorker(t, db, objects, fakeProber{video.SourceInfo{Width: 1920, Height: 1080, HasAudio: true}}, runner)

	err := w.RunJob(context.Background(), Job{
		RequestID: "test2",
		VideoID:   vid.ID,
		SourceKey: "attachments/source.mp4",
		Profiles:  video.StandardLadder,
	})
	require.Error(t, err)

	got, err := db.SelectVideoByID(context.Background(), vid.ID)
	require.NoError(t, err)
	require.Equal(t, store.VideoStatusFailed, got.Status)

	for name, r := range renditionsByName(t, db, vid.ID) {
		require.Equal(t, store.RenditionStatusFailed, r.Status, "rendition %s", name)
	}
	require.Empty(t, objects.uploadedKeys())
}

func TestRunJobNoProducibleRenditions(t *testing.T) {
	db := store.NewMemory()
	vid := seedVideo(t, db)
	seedRenditions(t, db, vid.ID, video.StandardLadder)
	objects := newFakeObjectStore(t)
	runner := &fakeRunner{}
	// 144p source: every ladder rung would be an upscale.
	w := newTestWorker(t, db, objects, fakeProber{video.SourceInfo{Width: 256, Height: 144, HasAudio: true}}, runner)

	err := w.RunJob(context.Background(), Job{
		RequestID: "test3",
		VideoID:   vid.ID,
		SourceKey: "attachments/source.mp4",
		Profiles:  video.StandardLadder,
	})
	require.NoError(t, err)
	require.Zero(t, runner.runs, "encode must be skipped")

	got, err := db.SelectVideoByID(context.Background(), vid.ID)
	require.NoError(t, err)
	require.Equal(t, store.VideoStatusReady, got.Status)

	for name, r := range renditionsByName(t, db, vid.ID) {
		require.Equal(t, store.RenditionStatusFailed, r.Status, "rendition %s", name)
	}
	require.Empty(t, objects.uploadedKeys())
}

// masterOnlyRunner writes a master playlist referencing variants it never
// produces, simulating an encode that died after writing the master.
type masterOnlyRunner struct{}

func (masterOnlyRunner) Run(ctx context.Context, requestID string, args []string) error {
	outDir := filepath.Dir(args[len(args)-1])
	var variants int
	for i, a := range args {
		if a == "-var_stream_map" {
			variants = len(strings.Fields(args[i+1]))
		}
	}
	var master strings.Builder
	master.WriteString("#EXTM3U\n#EXT-X-VERSION:6\n")
	for i := 0; i < variants; i++ {
		fmt.Fprintf(&master, "#EXT-X-STREAM-INF:BANDWIDTH=%d\nstream_%d.m3u8\n", 1000000*(i+1), i)
	}
	return os.WriteFile(filepath.Join(outDir, "master.m3u8"), []byte(master.String()), 0644)
}

func TestRunJobFailsWhenNoRenditionBecomesReady(t *testing.T) {
	db := store.NewMemory()
	vid := seedVideo(t, db)
	profiles := []video.EncodedProfile{{Name: "720p", Bitrate: 1_800_000, Resolution: "1280x720"}}
	seedRenditions(t, db, vid.ID, profiles)
	objects := newFakeObjectStore(t)
	w := newTestWorker(t, db, objects, fakeProber{video.SourceInfo{Width: 1920, Height: 1080, HasAudio: true}}, nil)
	w.Runner = masterOnlyRunner{}

	err := w.RunJob(context.Background(), Job{
		RequestID: "test5",
		VideoID:   vid.ID,
		SourceKey: "attachments/source.mp4",
		Profiles:  profiles,
	})
	require.Error(t, err)

	// No variant playlists means no ready rendition, so the video must not
	// flip to ready.
	got, err := db.SelectVideoByID(context.Background(), vid.ID)
	require.NoError(t, err)
	require.Equal(t, store.VideoStatusFailed, got.Status)
	require.Equal(t, store.RenditionStatusFailed, renditionsByName(t, db, vid.ID)["720p"].Status)
}

func TestRunJobCleansUpWorkspace(t *testing.T) {
	db := store.NewMemory()
	vid := seedVideo(t, db)
	profiles := []video.EncodedProfile{{Name: "720p", Bitrate: 1_800_000, Resolution: "1280x720"}}
	seedRenditions(t, db, vid.ID, profiles)
	objects := newFakeObjectStore(t)
	workDir := t.TempDir()
	w := &Worker{
		Store:       db,
		ObjectStore: objects,
		Prober:      fakeProber{video.SourceInfo{Width: 1920, Height: 1080, HasAudio: false}},
		Runner:      &fakeRunner{},
		WorkDir:     workDir,
	}

	err := w.RunJob(context.Background(), Job{
		RequestID: "test4",
		VideoID:   vid.ID,
		SourceKey: "attachments/source.mp4",
		Profiles:  profiles,
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	require.Empty(t, entries, "workspace must be removed after the job")
}

func TestVerifyMasterPlaylist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.m3u8")
	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1800000\nstream_0.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=650000\nstream_1.m3u8\n"
	require.NoError(t, os.WriteFile(path, []byte(master), 0644))

	require.NoError(t, verifyMasterPlaylist(path, 2))
	require.Error(t, verifyMasterPlaylist(path, 3))
	require.Error(t, verifyMasterPlaylist(filepath.Join(dir, "missing.m3u8"), 2))
}
