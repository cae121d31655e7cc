// Package pipeline runs transcode jobs: download the source asset, probe it,
// encode the producible renditions into HLS in a single ffmpeg pass, upload
// the artifacts and flip per-rendition and per-video statuses. The
// Coordinator admits and bounds jobs; the Worker executes one job end to end.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/grafov/m3u8"
	"github.com/soratv/vod-api/clients"
	"github.com/soratv/vod-api/config"
	xerrors "github.com/soratv/vod-api/errors"
	"github.com/soratv/vod-api/log"
	"github.com/soratv/vod-api/metrics"
	"github.com/soratv/vod-api/store"
	"github.com/soratv/vod-api/video"
)

// Job is one transcode request, fully resolved: the service layer has already
// validated the video, looked up the source asset's storage key, and written
// one processing rendition row per profile.
type Job struct {
	RequestID string
	VideoID   int64
	SourceKey string
	// Profiles to attempt, in preference order, mirroring the rendition rows.
	Profiles []video.EncodedProfile
	// GenerateCover asks the job to grab a frame from the source and store
	// it as the video's cover when the uploader did not provide one.
	GenerateCover bool
}

// Worker executes transcode jobs. All collaborators are interfaces so the
// job flow is testable without a database, a bucket or an ffmpeg binary.
type Worker struct {
	Store          store.Store
	ObjectStore    clients.ObjectStore
	Prober         video.Prober
	Runner         video.Runner
	WorkDir        string
	SegmentSeconds int
}

// RunJob executes the job and records metrics. Any error marks the video and
// all of its still-processing renditions failed; players polling the video
// never observe a half-finished state.
func (w *Worker) RunJob(ctx context.Context, job Job) (err error) {
	start := time.Now()
	log.Log(job.RequestID, "starting transcode job", "video_id", job.VideoID, "source_key", job.SourceKey, "profiles", len(job.Profiles))
	defer func() {
		metrics.Metrics.TranscodeJobDurationSec.Observe(time.Since(start).Seconds())
		metrics.Metrics.TranscodeJobResults.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	}()

	err = w.runJob(ctx, job)
	if err != nil {
		log.LogError(job.RequestID, "transcode job failed", err, "video_id", job.VideoID, "duration", time.Since(start))
		w.markAllFailed(job)
		return err
	}
	log.Log(job.RequestID, "transcode job succeeded", "video_id", job.VideoID, "duration", time.Since(start))
	return nil
}

func (w *Worker) runJob(ctx context.Context, job Job) error {
	vid, err := w.Store.SelectVideoByID(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video %d: %w", job.VideoID, err)
	}

	ws, err := newWorkspace(w.WorkDir, job.RequestID)
	if err != nil {
		return err
	}
	defer ws.Cleanup(job.RequestID)

	if err := w.downloadSource(ctx, job, ws.SourcePath()); err != nil {
		return err
	}

	info := w.Prober.ProbeSource(job.RequestID, ws.SourcePath())
	log.Log(job.RequestID, "probed source", "width", info.Width, "height", info.Height, "has_audio", info.HasAudio, "duration", info.Duration)
	if info.Duration > 0 {
		d := info.Duration
		vid.DurationSec = &d
	}

	renditions, producible, err := w.loadRenditions(ctx, job, info)
	if err != nil {
		return err
	}
	if len(producible) == 0 {
		// Nothing we can produce without upscaling. The video still goes
		// ready so the uploader is not stuck at processing forever.
		log.Log(job.RequestID, "no producible renditions, skipping encode", "video_id", job.VideoID)
		vid.Status = store.VideoStatusReady
		return w.Store.UpdateVideo(ctx, vid)
	}

	spec := video.EncodeSpec{
		SourcePath:     ws.SourcePath(),
		OutDir:         ws.OutDir(),
		Renditions:     producible,
		HasAudio:       info.HasAudio,
		SegmentSeconds: w.SegmentSeconds,
	}
	encodeCtx, cancel := context.WithTimeout(ctx, config.EncodeTimeout)
	defer cancel()
	if err := w.Runner.Run(encodeCtx, job.RequestID, spec.CompileArgs()); err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}

	if err := verifyMasterPlaylist(filepath.Join(ws.OutDir(), config.MasterManifestFilename), len(producible)); err != nil {
		return err
	}

	if err := w.uploadArtifacts(job, ws.OutDir()); err != nil {
		return err
	}

	if err := w.publishRenditions(ctx, job, ws.OutDir(), renditions); err != nil {
		return err
	}
	if !anyReady(renditions) {
		return fmt.Errorf("no renditions became ready for video %d", job.VideoID)
	}

	if job.GenerateCover && vid.CoverAssetID == nil {
		w.generateCover(ctx, job, ws, vid, info)
	}

	vid.Status = store.VideoStatusReady
	if err := w.Store.UpdateVideo(ctx, vid); err != nil {
		return fmt.Errorf("failed to mark video ready: %w", err)
	}
	return nil
}

func (w *Worker) downloadSource(ctx context.Context, job Job, localPath string) error {
	url, err := w.ObjectStore.PresignGet(job.SourceKey, config.SourceDownloadTimeout)
	if err != nil {
		return fmt.Errorf("failed to sign source download URL: %w", err)
	}
	dlCtx, cancel := context.WithTimeout(ctx, config.SourceDownloadTimeout)
	defer cancel()

	retries := backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 2)
	return backoff.Retry(func() error {
		size, err := clients.DownloadFile(dlCtx, job.RequestID, url, localPath)
		if err != nil {
			if xerrors.IsUnretriable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		log.Log(job.RequestID, "downloaded source asset", "url", log.RedactURL(url), "size", size)
		return nil
	}, retries)
}

// loadRenditions loads the rendition rows written at dispatch time,
// immediately fails the ones the source cannot support without upscaling, and
// returns the rows alongside the producible profile list. The rows were
// inserted in preference order, so producible profile i is HLS variant
// ordinal i. Rows left over from earlier attempts are already terminal and
// skipped.
func (w *Worker) loadRenditions(ctx context.Context, job Job, info video.SourceInfo) ([]*store.Rendition, []video.EncodedProfile, error) {
	rows, err := w.Store.SelectRenditionsByVideoID(ctx, job.VideoID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load renditions: %w", err)
	}

	var (
		renditions []*store.Rendition
		producible []video.EncodedProfile
	)
	for _, r := range rows {
		if r.Status != store.RenditionStatusProcessing {
			continue
		}
		renditions = append(renditions, r)

		p := video.EncodedProfile{Name: r.RepresentationID, Bitrate: r.Bitrate, Resolution: r.Resolution}
		if h := p.Height(); h > 0 && info.Height > 0 && h > info.Height {
			log.Log(job.RequestID, "skipping rendition above source resolution", "representation", p.Name, "target_height", h, "source_height", info.Height)
			r.Status = store.RenditionStatusFailed
			if err := w.Store.UpdateRendition(ctx, r); err != nil {
				return nil, nil, fmt.Errorf("failed to fail rendition %s: %w", p.Name, err)
			}
			metrics.Metrics.RenditionResults.WithLabelValues(p.Name, string(store.RenditionStatusFailed)).Inc()
			continue
		}
		producible = append(producible, p)
	}
	if len(renditions) == 0 {
		return nil, nil, fmt.Errorf("no processing renditions found for video %d", job.VideoID)
	}
	return renditions, producible, nil
}

func anyReady(renditions []*store.Rendition) bool {
	for _, r := range renditions {
		if r.Status == store.RenditionStatusReady {
			return true
		}
	}
	return false
}

// publishRenditions maps encoder output playlists back onto rendition rows.
// The encode names variant playlists by ordinal, so producible rendition i
// expects stream_i.m3u8; if that exact file is missing the first unclaimed
// variant playlist is taken instead, and a rendition with no playlist at all
// is marked failed.
func (w *Worker) publishRenditions(ctx context.Context, job Job, outDir string, renditions []*store.Rendition) error {
	unclaimed, err := variantPlaylists(outDir)
	if err != nil {
		return err
	}

	ordinal := 0
	for _, r := range renditions {
		if r.Status != store.RenditionStatusProcessing {
			continue
		}
		name := video.VariantPlaylistName(ordinal)
		ordinal++
		if !unclaimed[name] {
			name = ""
			for _, candidate := range sortedKeys(unclaimed) {
				if unclaimed[candidate] {
					name = candidate
					log.Log(job.RequestID, "expected variant playlist missing, claiming fallback", "representation", r.RepresentationID, "playlist", candidate)
					break
				}
			}
		}
		if name == "" {
			log.Log(job.RequestID, "no variant playlist produced for rendition", "representation", r.RepresentationID)
			r.Status = store.RenditionStatusFailed
		} else {
			unclaimed[name] = false
			r.ManifestPath = config.HLSPrefix(job.VideoID) + "/" + name
			r.Status = store.RenditionStatusReady
		}
		if err := w.Store.UpdateRendition(ctx, r); err != nil {
			return fmt.Errorf("failed to update rendition %s: %w", r.RepresentationID, err)
		}
		metrics.Metrics.RenditionResults.WithLabelValues(r.RepresentationID, string(r.Status)).Inc()
	}
	return nil
}

// variantPlaylists lists the variant playlist filenames in outDir, mapped to
// an unclaimed flag.
func variantPlaylists(outDir string) (map[string]bool, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list encode output: %w", err)
	}
	playlists := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() || !video.IsPlaylist(e.Name()) || e.Name() == config.MasterManifestFilename {
			continue
		}
		playlists[e.Name()] = true
	}
	return playlists, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// uploadArtifacts pushes every playlist and segment in outDir to object
// storage under the video's HLS prefix. Uploads are retried; a file that
// still fails aborts the job since a playlist referencing missing segments
// is worse than a failed video.
func (w *Worker) uploadArtifacts(job Job, outDir string) error {
	start := time.Now()
	defer func() {
		metrics.Metrics.ArtifactUploadDurationSec.Observe(time.Since(start).Seconds())
	}()

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return fmt.Errorf("failed to list encode output: %w", err)
	}
	uploaded := 0
	for _, e := range entries {
		if e.IsDir() || !video.IsArtifact(e.Name()) {
			continue
		}
		body, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			return fmt.Errorf("failed to read artifact %s: %w", e.Name(), err)
		}
		key := config.HLSPrefix(job.VideoID) + "/" + e.Name()
		contentType := video.MimeTypeByExtension(e.Name())

		retries := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 2)
		err = backoff.Retry(func() error {
			return w.ObjectStore.Put(key, body, contentType)
		}, retries)
		if err != nil {
			return fmt.Errorf("failed to upload artifact %s: %w", key, err)
		}
		uploaded++
	}
	log.Log(job.RequestID, "uploaded artifacts", "video_id", job.VideoID, "count", uploaded, "duration", time.Since(start))
	return nil
}

// verifyMasterPlaylist parses the encoder-produced master playlist and checks
// it references one variant per producible rendition. Catching a broken or
// truncated master here beats serving it to a player.
func verifyMasterPlaylist(path string, wantVariants int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("master playlist missing after encode: %w", err)
	}
	defer f.Close()
	playlist, listType, err := m3u8.DecodeFrom(f, true)
	if err != nil {
		return fmt.Errorf("failed to parse master playlist: %w", err)
	}
	if listType != m3u8.MASTER {
		return fmt.Errorf("expected master playlist at %s, got media playlist", path)
	}
	master := playlist.(*m3u8.MasterPlaylist)
	if len(master.Variants) != wantVariants {
		return fmt.Errorf("master playlist has %d variants, expected %d", len(master.Variants), wantVariants)
	}
	return nil
}

// generateCover grabs a frame from the source, uploads it and attaches it as
// the video cover. Best effort: a video without a cover is still playable.
func (w *Worker) generateCover(ctx context.Context, job Job, ws *workspace, vid *store.Video, info video.SourceInfo) {
	atSeconds := 1.0
	if info.Duration > 0 && info.Duration < 2 {
		atSeconds = info.Duration / 2
	}
	coverPath := filepath.Join(ws.Dir, "cover.jpg")
	if err := video.GenerateThumbnail(ws.SourcePath(), coverPath, atSeconds); err != nil {
		log.LogError(job.RequestID, "failed to generate cover frame", err, "video_id", job.VideoID)
		return
	}
	body, err := os.ReadFile(coverPath)
	if err != nil {
		log.LogError(job.RequestID, "failed to read generated cover", err, "video_id", job.VideoID)
		return
	}
	key := fmt.Sprintf("videos/%d/cover.jpg", job.VideoID)
	if err := w.ObjectStore.Put(key, body, "image/jpeg"); err != nil {
		log.LogError(job.RequestID, "failed to upload cover", err, "video_id", job.VideoID)
		return
	}
	att := &store.Attachment{
		StorageKey:       key,
		MimeType:         "image/jpeg",
		UploaderID:       vid.UploaderID,
		OriginalFilename: "cover.jpg",
		Status:           "uploaded",
	}
	if err := w.Store.InsertAttachment(ctx, att); err != nil {
		log.LogError(job.RequestID, "failed to persist cover attachment", err, "video_id", job.VideoID)
		return
	}
	vid.CoverAssetID = &att.ID
	log.Log(job.RequestID, "generated video cover", "video_id", job.VideoID, "attachment_id", att.ID)
}

// markAllFailed is the terminal error path: the video and every rendition of
// it still marked processing flip to failed. Best effort, the job error has
// already been logged.
func (w *Worker) markAllFailed(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if vid, err := w.Store.SelectVideoByID(ctx, job.VideoID); err == nil {
		vid.Status = store.VideoStatusFailed
		if err := w.Store.UpdateVideo(ctx, vid); err != nil {
			log.LogError(job.RequestID, "failed to mark video failed", err, "video_id", job.VideoID)
		}
	} else {
		log.LogError(job.RequestID, "failed to load video for failure handling", err, "video_id", job.VideoID)
	}

	renditions, err := w.Store.SelectRenditionsByVideoID(ctx, job.VideoID)
	if err != nil {
		log.LogError(job.RequestID, "failed to load renditions for failure handling", err, "video_id", job.VideoID)
		return
	}
	for _, r := range renditions {
		if r.Status != store.RenditionStatusProcessing {
			continue
		}
		r.Status = store.RenditionStatusFailed
		if err := w.Store.UpdateRendition(ctx, r); err != nil {
			log.LogError(job.RequestID, "failed to mark rendition failed", err, "rendition_id", r.ID)
			continue
		}
		metrics.Metrics.RenditionResults.WithLabelValues(r.RepresentationID, string(store.RenditionStatusFailed)).Inc()
	}
}
