// Package service implements the video lifecycle: upload tickets, video
// records, transcode kickoff, playback URL signing and playlist rewriting.
// It sits between the HTTP handlers and the store/pipeline/storage layers
// and owns all ownership and status checks.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soratv/vod-api/clients"
	"github.com/soratv/vod-api/config"
	xerrors "github.com/soratv/vod-api/errors"
	"github.com/soratv/vod-api/log"
	"github.com/soratv/vod-api/metrics"
	"github.com/soratv/vod-api/pipeline"
	"github.com/soratv/vod-api/playback"
	"github.com/soratv/vod-api/store"
	"github.com/soratv/vod-api/video"
)

// Dispatcher admits transcode jobs; implemented by pipeline.Coordinator.
type Dispatcher interface {
	Dispatch(job pipeline.Job) error
	InFlight(videoID int64) bool
}

type VideoService struct {
	Store      store.Store
	Objects    clients.ObjectStore
	Dispatcher Dispatcher
}

type CreateVideoParams struct {
	UploaderID    int64
	Title         string
	Description   string
	SourceAssetID int64
	CoverAssetID  *int64
}

// CreateVideo records a new video pointing at an already-uploaded source
// attachment. The attachment must exist and belong to the uploader. A
// standard-ladder transcode is kicked off right away; if that fails the video
// stays at uploading and the transcode endpoint can retry it.
func (s *VideoService) CreateVideo(ctx context.Context, requestID string, p CreateVideoParams) (*store.Video, error) {
	if p.SourceAssetID == 0 {
		return nil, xerrors.MissingSourceError
	}
	src, err := s.Store.SelectAttachmentByID(ctx, p.SourceAssetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, xerrors.ObjectNotFoundError
		}
		return nil, fmt.Errorf("failed to load source attachment: %w", err)
	}
	if src.UploaderID != p.UploaderID {
		return nil, xerrors.NotOwnerError
	}
	if p.CoverAssetID != nil {
		if _, err := s.Store.SelectAttachmentByID(ctx, *p.CoverAssetID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, xerrors.ObjectNotFoundError
			}
			return nil, fmt.Errorf("failed to load cover attachment: %w", err)
		}
	}

	vid := &store.Video{
		UploaderID:    p.UploaderID,
		Title:         p.Title,
		Description:   p.Description,
		SourceAssetID: p.SourceAssetID,
		CoverAssetID:  p.CoverAssetID,
		Status:        store.VideoStatusUploading,
	}
	if err := s.Store.InsertVideo(ctx, vid); err != nil {
		return nil, fmt.Errorf("failed to insert video: %w", err)
	}
	log.Log(requestID, "created video record", "video_id", vid.ID, "uploader_id", p.UploaderID, "source_asset_id", p.SourceAssetID)

	if err := s.StartTranscode(ctx, requestID, vid.ID, p.UploaderID, nil); err != nil {
		log.LogError(requestID, "failed to start transcode for new video", err, "video_id", vid.ID)
	} else if fresh, err := s.Store.SelectVideoByID(ctx, vid.ID); err == nil {
		vid = fresh
	}
	return vid, nil
}

// StartTranscode validates the request, writes one processing rendition row
// per profile plus the processing video status, and hands a job to the
// coordinator. The rows exist before the job starts so pollers see
// per-rendition progress immediately and the worker only has to load them.
// An empty profile list means the standard ladder. Returns
// JobAlreadyActiveError when a job for this video is still in flight.
func (s *VideoService) StartTranscode(ctx context.Context, requestID string, videoID, operatorID int64, profiles []video.EncodedProfile) error {
	vid, err := s.loadVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if vid.UploaderID != operatorID {
		return xerrors.NotOwnerError
	}
	if len(profiles) == 0 {
		profiles = video.StandardLadder
	}
	if err := validateProfiles(profiles); err != nil {
		return err
	}
	src, err := s.Store.SelectAttachmentByID(ctx, vid.SourceAssetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return xerrors.ObjectNotFoundError
		}
		return fmt.Errorf("failed to load source attachment: %w", err)
	}
	if s.Dispatcher.InFlight(vid.ID) {
		return xerrors.JobAlreadyActiveError
	}

	// Insertion order is the variant ordinal the encode will produce, so the
	// rows go in sorted by preference.
	sorted := make([]video.EncodedProfile, len(profiles))
	copy(sorted, profiles)
	video.SortByPreference(sorted)
	renditions := make([]*store.Rendition, 0, len(sorted))
	for _, p := range sorted {
		r := &store.Rendition{
			VideoID:          vid.ID,
			RepresentationID: p.Name,
			Bitrate:          p.Bitrate,
			Resolution:       p.Resolution,
			Status:           store.RenditionStatusProcessing,
		}
		if err := s.Store.InsertRendition(ctx, r); err != nil {
			return fmt.Errorf("failed to insert rendition %s: %w", p.Name, err)
		}
		renditions = append(renditions, r)
	}
	vid.Status = store.VideoStatusProcessing
	if err := s.Store.UpdateVideo(ctx, vid); err != nil {
		return fmt.Errorf("failed to mark video processing: %w", err)
	}

	err = s.Dispatcher.Dispatch(pipeline.Job{
		RequestID:     requestID,
		VideoID:       vid.ID,
		SourceKey:     src.StorageKey,
		Profiles:      sorted,
		GenerateCover: vid.CoverAssetID == nil,
	})
	if err != nil {
		// Lost an admission race after the in-flight check. The running job
		// owns the video status, but our rows must not dangle as processing.
		for _, r := range renditions {
			r.Status = store.RenditionStatusFailed
			if uerr := s.Store.UpdateRendition(ctx, r); uerr != nil {
				log.LogError(requestID, "failed to fail rendition after dispatch rejection", uerr, "rendition_id", r.ID)
			}
		}
		return err
	}
	log.Log(requestID, "dispatched transcode job", "video_id", vid.ID, "profiles", len(sorted))
	return nil
}

func validateProfiles(profiles []video.EncodedProfile) error {
	for _, p := range profiles {
		if p.Name == "" {
			return fmt.Errorf("%w: missing representationId", xerrors.InvalidProfilesError)
		}
		if p.Bitrate <= 0 {
			return fmt.Errorf("%w: representation %s has bitrate %d", xerrors.InvalidProfilesError, p.Name, p.Bitrate)
		}
		if _, _, err := video.ParseResolution(p.Resolution); err != nil {
			return fmt.Errorf("%w: %s", xerrors.InvalidProfilesError, err)
		}
	}
	return nil
}

// VideoDetails is a video plus its renditions, as returned to API clients.
type VideoDetails struct {
	Video      *store.Video       `json:"video"`
	Renditions []*store.Rendition `json:"renditions"`
}

func (s *VideoService) GetVideo(ctx context.Context, videoID int64) (*VideoDetails, error) {
	vid, err := s.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	renditions, err := s.Store.SelectRenditionsByVideoID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load renditions: %w", err)
	}
	return &VideoDetails{Video: vid, Renditions: renditions}, nil
}

// ListVideos returns all non-deleted videos.
func (s *VideoService) ListVideos(ctx context.Context) ([]*store.Video, error) {
	videos, err := s.Store.SelectVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	out := make([]*store.Video, 0, len(videos))
	for _, v := range videos {
		if v.Status == store.VideoStatusDeleted {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// DeleteVideo soft-deletes a video. Only the uploader may delete; the HLS
// artifacts stay in the bucket but every playback path refuses deleted
// videos.
func (s *VideoService) DeleteVideo(ctx context.Context, requestID string, videoID, operatorID int64) error {
	vid, err := s.loadVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if vid.UploaderID != operatorID {
		return xerrors.NotOwnerError
	}
	vid.Status = store.VideoStatusDeleted
	if err := s.Store.UpdateVideo(ctx, vid); err != nil {
		return fmt.Errorf("failed to mark video deleted: %w", err)
	}
	// A deleted video has no playable renditions; any not already terminal
	// flip to failed so pollers see a settled state.
	renditions, err := s.Store.SelectRenditionsByVideoID(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to load renditions: %w", err)
	}
	for _, r := range renditions {
		if r.Status == store.RenditionStatusFailed {
			continue
		}
		r.Status = store.RenditionStatusFailed
		if err := s.Store.UpdateRendition(ctx, r); err != nil {
			return fmt.Errorf("failed to fail rendition %d: %w", r.ID, err)
		}
	}
	log.Log(requestID, "deleted video", "video_id", videoID, "operator_id", operatorID)
	return nil
}

// ToggleLike flips the operator's like on the video and returns the new
// liked state with the updated count.
func (s *VideoService) ToggleLike(ctx context.Context, videoID, userID int64) (bool, int64, error) {
	if _, err := s.loadVideo(ctx, videoID); err != nil {
		return false, 0, err
	}
	return s.Store.ToggleLike(ctx, videoID, userID)
}

func (s *VideoService) loadVideo(ctx context.Context, videoID int64) (*store.Video, error) {
	vid, err := s.Store.SelectVideoByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, xerrors.VideoNotFoundError
		}
		return nil, fmt.Errorf("failed to load video %d: %w", videoID, err)
	}
	if vid.Status == store.VideoStatusDeleted {
		return nil, xerrors.VideoNotFoundError
	}
	return vid, nil
}

// MasterPlaylistURL signs a GET URL for the video's master playlist at its
// conventional storage key. Players that want gated segment delivery instead
// start from the playlist-proxy endpoint.
func (s *VideoService) MasterPlaylistURL(ctx context.Context, videoID int64, expirySeconds int) (string, error) {
	vid, err := s.loadVideo(ctx, videoID)
	if err != nil {
		return "", err
	}
	if vid.Status != store.VideoStatusReady {
		return "", xerrors.VideoNotReadyError
	}
	url, err := s.Objects.PresignGet(config.MasterManifestKey(videoID), playback.SigningExpiry(defaultExpiry(expirySeconds)))
	if err != nil {
		return "", fmt.Errorf("failed to sign master playlist URL: %w", err)
	}
	return url, nil
}

// PlayableURL is one directly playable rendition manifest.
type PlayableURL struct {
	RepresentationID string `json:"representationId"`
	Resolution       string `json:"resolution,omitempty"`
	Bitrate          int64  `json:"bitrate"`
	URL              string `json:"url"`
}

// PlayableURLs signs the manifest of every ready rendition. Renditions that
// failed or are still processing are omitted.
func (s *VideoService) PlayableURLs(ctx context.Context, videoID int64, expirySeconds int) ([]PlayableURL, error) {
	vid, err := s.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if vid.Status != store.VideoStatusReady {
		return nil, xerrors.VideoNotReadyError
	}
	renditions, err := s.Store.SelectRenditionsByVideoID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load renditions: %w", err)
	}
	expiry := playback.SigningExpiry(defaultExpiry(expirySeconds))

	var out []PlayableURL
	for _, r := range renditions {
		if r.Status != store.RenditionStatusReady || r.ManifestPath == "" {
			continue
		}
		url, err := s.Objects.PresignGet(r.ManifestPath, expiry)
		if err != nil {
			return nil, fmt.Errorf("failed to sign manifest %s: %w", r.ManifestPath, err)
		}
		out = append(out, PlayableURL{
			RepresentationID: r.RepresentationID,
			Resolution:       r.Resolution,
			Bitrate:          r.Bitrate,
			URL:              url,
		})
	}
	return out, nil
}

// RewrittenPlaylist fetches the named playlist from storage and rewrites it
// for gated delivery: master playlists point back at this API, variant
// playlists carry signed segment URLs.
func (s *VideoService) RewrittenPlaylist(ctx context.Context, requestID string, videoID int64, name string, expirySeconds int) (string, error) {
	if name == "" {
		name = config.MasterManifestFilename
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return "", xerrors.InvalidPlaylistName
	}
	if _, err := s.loadVideo(ctx, videoID); err != nil {
		return "", err
	}
	expirySeconds = defaultExpiry(expirySeconds)

	req := playback.Request{VideoID: videoID, Name: name, ExpirySeconds: expirySeconds}
	kind := "variant"
	if req.IsMaster() {
		kind = "master"
	}
	metrics.Metrics.PlaylistRewriteCount.WithLabelValues(kind).Inc()

	key := config.HLSPrefix(videoID) + "/" + name
	fetchURL, err := s.Objects.PresignGet(key, config.MinSigningExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign playlist fetch URL: %w", err)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, config.PlaylistFetchTimeout)
	defer cancel()
	content, err := clients.FetchText(fetchCtx, fetchURL)
	if err != nil {
		if xerrors.IsUnretriable(err) {
			return "", xerrors.ObjectNotFoundError
		}
		return "", fmt.Errorf("failed to fetch playlist %s: %w", key, err)
	}

	sign := func(segmentKey string, expiry time.Duration) (string, error) {
		url, err := s.Objects.PresignGet(segmentKey, expiry)
		if err != nil {
			metrics.Metrics.SegmentSignFailureCount.Inc()
			log.LogError(requestID, "failed to sign segment URL, passing line through", err, "key", segmentKey)
		}
		return url, err
	}
	return playback.Rewrite(req, content, sign), nil
}

func defaultExpiry(expirySeconds int) int {
	if expirySeconds <= 0 {
		return int(config.DefaultSigningExpiry.Seconds())
	}
	return expirySeconds
}
