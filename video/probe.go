package video

import (
	"context"
	"errors"

	"github.com/soratv/vod-api/config"
	"github.com/soratv/vod-api/log"
	"gopkg.in/vansante/go-ffprobe.v2"
)

var errNoVideoStream = errors.New("no video stream found")

// SourceInfo is what the worker needs to know about an uploaded file before
// it builds the encode: the primary video stream's dimensions and whether
// any audio stream exists.
type SourceInfo struct {
	Width    int64
	Height   int64
	HasAudio bool
	Duration float64
}

// FallbackSourceInfo is assumed when probing fails. Transcoding proceeds
// best-effort rather than aborting over a probe error.
var FallbackSourceInfo = SourceInfo{Width: 1920, Height: 1080, HasAudio: true}

type Prober interface {
	ProbeSource(requestID, path string) SourceInfo
}

type Probe struct{}

// ProbeSource runs two independent ffprobe passes against the local file:
// one for the primary video stream's resolution, one for audio presence.
// Any probe failure falls back to 1920x1080 with audio present.
func (p Probe) ProbeSource(requestID, path string) SourceInfo {
	info, err := p.probeResolution(path)
	if err == nil {
		info.HasAudio, err = p.probeAudio(path)
	}
	if err != nil {
		log.LogError(requestID, "ffprobe failed, assuming 1080p source with audio", err, "path", path)
		return FallbackSourceInfo
	}
	return info
}

func (p Probe) probeResolution(path string) (SourceInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ResolutionProbeTimeout)
	defer cancel()
	data, err := ffprobe.ProbeURL(ctx, path, "-loglevel", "error")
	if err != nil {
		return SourceInfo{}, err
	}
	videoStream := data.FirstVideoStream()
	if videoStream == nil {
		return SourceInfo{}, errNoVideoStream
	}
	var duration float64
	if data.Format != nil {
		duration = data.Format.DurationSeconds
	}
	return SourceInfo{
		Width:    int64(videoStream.Width),
		Height:   int64(videoStream.Height),
		Duration: duration,
	}, nil
}

func (p Probe) probeAudio(path string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.AudioProbeTimeout)
	defer cancel()
	data, err := ffprobe.ProbeURL(ctx, path, "-loglevel", "error", "-select_streams", "a")
	if err != nil {
		return false, err
	}
	return data.FirstAudioStream() != nil, nil
}
