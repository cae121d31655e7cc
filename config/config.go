package config

import (
	"fmt"
	"math/rand"
	"time"
)

var Version string

// Storage layout convention. The rewritten-playlist proxy endpoint and the
// hls.js frontend both depend on these exact paths, so they are fixed.
const (
	MasterManifestFilename = "master.m3u8"
	VariantManifestPattern = "stream_%v.m3u8"
)

// HLSPrefix is the storage key prefix holding all HLS artifacts for a video.
func HLSPrefix(videoID int64) string {
	return fmt.Sprintf("videos/%d/hls", videoID)
}

// MasterManifestKey is the storage key of a video's master playlist.
func MasterManifestKey(videoID int64) string {
	return HLSPrefix(videoID) + "/" + MasterManifestFilename
}

const (
	// Connection timeout when downloading the source asset.
	SourceDownloadTimeout = 30 * time.Minute
	// Bounds for the two ffprobe invocations.
	ResolutionProbeTimeout = 10 * time.Second
	AudioProbeTimeout      = 5 * time.Second
	// Hard wall-clock bound on one encode invocation. On expiry the ffmpeg
	// process is killed and the job fails.
	EncodeTimeout = 30 * time.Minute
	// Timeout for fetching playlist text during manifest rewriting.
	PlaylistFetchTimeout = 20 * time.Second

	// Signed URLs embedded into rewritten playlists never expire faster
	// than this, regardless of what the client asked for.
	MinSigningExpiry = 60 * time.Second
	// Expiry applied when the client does not pass one.
	DefaultSigningExpiry = 300 * time.Second
)

// MaxInFlightJobs bounds how many transcode jobs run concurrently.
var MaxInFlightJobs = 4

// RandomTrailer generates a random string of the given length to use as a
// request ID.
func RandomTrailer(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

	res := make([]byte, length)
	for i := 0; i < length; i++ {
		res[i] = charset[rand.Intn(len(charset))]
	}
	return string(res)
}
