// Package playback rewrites HLS playlists for gated delivery. Clients never
// see raw storage keys: master playlists point variants back at our own
// playlist proxy endpoint, and variant playlists get their segment lines
// swapped for short-lived signed URLs. Because the signed URLs expire, the
// rewrite happens per request instead of being cached.
package playback

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/soratv/vod-api/config"
)

// SignFunc signs a storage key for GET access. Implementations come from the
// object storage gateway; tests inject fakes.
type SignFunc func(key string, expiry time.Duration) (string, error)

// Request carries everything the rewrite needs besides the playlist text
// itself. ExpirySeconds is the client-requested expiry, propagated verbatim
// into proxy links; signing clamps it to at least config.MinSigningExpiry.
type Request struct {
	VideoID       int64
	Name          string
	ExpirySeconds int
}

// IsMaster reports whether the requested playlist name denotes the master
// playlist (variant playlists are stream_<ordinal>.m3u8).
func (r Request) IsMaster() bool {
	return strings.HasSuffix(strings.ToLower(r.Name), config.MasterManifestFilename)
}

// ProxyPath is the self-referential path substituted for a variant reference
// in a master playlist. Signing of that variant's segments is deferred until
// a player actually requests it.
func ProxyPath(videoID int64, name string, expirySeconds int) string {
	return fmt.Sprintf("/api/videos/%d/hls/playlist?name=%s&expiry=%d",
		videoID, url.QueryEscape(name), expirySeconds)
}

// SigningExpiry clamps a client-requested expiry to the minimum we are
// willing to embed into a playlist.
func SigningExpiry(expirySeconds int) time.Duration {
	expiry := time.Duration(expirySeconds) * time.Second
	if expiry < config.MinSigningExpiry {
		return config.MinSigningExpiry
	}
	return expiry
}

// Rewrite transforms raw playlist text line by line:
//   - blank lines and HLS tags/comments pass through unchanged;
//   - absolute URLs pass through unchanged;
//   - in a master playlist, every variant reference becomes a proxy path;
//   - in a variant playlist, every segment reference becomes a signed URL,
//     falling back to the original line if signing fails so one bad segment
//     does not kill the whole playlist.
func Rewrite(req Request, content string, sign SignFunc) string {
	basePrefix := config.HLSPrefix(req.VideoID)
	isMaster := req.IsMaster()
	expiry := SigningExpiry(req.ExpirySeconds)

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var out strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out.WriteString(line)
			out.WriteString("\n")
			continue
		}
		if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
			out.WriteString(line)
			out.WriteString("\n")
			continue
		}

		if isMaster {
			out.WriteString(ProxyPath(req.VideoID, trimmed, req.ExpirySeconds))
			out.WriteString("\n")
			continue
		}

		// Variant playlist: the line is a segment reference. A leading slash
		// means bucket-root-relative; anything else lives next to the
		// playlist under the video's HLS prefix.
		var segmentKey string
		if strings.HasPrefix(trimmed, "/") {
			segmentKey = strings.TrimLeft(trimmed, "/")
		} else {
			segmentKey = basePrefix + "/" + trimmed
		}
		signed, err := sign(segmentKey, expiry)
		if err != nil || signed == "" {
			out.WriteString(line)
		} else {
			out.WriteString(signed)
		}
		out.WriteString("\n")
	}
	return out.String()
}
