package video

import (
	"path/filepath"
	"strings"
)

// MimeTypeByExtension maps produced artifact filenames onto the content
// types playback clients expect. Unknown extensions get octet-stream.
func MimeTypeByExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// IsPlaylist reports whether the filename is an HLS playlist.
func IsPlaylist(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".m3u8")
}

// IsArtifact reports whether a file in the encode output directory should be
// uploaded: playlists, MPEG-TS segments and fMP4 segments.
func IsArtifact(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".m3u8", ".ts", ".mp4":
		return true
	default:
		return false
	}
}
