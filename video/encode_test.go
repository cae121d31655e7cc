package video

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterGraph(t *testing.T) {
	spec := EncodeSpec{
		Renditions: []EncodedProfile{
			{Name: "720p", Bitrate: 1_800_000, Resolution: "1280x720"},
			{Name: "360p", Bitrate: 650_000, Resolution: "640x360"},
		},
	}
	require.Equal(t,
		"[0:v]split=2[v0][v1];[v0]scale=1280:720[v0out];[v1]scale=640:360[v1out];",
		spec.filterGraph(),
	)
}

func TestFilterGraphDefaultsMissingResolution(t *testing.T) {
	spec := EncodeSpec{
		Renditions: []EncodedProfile{{Name: "unknown", Bitrate: 800_000}},
	}
	require.Equal(t,
		"[0:v]split=1[v0];[v0]scale=1280:720[v0out];",
		spec.filterGraph(),
	)
}

func TestVarStreamMap(t *testing.T) {
	spec := EncodeSpec{
		Renditions: []EncodedProfile{{Name: "720p"}, {Name: "360p"}, {Name: "240p"}},
	}
	require.Equal(t, "v:0 v:1 v:2", spec.varStreamMap())

	spec.HasAudio = true
	require.Equal(t, "v:0,a:0 v:1,a:1 v:2,a:2", spec.varStreamMap())
}

func TestCompileArgsWithAudio(t *testing.T) {
	spec := EncodeSpec{
		SourcePath: "/tmp/src.mp4",
		OutDir:     "/tmp/out",
		Renditions: []EncodedProfile{
			{Name: "720p", Bitrate: 1_800_000, Resolution: "1280x720"},
			{Name: "240p", Bitrate: 400_000, Resolution: "426x240"},
		},
		HasAudio: true,
	}
	args := spec.CompileArgs()
	joined := strings.Join(args, " ")

	require.Contains(t, joined, "-i /tmp/src.mp4")
	require.Contains(t, joined, "-map [v0out] -map 0:a -c:v:0 libx264 -b:v:0 1800000 -c:a:0 aac -b:a:0 128k")
	require.Contains(t, joined, "-map [v1out] -map 0:a -c:v:1 libx264 -b:v:1 400000 -c:a:1 aac -b:a:1 128k")
	require.Contains(t, joined, "-f hls -hls_time 6 -hls_playlist_type vod -master_pl_name master.m3u8")
	require.Contains(t, joined, "-var_stream_map v:0,a:0 v:1,a:1")
	require.Equal(t, "/tmp/out/stream_%v.m3u8", args[len(args)-1])
}

func TestCompileArgsWithoutAudio(t *testing.T) {
	spec := EncodeSpec{
		SourcePath: "/tmp/src.mp4",
		OutDir:     "/tmp/out",
		Renditions: []EncodedProfile{
			{Name: "360p", Bitrate: 650_000, Resolution: "640x360"},
		},
	}
	joined := strings.Join(spec.CompileArgs(), " ")

	require.NotContains(t, joined, "0:a")
	require.NotContains(t, joined, "aac")
	require.Contains(t, joined, "-var_stream_map v:0")
}

func TestVariantPlaylistName(t *testing.T) {
	require.Equal(t, "stream_0.m3u8", VariantPlaylistName(0))
	require.Equal(t, "stream_3.m3u8", VariantPlaylistName(3))
}

func TestMimeTypeByExtension(t *testing.T) {
	require.Equal(t, "application/vnd.apple.mpegurl", MimeTypeByExtension("master.m3u8"))
	require.Equal(t, "video/mp2t", MimeTypeByExtension("stream_0001.ts"))
	require.Equal(t, "video/mp4", MimeTypeByExtension("clip.MP4"))
	require.Equal(t, "application/octet-stream", MimeTypeByExtension("notes.txt"))
}
