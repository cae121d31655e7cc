package video

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/soratv/vod-api/subprocess"
)

// EncodeSpec is a typed description of one multi-rendition HLS encode. The
// argument compiler below turns it into an ffmpeg argv; keeping the two
// separate lets tests cover the command construction without running any
// process.
type EncodeSpec struct {
	SourcePath string
	OutDir     string
	// Renditions to produce, already feasibility-filtered and sorted by
	// preference. Variant ordinal i in the HLS output corresponds to
	// Renditions[i].
	Renditions []EncodedProfile
	// Audio is mapped and encoded per variant only when the source has an
	// audio stream; mapping a missing stream makes ffmpeg fail.
	HasAudio       bool
	SegmentSeconds int
}

const (
	defaultRenditionResolution = "1280x720"
	audioBitrate               = "128k"
	defaultSegmentSeconds      = 6
)

// filterGraph builds the filter_complex expression: split the decoded video
// into one branch per rendition and scale each branch to its target
// resolution. The scale filter takes w:h, not the WxH form profiles carry.
//
//	[0:v]split=2[v0][v1];[v0]scale=1920:1080[v0out];[v1]scale=1280:720[v1out];
func (s EncodeSpec) filterGraph() string {
	n := len(s.Renditions)
	var fc strings.Builder
	fmt.Fprintf(&fc, "[0:v]split=%d", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&fc, "[v%d]", i)
	}
	fc.WriteString(";")
	for i, r := range s.Renditions {
		resolution := r.Resolution
		if resolution == "" {
			resolution = defaultRenditionResolution
		}
		fmt.Fprintf(&fc, "[v%d]scale=%s[v%dout];", i, strings.Replace(resolution, "x", ":", 1), i)
	}
	return fc.String()
}

// varStreamMap names the HLS variants by ordinal: "v:0,a:0 v:1,a:1" with
// audio present, "v:0 v:1" without.
func (s EncodeSpec) varStreamMap() string {
	parts := make([]string, len(s.Renditions))
	for i := range s.Renditions {
		if s.HasAudio {
			parts[i] = fmt.Sprintf("v:%d,a:%d", i, i)
		} else {
			parts[i] = fmt.Sprintf("v:%d", i)
		}
	}
	return strings.Join(parts, " ")
}

// CompileArgs produces the full ffmpeg argument vector (excluding the binary
// name) for a single-pass encode of every rendition: one master playlist
// plus stream_<ordinal>.m3u8 and segments per variant, written to OutDir.
func (s EncodeSpec) CompileArgs() []string {
	segmentSeconds := s.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = defaultSegmentSeconds
	}

	args := []string{
		"-y",
		"-i", s.SourcePath,
		"-filter_complex", s.filterGraph(),
	}
	for i, r := range s.Renditions {
		args = append(args, "-map", fmt.Sprintf("[v%dout]", i))
		if s.HasAudio {
			args = append(args, "-map", "0:a")
		}
		args = append(args,
			fmt.Sprintf("-c:v:%d", i), "libx264",
			fmt.Sprintf("-b:v:%d", i), fmt.Sprintf("%d", r.Bitrate),
		)
		if s.HasAudio {
			args = append(args,
				fmt.Sprintf("-c:a:%d", i), "aac",
				fmt.Sprintf("-b:a:%d", i), audioBitrate,
			)
		}
	}
	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", segmentSeconds),
		"-hls_playlist_type", "vod",
		"-master_pl_name", "master.m3u8",
		"-var_stream_map", s.varStreamMap(),
		filepath.Join(s.OutDir, "stream_%v.m3u8"),
	)
	return args
}

// VariantPlaylistName is the output filename the encode writes for the
// rendition at the given ordinal. Step 9 of the job uses this as a direct
// lookup rather than parsing encoder output names.
func VariantPlaylistName(ordinal int) string {
	return fmt.Sprintf("stream_%d.m3u8", ordinal)
}

// Runner executes an external encode. The real implementation shells out to
// ffmpeg; tests inject fakes.
type Runner interface {
	Run(ctx context.Context, requestID string, args []string) error
}

type FFmpegRunner struct {
	// Path to the ffmpeg binary, "ffmpeg" when empty.
	Path string
}

// Run invokes ffmpeg and waits for it to finish. Cancelling or timing out
// the context kills the process; a non-zero exit is returned as an error.
func (r FFmpegRunner) Run(ctx context.Context, requestID string, args []string) error {
	bin := r.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if err := subprocess.LogOutputs(cmd); err != nil {
		return err
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}
