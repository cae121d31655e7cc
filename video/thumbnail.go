package video

import (
	"bytes"
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// GenerateThumbnail extracts a single frame from the source file as a JPEG
// cover image. Used when a video is created without a cover attachment;
// failures are reported but the job treats them as non-fatal.
func GenerateThumbnail(sourcePath, outPath string, atSeconds float64) error {
	ffmpegErr := bytes.Buffer{}
	err := ffmpeg.Input(sourcePath, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.2f", atSeconds)}).
		Output(outPath, ffmpeg.KwArgs{
			"vframes": 1,
			"vf":      "scale=640:-2",
			"q:v":     4,
		}).OverWriteOutput().WithErrorOutput(&ffmpegErr).Run()
	if err != nil {
		return fmt.Errorf("failed to extract thumbnail from %s [%s]: %w", sourcePath, ffmpegErr.String(), err)
	}
	return nil
}
