package worker

import (
	"context"
	"fmt"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"fileforge/internal/storage"
)

// resolutionHeights maps the closed params.resolution enum to output
// height; width is derived by ffmpeg's -2 trick to stay even.
var resolutionHeights = map[string]int{
	"480p":  480,
	"720p":  720,
	"1080p": 1080,
}

// HandleVideoThumbnail implements VIDEO_THUMBNAIL (spec §4.E.2):
// extract one frame at params.time (default 00:00:01), scale to width
// 640 keeping aspect ratio, write JPEG.
func HandleVideoThumbnail(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
	at := stringParam(jc, "time", "00:00:01")
	outPath := filepath.Join(jc.TempDir, "thumb.jpg")

	err := ffmpeg.Input(jc.InputPath, ffmpeg.KwArgs{"ss": at}).
		Output(outPath, ffmpeg.KwArgs{
			"vframes": 1,
			"vf":      "scale=640:-2",
		}).
		OverWriteOutput().
		Run()
	if err != nil {
		return nil, fmt.Errorf("video thumbnail: ffmpeg: %w", err)
	}

	name := stem(jc.OriginalName) + "_thumb.jpg"
	return &Output{LocalPath: outPath, Bucket: storage.BucketThumbnails, MimeType: "image/jpeg", Filename: name}, nil
}

// HandleVideoPreview implements VIDEO_PREVIEW (spec §4.E.2): the first
// params.duration seconds (default 10), H.264 1 Mbit/s video, AAC
// 128 kbit/s audio, MP4 container.
func HandleVideoPreview(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
	duration := intParam(jc, "duration", 10)
	outPath := filepath.Join(jc.TempDir, "preview.mp4")

	err := ffmpeg.Input(jc.InputPath).
		Output(outPath, ffmpeg.KwArgs{
			"t":        duration,
			"c:v":      "libx264",
			"b:v":      "1M",
			"c:a":      "aac",
			"b:a":      "128k",
			"movflags": "+faststart",
		}).
		OverWriteOutput().
		Run()
	if err != nil {
		return nil, fmt.Errorf("video preview: ffmpeg: %w", err)
	}

	name := stem(jc.OriginalName) + "_preview.mp4"
	return &Output{LocalPath: outPath, Bucket: storage.BucketProcessed, MimeType: "video/mp4", Filename: name}, nil
}

// HandleVideoConvert implements VIDEO_CONVERT (spec §4.E.2): scale
// height to params.resolution (default 720p) keeping even width,
// H.264/AAC at 2 Mbit/s / 192 kbit/s, container params.format (default
// mp4).
func HandleVideoConvert(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
	resolution := stringParam(jc, "resolution", "720p")
	format := stringParam(jc, "format", "mp4")

	height, ok := resolutionHeights[resolution]
	if !ok {
		height = resolutionHeights["720p"]
	}

	outPath := filepath.Join(jc.TempDir, "converted."+format)
	err := ffmpeg.Input(jc.InputPath).
		Output(outPath, ffmpeg.KwArgs{
			"vf":  fmt.Sprintf("scale=-2:%d", height),
			"c:v": "libx264",
			"b:v": "2M",
			"c:a": "aac",
			"b:a": "192k",
		}).
		OverWriteOutput().
		Run()
	if err != nil {
		return nil, fmt.Errorf("video convert: ffmpeg: %w", err)
	}

	name := fmt.Sprintf("%s_converted.%s", stem(jc.OriginalName), format)
	return &Output{LocalPath: outPath, Bucket: storage.BucketProcessed, MimeType: mimeForContainer(format), Filename: name}, nil
}

func mimeForContainer(format string) string {
	switch format {
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}
