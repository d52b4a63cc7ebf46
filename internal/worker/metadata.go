package worker

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	probe "gopkg.in/vansante/go-ffprobe.v2"

	"fileforge/internal/models"

	"github.com/google/uuid"
)

// HandleMetadata implements METADATA (spec §4.D routes it to
// image_queue; spec §4.E is silent on its body, resolved in DESIGN.md's
// Open Question decision as extracting basic dimension/format/container
// info and upserting it into FileMetadata). It produces no derived File,
// matching ActionKind.ProducesArtifact's false case for this action.
func HandleMetadata(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
	exif := models.JSONMap{}
	videoInfo := models.JSONMap{}

	if looksLikeVideo(jc.OriginalName) {
		data, err := probe.GetProbeData(jc.InputPath, ctx)
		if err != nil {
			videoInfo["error"] = err.Error()
		} else {
			videoInfo["duration_seconds"] = data.Format.DurationSeconds
			videoInfo["format_name"] = data.Format.FormatName
			if v := data.FirstVideoStream(); v != nil {
				videoInfo["width"] = v.Width
				videoInfo["height"] = v.Height
				videoInfo["codec"] = v.CodecName
			}
		}
	} else {
		f, err := os.Open(jc.InputPath)
		if err == nil {
			defer f.Close()
			cfg, format, decErr := image.DecodeConfig(f)
			if decErr == nil {
				exif["width"] = cfg.Width
				exif["height"] = cfg.Height
				exif["format"] = format
			}
		}
	}

	existing, err := rt.Metadata.GetByFileID(ctx, jc.FileID)
	if err != nil {
		return nil, fmt.Errorf("metadata: load existing: %w", err)
	}
	meta := existing
	if meta == nil {
		meta = &models.FileMetadata{ID: uuid.New(), FileID: jc.FileID}
	}
	if len(exif) > 0 {
		meta.ExifData = exif
	}
	if len(videoInfo) > 0 {
		meta.VideoInfo = videoInfo
	}

	if err := rt.Metadata.Upsert(ctx, meta); err != nil {
		return nil, fmt.Errorf("metadata: upsert: %w", err)
	}
	if err := rt.Jobs.Complete(ctx, nil, jc.JobID, nil); err != nil {
		return nil, fmt.Errorf("metadata: record completion: %w", err)
	}
	return nil, nil
}

func looksLikeVideo(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".mp4", ".mov", ".mkv", ".avi", ".webm"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
