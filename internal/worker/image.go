package worker

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"fileforge/internal/storage"
)

func intParam(jc *JobContext, key string, def int) int {
	if v, ok := jc.Params[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

func stringParam(jc *JobContext, key, def string) string {
	if v, ok := jc.Params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HandleThumbnail implements THUMBNAIL (spec §4.E.1): downsize to
// params.size (default 256x256), JPEG quality 85.
func HandleThumbnail(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
	size := intParam(jc, "size", 256)

	src, err := decodeImage(jc.InputPath)
	if err != nil {
		return nil, err
	}

	resized := imaging.Fit(src, size, size, imaging.Lanczos)
	bounds := resized.Bounds()

	outPath := filepath.Join(jc.TempDir, fmt.Sprintf("thumb_%dx%d.jpg", bounds.Dx(), bounds.Dy()))
	if err := encodeJPEG(outPath, resized, 85); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s_thumb_%dx%d.jpg", stem(jc.OriginalName), bounds.Dx(), bounds.Dy())
	return &Output{LocalPath: outPath, Bucket: storage.BucketThumbnails, MimeType: "image/jpeg", Filename: name}, nil
}

// HandleImageConvert implements IMAGE_CONVERT (spec §4.E.1): transcode
// to params.target_format (default WEBP), params.quality (default 85).
// Alpha is flattened to opaque white for formats without an alpha
// channel.
func HandleImageConvert(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
	target := strings.ToUpper(stringParam(jc, "target_format", "WEBP"))
	quality := intParam(jc, "quality", 85)

	src, err := decodeImage(jc.InputPath)
	if err != nil {
		return nil, err
	}

	var ext, mime string
	switch target {
	case "PNG":
		ext, mime = "png", "image/png"
	case "JPEG", "JPG":
		src = flattenToWhite(src)
		ext, mime = "jpg", "image/jpeg"
	default: // WEBP: pure Go has no WebP encoder; see DESIGN.md's open-question
		// decision. golang.org/x/image/webp is decode-only, and govips (the
		// encoder the teacher's own processor.go names for this) only appears
		// transitively in the teacher's go.mod, never wired to a call site,
		// because it binds libvips via cgo. Fall back to the JPEG container.
		src = flattenToWhite(src)
		ext, mime = "jpg", "image/jpeg"
	}

	outPath := filepath.Join(jc.TempDir, "converted."+ext)
	var encErr error
	switch ext {
	case "png":
		encErr = encodePNG(outPath, src)
	default:
		encErr = encodeJPEG(outPath, src, quality)
	}
	if encErr != nil {
		return nil, encErr
	}

	name := stem(jc.OriginalName) + "_converted." + ext
	return &Output{LocalPath: outPath, Bucket: storage.BucketProcessed, MimeType: mime, Filename: name}, nil
}

// HandleImageCompress implements IMAGE_COMPRESS (spec §4.E.1):
// re-encode as JPEG at params.quality (default 60).
func HandleImageCompress(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
	quality := intParam(jc, "quality", 60)

	src, err := decodeImage(jc.InputPath)
	if err != nil {
		return nil, err
	}

	outPath := filepath.Join(jc.TempDir, "compressed.jpg")
	if err := encodeJPEG(outPath, src, quality); err != nil {
		return nil, err
	}

	name := stem(jc.OriginalName) + "_compressed.jpg"
	return &Output{LocalPath: outPath, Bucket: storage.BucketProcessed, MimeType: "image/jpeg", Filename: name}, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func encodeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

func encodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(f, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// flattenToWhite composites src over an opaque white background,
// per spec §4.E.1's "alpha flattens to opaque white" requirement for
// target formats without an alpha channel.
func flattenToWhite(src image.Image) image.Image {
	bounds := src.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.OverlayCenter(bg, src, 1.0)
}
