package worker

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fileforge/internal/storage"
)

// HandleCompress implements COMPRESS (spec §4.E.3): wraps the input in
// a deflate-compressed archive containing a single entry named after
// the original file. No corpus example wires a third-party archiver
// (see DESIGN.md); archive/zip's deflate writer is the stdlib
// equivalent of the "deflate-compressed archive" the spec names.
func HandleCompress(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
	name := stem(jc.OriginalName) + ".zip"
	outPath := filepath.Join(jc.TempDir, name)
	archive, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("compress: create archive: %w", err)
	}
	defer archive.Close()

	zw := zip.NewWriter(archive)
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:   jc.OriginalName,
		Method: zip.Deflate,
	})
	if err != nil {
		return nil, fmt.Errorf("compress: create entry: %w", err)
	}

	src, err := os.Open(jc.InputPath)
	if err != nil {
		return nil, fmt.Errorf("compress: open input: %w", err)
	}
	defer src.Close()

	if _, err := io.Copy(entry, src); err != nil {
		return nil, fmt.Errorf("compress: write entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress: finalize archive: %w", err)
	}

	return &Output{LocalPath: outPath, Bucket: storage.BucketProcessed, MimeType: "application/zip", Filename: name}, nil
}
