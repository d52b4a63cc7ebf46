package models

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus is the lifecycle state of a stored binary.
type FileStatus string

const (
	FileUploaded   FileStatus = "UPLOADED"
	FileProcessing FileStatus = "PROCESSING"
	FileReady      FileStatus = "READY"
	FileFailed     FileStatus = "FAILED"
)

// File is a stored binary, either a raw upload or a derived artifact
// produced by a worker. (bucket, key) uniquely locates the blob in the
// object store; a derived file always carries a non-null ParentFileID.
type File struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	OwnerID           uuid.UUID  `db:"owner_id" json:"owner_id"`
	OriginalName      string     `db:"original_name" json:"original_name"`
	Bucket            string     `db:"bucket" json:"bucket"`
	Key               string     `db:"key" json:"key"`
	SizeBytes         int64      `db:"size_bytes" json:"size_bytes"`
	MimeType          string     `db:"mime_type" json:"mime_type"`
	Status            FileStatus `db:"status" json:"status"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	IsProcessedOutput bool       `db:"is_processed_output" json:"is_processed_output"`
	ParentFileID      *uuid.UUID `db:"parent_file_id" json:"parent_file_id,omitempty"`
}

// StorageKey returns the object-store key convention for a raw upload:
// "<owner_id>/<file_id>_<filename>", per §4.D step 1.
func StorageKey(ownerID, fileID uuid.UUID, filename string) string {
	return ownerID.String() + "/" + fileID.String() + "_" + filename
}
