package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONMap is a generic JSONB-backed map, used for the loosely structured
// exif/video/custom metadata fields.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("json map: type assertion to []byte failed")
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// StringSlice is a JSONB-backed []string, used for AITags.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("string slice: type assertion to []byte failed")
	}
	if len(b) == 0 {
		*s = StringSlice{}
		return nil
	}
	return json.Unmarshal(b, s)
}

// FileMetadata holds the derived/extracted metadata for a File. At most
// one row exists per file (unique on FileID); the METADATA action upserts
// it rather than inserting a fresh row on every rerun.
type FileMetadata struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	FileID         uuid.UUID   `db:"file_id" json:"file_id"`
	ExifData       JSONMap     `db:"exif_data" json:"exif_data,omitempty"`
	VideoInfo      JSONMap     `db:"video_info" json:"video_info,omitempty"`
	AITags         StringSlice `db:"ai_tags" json:"ai_tags,omitempty"`
	CustomMetadata JSONMap     `db:"custom_metadata" json:"custom_metadata,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}
