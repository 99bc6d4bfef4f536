package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// VideoMetadata captures the probe output for an uploaded video.
type VideoMetadata struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Codec    string  `json:"codec"`
	Bitrate  int64   `json:"bitrate"`
}

// ContentMeta is the processing-pipeline metadata blob stored on a
// course content row. The worker overwrites it wholesale when a
// transcode run publishes, so the struct is the full contract between
// the pipeline and the playback endpoints.
type ContentMeta struct {
	ProcessedURLs    map[string]string `json:"processed_urls,omitempty"`
	ThumbnailURL     string            `json:"thumbnail_url,omitempty"`
	PreviewURL       string            `json:"preview_url,omitempty"`
	VideoMetadata    *VideoMetadata    `json:"video_metadata,omitempty"`
	ProcessingStatus string            `json:"processing_status,omitempty"`
	ProcessingError  string            `json:"processing_error,omitempty"`
}

func (m ContentMeta) Value() (driver.Value, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ContentMeta: marshal: %w", err)
	}
	return string(raw), nil
}

func (m *ContentMeta) Scan(src any) error {
	if src == nil {
		*m = ContentMeta{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return m.parseFromString(v)
	case []byte:
		return m.parseFromString(string(v))
	default:
		return fmt.Errorf("ContentMeta: unsupported Scan type %T", src)
	}
}

func (m *ContentMeta) parseFromString(s string) error {
	if s == "" {
		*m = ContentMeta{}
		return nil
	}
	if err := json.Unmarshal([]byte(s), m); err != nil {
		return fmt.Errorf("ContentMeta: unmarshal: %w", err)
	}
	return nil
}
