package store

import "time"

type VideoStatus string

const (
	VideoStatusUploading  VideoStatus = "uploading"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
	VideoStatusDeleted    VideoStatus = "deleted"
)

type RenditionStatus string

const (
	RenditionStatusProcessing RenditionStatus = "processing"
	RenditionStatusReady      RenditionStatus = "ready"
	RenditionStatusFailed     RenditionStatus = "failed"
)

type Video struct {
	ID            int64       `json:"id"`
	UploaderID    int64       `json:"uploaderId"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	SourceAssetID int64       `json:"sourceAssetId"`
	CoverAssetID  *int64      `json:"coverAssetId,omitempty"`
	Status        VideoStatus `json:"status"`
	DurationSec   *float64    `json:"durationSec,omitempty"`
	// Cached like counter, owned by the like service.
	LikeCount int64     `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Rendition struct {
	ID               int64  `json:"id"`
	VideoID          int64  `json:"videoId"`
	RepresentationID string `json:"representationId"`
	// Target bitrate in bits per second.
	Bitrate int64 `json:"bitrate"`
	// "WxH", empty when the profile carries no resolution.
	Resolution string `json:"resolution,omitempty"`
	// Storage key of the variant playlist, empty until produced.
	ManifestPath string          `json:"manifestPath,omitempty"`
	Status       RenditionStatus `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Attachment struct {
	ID               int64     `json:"id"`
	StorageKey       string    `json:"storageKey"`
	MimeType         string    `json:"mimeType"`
	UploaderID       int64     `json:"uploaderId"`
	OriginalFilename string    `json:"originalFilename"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}
