package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/soratv/vod-api/log"
	"github.com/soratv/vod-api/store"
)

// Uploads go straight from the browser to the bucket via this signed URL, so
// it lives longer than playback URLs.
const uploadURLExpiry = 15 * time.Minute

const attachmentStatusPending = "pending"

type UploadParams struct {
	UploaderID int64
	Filename   string
	MimeType   string
}

// UploadTicket is what a client needs to upload one file: the attachment row
// to reference later and a presigned PUT URL.
type UploadTicket struct {
	AttachmentID int64  `json:"attachmentId"`
	StorageKey   string `json:"storageKey"`
	UploadURL    string `json:"uploadUrl"`
}

// CreateUploadURL allocates a storage key for a new upload, records the
// attachment and signs a PUT URL for it. Keys are date-bucketed per uploader
// with a random name so client filenames can never collide or traverse.
func (s *VideoService) CreateUploadURL(ctx context.Context, requestID string, p UploadParams) (*UploadTicket, error) {
	ext := filepath.Ext(p.Filename)
	key := fmt.Sprintf("video/%d/%s/%s%s", p.UploaderID, time.Now().UTC().Format("2006/01/02"), uuid.New().String(), ext)

	att := &store.Attachment{
		StorageKey:       key,
		MimeType:         p.MimeType,
		UploaderID:       p.UploaderID,
		OriginalFilename: p.Filename,
		Status:           attachmentStatusPending,
	}
	if err := s.Store.InsertAttachment(ctx, att); err != nil {
		return nil, fmt.Errorf("failed to insert attachment: %w", err)
	}

	url, err := s.Objects.PresignPut(key, p.MimeType, uploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload URL: %w", err)
	}
	log.Log(requestID, "issued upload ticket", "attachment_id", att.ID, "uploader_id", p.UploaderID, "key", key)
	return &UploadTicket{AttachmentID: att.ID, StorageKey: key, UploadURL: url}, nil
}
