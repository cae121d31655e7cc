// Package store persists video, rendition and attachment rows. The
// interfaces are deliberately narrow (select/insert/update) so the worker
// and lifecycle service can be tested against the in-memory implementation.
package store

import "context"

type VideoStore interface {
	InsertVideo(ctx context.Context, v *Video) error
	SelectVideoByID(ctx context.Context, id int64) (*Video, error)
	UpdateVideo(ctx context.Context, v *Video) error
	SelectVideos(ctx context.Context) ([]*Video, error)
}

type RenditionStore interface {
	InsertRendition(ctx context.Context, r *Rendition) error
	UpdateRendition(ctx context.Context, r *Rendition) error
	SelectRenditionsByVideoID(ctx context.Context, videoID int64) ([]*Rendition, error)
}

type AttachmentStore interface {
	InsertAttachment(ctx context.Context, a *Attachment) error
	SelectAttachmentByID(ctx context.Context, id int64) (*Attachment, error)
}

type LikeStore interface {
	// ToggleLike flips the like row for (videoID, userID) and returns the
	// new liked state plus the updated count.
	ToggleLike(ctx context.Context, videoID, userID int64) (bool, int64, error)
	LikeCount(ctx context.Context, videoID int64) (int64, error)
}

// Store is the full persistence surface consumed by the service layer.
type Store interface {
	VideoStore
	RenditionStore
	AttachmentStore
	LikeStore
}
