package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a select by ID matches no row.
var ErrNotFound = errors.New("store: not found")

type Postgres struct {
	db *sql.DB
}

func NewPostgres(connectionString string) (*Postgres, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("error opening postgres connection: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing handle; used by tests with sqlmock.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) InsertVideo(ctx context.Context, v *Video) error {
	row := p.db.QueryRowContext(ctx,
		`INSERT INTO videos (uploader_id, title, description, source_asset_id, cover_asset_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		v.UploaderID, v.Title, v.Description, v.SourceAssetID, v.CoverAssetID, v.Status,
	)
	return row.Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

func (p *Postgres) SelectVideoByID(ctx context.Context, id int64) (*Video, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, uploader_id, title, description, source_asset_id, cover_asset_id,
		        status, duration_sec, like_count, created_at, updated_at
		 FROM videos WHERE id = $1`, id,
	)
	v := &Video{}
	err := row.Scan(&v.ID, &v.UploaderID, &v.Title, &v.Description, &v.SourceAssetID,
		&v.CoverAssetID, &v.Status, &v.DurationSec, &v.LikeCount, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error selecting video %d: %w", id, err)
	}
	return v, nil
}

func (p *Postgres) UpdateVideo(ctx context.Context, v *Video) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE videos SET title = $2, description = $3, cover_asset_id = $4, status = $5,
		        duration_sec = $6, like_count = $7, updated_at = now()
		 WHERE id = $1`,
		v.ID, v.Title, v.Description, v.CoverAssetID, v.Status, v.DurationSec, v.LikeCount,
	)
	if err != nil {
		return fmt.Errorf("error updating video %d: %w", v.ID, err)
	}
	return nil
}

func (p *Postgres) SelectVideos(ctx context.Context) ([]*Video, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, uploader_id, title, description, source_asset_id, cover_asset_id,
		        status, duration_sec, like_count, created_at, updated_at
		 FROM videos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error selecting videos: %w", err)
	}
	defer rows.Close()

	var out []*Video
	for rows.Next() {
		v := &Video{}
		if err := rows.Scan(&v.ID, &v.UploaderID, &v.Title, &v.Description, &v.SourceAssetID,
			&v.CoverAssetID, &v.Status, &v.DurationSec, &v.LikeCount, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning video row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertRendition(ctx context.Context, r *Rendition) error {
	row := p.db.QueryRowContext(ctx,
		`INSERT INTO renditions (video_id, representation_id, bitrate, resolution, manifest_path, status)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		 RETURNING id, created_at, updated_at`,
		r.VideoID, r.RepresentationID, r.Bitrate, r.Resolution, r.ManifestPath, r.Status,
	)
	return row.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (p *Postgres) UpdateRendition(ctx context.Context, r *Rendition) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE renditions SET manifest_path = NULLIF($2, ''), status = $3, updated_at = now()
		 WHERE id = $1`,
		r.ID, r.ManifestPath, r.Status,
	)
	if err != nil {
		return fmt.Errorf("error updating rendition %d: %w", r.ID, err)
	}
	return nil
}

func (p *Postgres) SelectRenditionsByVideoID(ctx context.Context, videoID int64) ([]*Rendition, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, video_id, representation_id, bitrate, COALESCE(resolution, ''),
		        COALESCE(manifest_path, ''), status, created_at, updated_at
		 FROM renditions WHERE video_id = $1 ORDER BY id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("error selecting renditions for video %d: %w", videoID, err)
	}
	defer rows.Close()

	var out []*Rendition
	for rows.Next() {
		r := &Rendition{}
		if err := rows.Scan(&r.ID, &r.VideoID, &r.RepresentationID, &r.Bitrate, &r.Resolution,
			&r.ManifestPath, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning rendition row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertAttachment(ctx context.Context, a *Attachment) error {
	row := p.db.QueryRowContext(ctx,
		`INSERT INTO attachments (storage_key, mime_type, uploader_id, original_filename, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		a.StorageKey, a.MimeType, a.UploaderID, a.OriginalFilename, a.Status,
	)
	return row.Scan(&a.ID, &a.CreatedAt)
}

func (p *Postgres) SelectAttachmentByID(ctx context.Context, id int64) (*Attachment, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, storage_key, mime_type, uploader_id, original_filename, status, created_at
		 FROM attachments WHERE id = $1`, id,
	)
	a := &Attachment{}
	err := row.Scan(&a.ID, &a.StorageKey, &a.MimeType, &a.UploaderID, &a.OriginalFilename, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error selecting attachment %d: %w", id, err)
	}
	return a, nil
}

func (p *Postgres) ToggleLike(ctx context.Context, videoID, userID int64) (bool, int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("error starting like transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`DELETE FROM video_likes WHERE video_id = $1 AND user_id = $2`, videoID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("error removing like: %w", err)
	}
	deleted, _ := res.RowsAffected()
	liked := deleted == 0
	if liked {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO video_likes (video_id, user_id) VALUES ($1, $2)`, videoID, userID); err != nil {
			return false, 0, fmt.Errorf("error inserting like: %w", err)
		}
	}

	var count int64
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM video_likes WHERE video_id = $1`, videoID).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("error counting likes: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE videos SET like_count = $2 WHERE id = $1`, videoID, count); err != nil {
		return false, 0, fmt.Errorf("error caching like count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("error committing like transaction: %w", err)
	}
	return liked, count, nil
}

func (p *Postgres) LikeCount(ctx context.Context, videoID int64) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx,
		`SELECT count(*) FROM video_likes WHERE video_id = $1`, videoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting likes: %w", err)
	}
	return count, nil
}
