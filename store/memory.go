package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a threadsafe in-memory Store. It backs tests and local
// development without a Postgres instance.
type Memory struct {
	mu          sync.Mutex
	videos      map[int64]*Video
	renditions  map[int64]*Rendition
	attachments map[int64]*Attachment
	likes       map[int64]map[int64]bool
	nextID      int64
}

func NewMemory() *Memory {
	return &Memory{
		videos:      map[int64]*Video{},
		renditions:  map[int64]*Rendition{},
		attachments: map[int64]*Attachment{},
		likes:       map[int64]map[int64]bool{},
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) InsertVideo(_ context.Context, v *Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.id()
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	cp := *v
	m.videos[v.ID] = &cp
	return nil
}

func (m *Memory) SelectVideoByID(_ context.Context, id int64) (*Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *Memory) UpdateVideo(_ context.Context, v *Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[v.ID]; !ok {
		return ErrNotFound
	}
	v.UpdatedAt = time.Now()
	cp := *v
	m.videos[v.ID] = &cp
	return nil
}

func (m *Memory) SelectVideos(_ context.Context) ([]*Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Video, 0, len(m.videos))
	for id := int64(1); id <= m.nextID; id++ {
		if v, ok := m.videos[id]; ok {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) InsertRendition(_ context.Context, r *Rendition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.renditions[r.ID] = &cp
	return nil
}

func (m *Memory) UpdateRendition(_ context.Context, r *Rendition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.renditions[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = time.Now()
	cp := *r
	m.renditions[r.ID] = &cp
	return nil
}

func (m *Memory) SelectRenditionsByVideoID(_ context.Context, videoID int64) ([]*Rendition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Rendition
	for id := int64(1); id <= m.nextID; id++ {
		if r, ok := m.renditions[id]; ok && r.VideoID == videoID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) InsertAttachment(_ context.Context, a *Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	a.CreatedAt = time.Now()
	cp := *a
	m.attachments[a.ID] = &cp
	return nil
}

func (m *Memory) SelectAttachmentByID(_ context.Context, id int64) (*Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attachments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) ToggleLike(_ context.Context, videoID, userID int64) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.likes[videoID] == nil {
		m.likes[videoID] = map[int64]bool{}
	}
	liked := !m.likes[videoID][userID]
	if liked {
		m.likes[videoID][userID] = true
	} else {
		delete(m.likes[videoID], userID)
	}
	count := int64(len(m.likes[videoID]))
	if v, ok := m.videos[videoID]; ok {
		v.LikeCount = count
	}
	return liked, count, nil
}

func (m *Memory) LikeCount(_ context.Context, videoID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.likes[videoID])), nil
}
