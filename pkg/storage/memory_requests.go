package storage

import (
	"context"
	"fmt"
	"slices"

	"github.com/tunehaven/tunehaven/pkg/models"
)

func requestID(r *models.SongRequest) int64 { return r.ID }
func shortLinkID(l *models.ShortLink) int64 { return l.ID }

func (m *Memory) GetSongRequest(_ context.Context, id int64) (*models.SongRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRequest(r), nil
}

func (m *Memory) ListSongRequests(_ context.Context) ([]*models.SongRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.requests, requestID, nil, cloneRequest), nil
}

func (m *Memory) ListSongRequestsByUser(_ context.Context, userID int64) ([]*models.SongRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.requests, requestID, func(r *models.SongRequest) bool {
		return r.UserID == userID
	}, cloneRequest), nil
}

func (m *Memory) ListPendingSongRequests(_ context.Context) ([]*models.SongRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.requests, requestID, func(r *models.SongRequest) bool {
		return r.Status == models.RequestPending
	}, cloneRequest), nil
}

func (m *Memory) CreateSongRequest(_ context.Context, in models.NewSongRequest) (*models.SongRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &models.SongRequest{
		ID:              next(&m.seq.request),
		Title:           in.Title,
		ArtistName:      in.ArtistName,
		ArtistID:        clonePtr(in.ArtistID),
		FeaturedArtists: nonNil(slices.Clone(in.FeaturedArtists)),
		Album:           in.Album,
		Year:            clonePtr(in.Year),
		CoverImage:      clonePtr(in.CoverImage),
		Notes:           in.Notes,
		UserID:          in.UserID,
		Status:          models.RequestPending,
		CreatedAt:       m.now(),
	}
	m.requests[r.ID] = r
	return cloneRequest(r), nil
}

func (m *Memory) UpdateSongRequestStatus(_ context.Context, id int64, status models.SongRequestStatus, message *string) (*models.SongRequest, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.Status = status
	if message != nil {
		r.AdminMessage = ptr(*message)
	}
	return cloneRequest(r), nil
}

func (m *Memory) DeleteSongRequest(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[id]; !ok {
		return false, nil
	}
	delete(m.requests, id)
	return true, nil
}

func (m *Memory) GetShortLink(_ context.Context, id int64) (*models.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.shortLinks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneShortLink(l), nil
}

func (m *Memory) GetShortLinkByShortID(_ context.Context, shortID string) (*models.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l := m.findShortLink(shortID); l != nil {
		return cloneShortLink(l), nil
	}
	return nil, ErrNotFound
}

func (m *Memory) findShortLink(shortID string) *models.ShortLink {
	for _, l := range m.shortLinks {
		if l.ShortID == shortID {
			return l
		}
	}
	return nil
}

func (m *Memory) ListShortLinksByUser(_ context.Context, userID int64) ([]*models.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.shortLinks, shortLinkID, func(l *models.ShortLink) bool {
		return l.UserID == userID
	}, cloneShortLink), nil
}

func (m *Memory) CreateShortLink(_ context.Context, in models.NewShortLink) (*models.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findShortLink(in.ShortID) != nil {
		return nil, fmt.Errorf("short id %q: %w", in.ShortID, ErrDuplicate)
	}
	l := &models.ShortLink{
		ID:          next(&m.seq.shortLink),
		ShortID:     in.ShortID,
		TargetURL:   in.TargetURL,
		Type:        in.Type,
		ReferenceID: clonePtr(in.ReferenceID),
		UserID:      in.UserID,
		CreatedAt:   m.now(),
	}
	m.shortLinks[l.ID] = l
	return cloneShortLink(l), nil
}

func (m *Memory) IncrementShortLinkClicks(_ context.Context, shortID string) (*models.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.findShortLink(shortID)
	if l == nil {
		return nil, ErrNotFound
	}
	l.Clicks++
	return cloneShortLink(l), nil
}

func (m *Memory) DeleteShortLink(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shortLinks[id]; !ok {
		return false, nil
	}
	delete(m.shortLinks, id)
	return true, nil
}
