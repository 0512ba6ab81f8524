package storage

import (
	"context"
	"slices"

	"github.com/tunehaven/tunehaven/pkg/models"
)

func artistID(a *models.Artist) int64 { return a.ID }
func albumID(a *models.Album) int64   { return a.ID }

func (m *Memory) GetArtist(_ context.Context, id int64) (*models.Artist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.artists[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneArtist(a), nil
}

func (m *Memory) ListArtists(_ context.Context) ([]*models.Artist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.artists, artistID, nil, cloneArtist), nil
}

func (m *Memory) CreateArtist(_ context.Context, in models.NewArtist) (*models.Artist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := &models.Artist{
		ID:     next(&m.seq.artist),
		Name:   in.Name,
		Bio:    in.Bio,
		Image:  clonePtr(in.Image),
		Genres: nonNil(slices.Clone(in.Genres)),
	}
	m.artists[a.ID] = a
	return cloneArtist(a), nil
}

func (m *Memory) UpdateArtist(_ context.Context, id int64, upd models.ArtistUpdate) (*models.Artist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.artists[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Apply(upd)
	return cloneArtist(a), nil
}

func (m *Memory) GetAlbum(_ context.Context, id int64) (*models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.albums[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAlbum(a), nil
}

func (m *Memory) ListAlbums(_ context.Context) ([]*models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.albums, albumID, nil, cloneAlbum), nil
}

func (m *Memory) ListAlbumsByArtist(_ context.Context, artistID int64) ([]*models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.albums, albumID, func(a *models.Album) bool {
		return a.ArtistID == artistID
	}, cloneAlbum), nil
}

func (m *Memory) CreateAlbum(_ context.Context, in models.NewAlbum) (*models.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := &models.Album{
		ID:          next(&m.seq.album),
		Title:       in.Title,
		ArtistID:    in.ArtistID,
		CoverImage:  clonePtr(in.CoverImage),
		ReleaseYear: clonePtr(in.ReleaseYear),
		Genre:       in.Genre,
	}
	m.albums[a.ID] = a
	return cloneAlbum(a), nil
}

func (m *Memory) UpdateAlbum(_ context.Context, id int64, upd models.AlbumUpdate) (*models.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.albums[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Apply(upd)
	return cloneAlbum(a), nil
}

// adjustTrackCount must be called with m.mu held.
func (m *Memory) adjustTrackCount(albumID *int64, delta int) {
	if albumID == nil {
		return
	}
	if a, ok := m.albums[*albumID]; ok {
		a.TrackCount = max(0, a.TrackCount+delta)
	}
}
