package storage

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/tunehaven/tunehaven/pkg/models"
)

func songID(s *models.Song) int64 { return s.ID }

// NewBarcode returns a 12 character upper-case code derived from a random uuid.
func NewBarcode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}

func (m *Memory) GetSong(_ context.Context, id int64) (*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSong(s), nil
}

func (m *Memory) GetSongByBarcode(_ context.Context, barcode string) (*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.songs {
		if s.Barcode == barcode {
			return cloneSong(s), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListSongs(_ context.Context) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.songs, songID, nil, cloneSong), nil
}

func (m *Memory) ListSongsByUser(_ context.Context, userID int64) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.songs, songID, func(s *models.Song) bool {
		return s.UserID == userID
	}, cloneSong), nil
}

func (m *Memory) ListSongsByArtist(_ context.Context, artistID int64) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.songs, songID, func(s *models.Song) bool {
		return (s.ArtistID != nil && *s.ArtistID == artistID) || slices.Contains(s.FeaturedArtistIDs, artistID)
	}, cloneSong), nil
}

func (m *Memory) ListSongsByAlbum(_ context.Context, albumID int64) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.songs, songID, func(s *models.Song) bool {
		return s.AlbumID != nil && *s.AlbumID == albumID
	}, cloneSong), nil
}

func (m *Memory) SearchSongs(_ context.Context, query string) ([]*models.Song, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.songs, songID, func(s *models.Song) bool {
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Artist), q) ||
			strings.Contains(strings.ToLower(s.Album), q)
	}, cloneSong), nil
}

// RecentSongs returns the most recently uploaded songs first.
func (m *Memory) RecentSongs(_ context.Context, limit int) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := collect(m.songs, songID, nil, cloneSong)
	slices.SortStableFunc(out, func(a, b *models.Song) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateSong(_ context.Context, in models.NewSong) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	barcode := NewBarcode()
	for m.barcodeTaken(barcode) {
		barcode = NewBarcode()
	}

	s := &models.Song{
		ID:                next(&m.seq.song),
		Title:             in.Title,
		Artist:            in.Artist,
		ArtistID:          clonePtr(in.ArtistID),
		FeaturedArtistIDs: nonNil(slices.Clone(in.FeaturedArtistIDs)),
		Album:             in.Album,
		AlbumID:           clonePtr(in.AlbumID),
		Genre:             in.Genre,
		Year:              clonePtr(in.Year),
		Duration:          in.Duration,
		CoverImage:        clonePtr(in.CoverImage),
		FilePath:          in.FilePath,
		Lyrics:            clonePtr(in.Lyrics),
		UserID:            in.UserID,
		PlayCount:         0,
		UploadedAt:        m.now(),
		Barcode:           barcode,
	}
	m.songs[s.ID] = s
	m.adjustTrackCount(s.AlbumID, 1)
	if u, ok := m.users[s.UserID]; ok {
		if u.Stats == nil {
			u.Stats = &models.UserStats{}
		}
		u.Stats.AddUpload()
	}
	return cloneSong(s), nil
}

func (m *Memory) barcodeTaken(code string) bool {
	for _, s := range m.songs {
		if s.Barcode == code {
			return true
		}
	}
	return false
}

func (m *Memory) UpdateSong(_ context.Context, id int64, upd models.SongUpdate) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.AlbumChanged(upd) {
		m.adjustTrackCount(s.AlbumID, -1)
		m.adjustTrackCount(upd.AlbumID, 1)
	}
	s.Apply(upd)
	return cloneSong(s), nil
}

func (m *Memory) DeleteSong(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.songs[id]
	if !ok {
		return false, nil
	}

	for key, row := range m.playlistSongs {
		if row.SongID == id {
			delete(m.playlistSongs, key)
		}
	}
	for key, row := range m.favorites {
		if row.SongID == id {
			delete(m.favorites, key)
		}
	}
	for key, row := range m.library {
		if row.SongID == id {
			delete(m.library, key)
		}
	}
	for key, row := range m.comments {
		if row.SongID == id {
			delete(m.comments, key)
		}
	}
	m.adjustTrackCount(s.AlbumID, -1)
	delete(m.songs, id)
	return true, nil
}

func (m *Memory) IncrementPlayCount(_ context.Context, id int64) (*models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.PlayCount++
	return cloneSong(s), nil
}
