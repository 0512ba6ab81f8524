package storage

import (
	"cmp"
	"context"
	"slices"

	"github.com/tunehaven/tunehaven/pkg/models"
)

func favoriteID(f *models.Favorite) int64    { return f.ID }
func libraryID(e *models.LibraryEntry) int64 { return e.ID }
func commentID(c *models.SongComment) int64  { return c.ID }

func (m *Memory) ListFavorites(_ context.Context, userID int64) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := collect(m.favorites, favoriteID, func(f *models.Favorite) bool {
		return f.UserID == userID
	}, shallow[models.Favorite])

	songs := make([]*models.Song, 0, len(rows))
	for _, row := range rows {
		if s, ok := m.songs[row.SongID]; ok {
			songs = append(songs, cloneSong(s))
		}
	}
	return songs, nil
}

func (m *Memory) AddToFavorites(_ context.Context, userID, songID int64) (*models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.favorites {
		if f.UserID == userID && f.SongID == songID {
			return shallow(f), nil
		}
	}
	f := &models.Favorite{
		ID:      next(&m.seq.favorite),
		UserID:  userID,
		SongID:  songID,
		AddedAt: m.now(),
	}
	m.favorites[f.ID] = f
	return shallow(f), nil
}

func (m *Memory) RemoveFromFavorites(_ context.Context, userID, songID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, f := range m.favorites {
		if f.UserID == userID && f.SongID == songID {
			delete(m.favorites, key)
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) IsFavorite(_ context.Context, userID, songID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, f := range m.favorites {
		if f.UserID == userID && f.SongID == songID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListLibrary(_ context.Context, userID int64) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := collect(m.library, libraryID, func(e *models.LibraryEntry) bool {
		return e.UserID == userID
	}, shallow[models.LibraryEntry])

	songs := make([]*models.Song, 0, len(rows))
	for _, row := range rows {
		if s, ok := m.songs[row.SongID]; ok {
			songs = append(songs, cloneSong(s))
		}
	}
	return songs, nil
}

func (m *Memory) AddToLibrary(_ context.Context, userID, songID int64) (*models.LibraryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.library {
		if e.UserID == userID && e.SongID == songID {
			return shallow(e), nil
		}
	}
	e := &models.LibraryEntry{
		ID:      next(&m.seq.library),
		UserID:  userID,
		SongID:  songID,
		AddedAt: m.now(),
	}
	m.library[e.ID] = e
	return shallow(e), nil
}

func (m *Memory) RemoveFromLibrary(_ context.Context, userID, songID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, e := range m.library {
		if e.UserID == userID && e.SongID == songID {
			delete(m.library, key)
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) IsInLibrary(_ context.Context, userID, songID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.library {
		if e.UserID == userID && e.SongID == songID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) GetComment(_ context.Context, id int64) (*models.SongComment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneComment(c), nil
}

func (m *Memory) ListComments(_ context.Context, songID int64) ([]*models.SongComment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := collect(m.comments, commentID, func(c *models.SongComment) bool {
		return c.SongID == songID
	}, cloneComment)
	slices.SortStableFunc(out, func(a, b *models.SongComment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) CreateComment(_ context.Context, in models.NewComment) (*models.SongComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &models.SongComment{
		ID:        next(&m.seq.comment),
		SongID:    in.SongID,
		UserID:    in.UserID,
		Comment:   in.Comment,
		Timestamp: clonePtr(in.Timestamp),
		CreatedAt: m.now(),
	}
	m.comments[c.ID] = c
	return cloneComment(c), nil
}

func (m *Memory) DeleteComment(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comments[id]; !ok {
		return false, nil
	}
	delete(m.comments, id)
	return true, nil
}
