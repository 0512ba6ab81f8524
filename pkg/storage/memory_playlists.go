package storage

import (
	"context"
	"slices"

	"github.com/tunehaven/tunehaven/pkg/models"
)

func playlistID(p *models.Playlist) int64         { return p.ID }
func playlistSongID(p *models.PlaylistSong) int64 { return p.ID }

func (m *Memory) GetPlaylist(_ context.Context, id int64) (*models.Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.playlists[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePlaylist(p), nil
}

func (m *Memory) ListPlaylistsByUser(_ context.Context, userID int64) ([]*models.Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.playlists, playlistID, func(p *models.Playlist) bool {
		return p.UserID == userID || slices.Contains(p.Collaborators, userID)
	}, clonePlaylist), nil
}

func (m *Memory) CreatePlaylist(_ context.Context, in models.NewPlaylist) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &models.Playlist{
		ID:            next(&m.seq.playlist),
		Name:          in.Name,
		Description:   in.Description,
		CoverImage:    clonePtr(in.CoverImage),
		UserID:        in.UserID,
		Collaborative: in.Collaborative,
		Collaborators: []int64{},
		CreatedAt:     m.now(),
	}
	m.playlists[p.ID] = p
	return clonePlaylist(p), nil
}

func (m *Memory) UpdatePlaylist(_ context.Context, id int64, upd models.PlaylistUpdate) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.playlists[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Apply(upd)
	return clonePlaylist(p), nil
}

func (m *Memory) DeletePlaylist(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.playlists[id]; !ok {
		return false, nil
	}
	for key, row := range m.playlistSongs {
		if row.PlaylistID == id {
			delete(m.playlistSongs, key)
		}
	}
	delete(m.playlists, id)
	return true, nil
}

// GetPlaylistSongs returns the playlist's songs in the order they were added.
func (m *Memory) GetPlaylistSongs(_ context.Context, playlistID int64) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.entries(playlistID)
	songs := make([]*models.Song, 0, len(rows))
	for _, row := range rows {
		if s, ok := m.songs[row.SongID]; ok {
			songs = append(songs, cloneSong(s))
		}
	}
	return songs, nil
}

func (m *Memory) ListPlaylistEntries(_ context.Context, playlistID int64) ([]*models.PlaylistSong, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.entries(playlistID), nil
}

func (m *Memory) entries(playlistID int64) []*models.PlaylistSong {
	return collect(m.playlistSongs, playlistSongID, func(row *models.PlaylistSong) bool {
		return row.PlaylistID == playlistID
	}, shallow[models.PlaylistSong])
}

// AddSongToPlaylist returns the existing row unchanged when the song is
// already on the playlist.
func (m *Memory) AddSongToPlaylist(_ context.Context, playlistID, songID, addedBy int64) (*models.PlaylistSong, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.playlistSongs {
		if row.PlaylistID == playlistID && row.SongID == songID {
			return shallow(row), nil
		}
	}

	row := &models.PlaylistSong{
		ID:         next(&m.seq.playlistSong),
		PlaylistID: playlistID,
		SongID:     songID,
		AddedBy:    addedBy,
		AddedAt:    m.now(),
	}
	m.playlistSongs[row.ID] = row
	return shallow(row), nil
}

func (m *Memory) RemoveSongFromPlaylist(_ context.Context, playlistID, songID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, row := range m.playlistSongs {
		if row.PlaylistID == playlistID && row.SongID == songID {
			delete(m.playlistSongs, key)
			return true, nil
		}
	}
	return false, nil
}

// AddCollaborator also marks the playlist collaborative.
func (m *Memory) AddCollaborator(_ context.Context, playlistID, userID int64) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.playlists[playlistID]
	if !ok {
		return nil, ErrNotFound
	}
	p.AddCollaborator(userID)
	return clonePlaylist(p), nil
}

func (m *Memory) RemoveCollaborator(_ context.Context, playlistID, userID int64) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.playlists[playlistID]
	if !ok {
		return nil, ErrNotFound
	}
	p.RemoveCollaborator(userID)
	return clonePlaylist(p), nil
}
