// Package storage defines the repository every handler talks to and an
// in-process implementation of it.
//
// Lookups of missing rows return ErrNotFound; deletes of missing rows return
// false with a nil error. Callers validate input before create/update.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tunehaven/tunehaven/pkg/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrDuplicate    = errors.New("already exists")

	// ErrEmailTaken wraps ErrDuplicate for a case-insensitive email clash.
	ErrEmailTaken = fmt.Errorf("email: %w", ErrDuplicate)
)

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = time.Hour

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, in models.NewUser) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error)
	CreatePasswordResetToken(ctx context.Context, userID int64) (string, error)
	ValidatePasswordResetToken(ctx context.Context, token string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int64, newPassword string) error
}

type CatalogStore interface {
	GetArtist(ctx context.Context, id int64) (*models.Artist, error)
	ListArtists(ctx context.Context) ([]*models.Artist, error)
	CreateArtist(ctx context.Context, in models.NewArtist) (*models.Artist, error)
	UpdateArtist(ctx context.Context, id int64, upd models.ArtistUpdate) (*models.Artist, error)

	GetAlbum(ctx context.Context, id int64) (*models.Album, error)
	ListAlbums(ctx context.Context) ([]*models.Album, error)
	ListAlbumsByArtist(ctx context.Context, artistID int64) ([]*models.Album, error)
	CreateAlbum(ctx context.Context, in models.NewAlbum) (*models.Album, error)
	UpdateAlbum(ctx context.Context, id int64, upd models.AlbumUpdate) (*models.Album, error)
}

type SongStore interface {
	GetSong(ctx context.Context, id int64) (*models.Song, error)
	GetSongByBarcode(ctx context.Context, barcode string) (*models.Song, error)
	ListSongs(ctx context.Context) ([]*models.Song, error)
	ListSongsByUser(ctx context.Context, userID int64) ([]*models.Song, error)
	ListSongsByArtist(ctx context.Context, artistID int64) ([]*models.Song, error)
	ListSongsByAlbum(ctx context.Context, albumID int64) ([]*models.Song, error)
	SearchSongs(ctx context.Context, query string) ([]*models.Song, error)
	RecentSongs(ctx context.Context, limit int) ([]*models.Song, error)
	CreateSong(ctx context.Context, in models.NewSong) (*models.Song, error)
	UpdateSong(ctx context.Context, id int64, upd models.SongUpdate) (*models.Song, error)
	// DeleteSong removes the song with its playlist rows, favorites, library
	// entries and comments. The backing file is left to the caller.
	DeleteSong(ctx context.Context, id int64) (bool, error)
	IncrementPlayCount(ctx context.Context, id int64) (*models.Song, error)
}

type PlaylistStore interface {
	GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error)
	// ListPlaylistsByUser returns playlists the user owns or collaborates on.
	ListPlaylistsByUser(ctx context.Context, userID int64) ([]*models.Playlist, error)
	CreatePlaylist(ctx context.Context, in models.NewPlaylist) (*models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id int64, upd models.PlaylistUpdate) (*models.Playlist, error)
	DeletePlaylist(ctx context.Context, id int64) (bool, error)

	GetPlaylistSongs(ctx context.Context, playlistID int64) ([]*models.Song, error)
	ListPlaylistEntries(ctx context.Context, playlistID int64) ([]*models.PlaylistSong, error)
	AddSongToPlaylist(ctx context.Context, playlistID, songID, addedBy int64) (*models.PlaylistSong, error)
	RemoveSongFromPlaylist(ctx context.Context, playlistID, songID int64) (bool, error)

	AddCollaborator(ctx context.Context, playlistID, userID int64) (*models.Playlist, error)
	RemoveCollaborator(ctx context.Context, playlistID, userID int64) (*models.Playlist, error)
}

type FavoriteStore interface {
	ListFavorites(ctx context.Context, userID int64) ([]*models.Song, error)
	AddToFavorites(ctx context.Context, userID, songID int64) (*models.Favorite, error)
	RemoveFromFavorites(ctx context.Context, userID, songID int64) (bool, error)
	IsFavorite(ctx context.Context, userID, songID int64) (bool, error)
}

type LibraryStore interface {
	ListLibrary(ctx context.Context, userID int64) ([]*models.Song, error)
	AddToLibrary(ctx context.Context, userID, songID int64) (*models.LibraryEntry, error)
	RemoveFromLibrary(ctx context.Context, userID, songID int64) (bool, error)
	IsInLibrary(ctx context.Context, userID, songID int64) (bool, error)
}

type CommentStore interface {
	GetComment(ctx context.Context, id int64) (*models.SongComment, error)
	// ListComments returns comments oldest first.
	ListComments(ctx context.Context, songID int64) ([]*models.SongComment, error)
	CreateComment(ctx context.Context, in models.NewComment) (*models.SongComment, error)
	DeleteComment(ctx context.Context, id int64) (bool, error)
}

type HistoryStore interface {
	// RecordListen appends a history row and bumps the song's play count.
	RecordListen(ctx context.Context, userID, songID int64, duration int) (*models.ListeningHistory, error)
	// ListHistory returns the newest entries first; limit <= 0 means all.
	ListHistory(ctx context.Context, userID int64, limit int) ([]*models.ListeningHistory, error)
	GetUserListeningStats(ctx context.Context, userID int64) (*models.ListeningStats, error)
}

type GameStore interface {
	CreateGame(ctx context.Context, in models.NewGame) (*models.Game, error)
	ListGamesByUser(ctx context.Context, userID int64) ([]*models.Game, error)
	TopGames(ctx context.Context, gameType string, limit int) ([]*models.Game, error)
}

type SongRequestStore interface {
	GetSongRequest(ctx context.Context, id int64) (*models.SongRequest, error)
	ListSongRequests(ctx context.Context) ([]*models.SongRequest, error)
	ListSongRequestsByUser(ctx context.Context, userID int64) ([]*models.SongRequest, error)
	ListPendingSongRequests(ctx context.Context) ([]*models.SongRequest, error)
	CreateSongRequest(ctx context.Context, in models.NewSongRequest) (*models.SongRequest, error)
	// UpdateSongRequestStatus keeps the previous admin message when message is nil.
	UpdateSongRequestStatus(ctx context.Context, id int64, status models.SongRequestStatus, message *string) (*models.SongRequest, error)
	DeleteSongRequest(ctx context.Context, id int64) (bool, error)
}

type ShortLinkStore interface {
	GetShortLink(ctx context.Context, id int64) (*models.ShortLink, error)
	GetShortLinkByShortID(ctx context.Context, shortID string) (*models.ShortLink, error)
	ListShortLinksByUser(ctx context.Context, userID int64) ([]*models.ShortLink, error)
	CreateShortLink(ctx context.Context, in models.NewShortLink) (*models.ShortLink, error)
	IncrementShortLinkClicks(ctx context.Context, shortID string) (*models.ShortLink, error)
	DeleteShortLink(ctx context.Context, id int64) (bool, error)
}

// Store is the full repository handed to the HTTP layer.
type Store interface {
	UserStore
	CatalogStore
	SongStore
	PlaylistStore
	FavoriteStore
	LibraryStore
	CommentStore
	HistoryStore
	GameStore
	SongRequestStore
	ShortLinkStore
}
