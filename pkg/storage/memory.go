package storage

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/tunehaven/tunehaven/pkg/models"
)

// Memory keeps every entity in process maps. Each entity has its own id
// counter; ids are never reused.
type Memory struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[int64]*models.User
	artists       map[int64]*models.Artist
	albums        map[int64]*models.Album
	songs         map[int64]*models.Song
	playlists     map[int64]*models.Playlist
	playlistSongs map[int64]*models.PlaylistSong
	favorites     map[int64]*models.Favorite
	comments      map[int64]*models.SongComment
	history       map[int64]*models.ListeningHistory
	games         map[int64]*models.Game
	requests      map[int64]*models.SongRequest
	shortLinks    map[int64]*models.ShortLink
	library       map[int64]*models.LibraryEntry

	seq struct {
		user, artist, album, song, playlist, playlistSong, favorite,
		comment, history, game, request, shortLink, library int64
	}
}

var _ Store = (*Memory)(nil)

type Option func(*Memory)

// WithClock replaces time.Now for timestamps and token expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		now:           time.Now,
		users:         make(map[int64]*models.User),
		artists:       make(map[int64]*models.Artist),
		albums:        make(map[int64]*models.Album),
		songs:         make(map[int64]*models.Song),
		playlists:     make(map[int64]*models.Playlist),
		playlistSongs: make(map[int64]*models.PlaylistSong),
		favorites:     make(map[int64]*models.Favorite),
		comments:      make(map[int64]*models.SongComment),
		history:       make(map[int64]*models.ListeningHistory),
		games:         make(map[int64]*models.Game),
		requests:      make(map[int64]*models.SongRequest),
		shortLinks:    make(map[int64]*models.ShortLink),
		library:       make(map[int64]*models.LibraryEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func next(counter *int64) int64 {
	*counter++
	return *counter
}

// collect copies the values matching keep into a slice ordered by id.
func collect[T any](rows map[int64]*T, id func(*T) int64, keep func(*T) bool, clone func(*T) *T) []*T {
	out := make([]*T, 0)
	for _, row := range rows {
		if keep == nil || keep(row) {
			out = append(out, clone(row))
		}
	}
	slices.SortFunc(out, func(a, b *T) int { return cmp.Compare(id(a), id(b)) })
	return out
}

func ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.FavoriteArtists = slices.Clone(u.FavoriteArtists)
	c.FavoriteSongs = slices.Clone(u.FavoriteSongs)
	c.ProfileImage = clonePtr(u.ProfileImage)
	c.ResetToken = clonePtr(u.ResetToken)
	c.ResetTokenExpires = clonePtr(u.ResetTokenExpires)
	c.Stats = clonePtr(u.Stats)
	return &c
}

func cloneArtist(a *models.Artist) *models.Artist {
	c := *a
	c.Image = clonePtr(a.Image)
	c.Genres = slices.Clone(a.Genres)
	return &c
}

func cloneAlbum(a *models.Album) *models.Album {
	c := *a
	c.CoverImage = clonePtr(a.CoverImage)
	c.ReleaseYear = clonePtr(a.ReleaseYear)
	return &c
}

func cloneSong(s *models.Song) *models.Song {
	c := *s
	c.ArtistID = clonePtr(s.ArtistID)
	c.AlbumID = clonePtr(s.AlbumID)
	c.FeaturedArtistIDs = slices.Clone(s.FeaturedArtistIDs)
	c.Year = clonePtr(s.Year)
	c.CoverImage = clonePtr(s.CoverImage)
	c.Lyrics = clonePtr(s.Lyrics)
	return &c
}

func clonePlaylist(p *models.Playlist) *models.Playlist {
	c := *p
	c.CoverImage = clonePtr(p.CoverImage)
	c.Collaborators = slices.Clone(p.Collaborators)
	return &c
}

func cloneRequest(r *models.SongRequest) *models.SongRequest {
	c := *r
	c.ArtistID = clonePtr(r.ArtistID)
	c.FeaturedArtists = slices.Clone(r.FeaturedArtists)
	c.Year = clonePtr(r.Year)
	c.CoverImage = clonePtr(r.CoverImage)
	c.AdminMessage = clonePtr(r.AdminMessage)
	return &c
}

func cloneShortLink(l *models.ShortLink) *models.ShortLink {
	c := *l
	c.ReferenceID = clonePtr(l.ReferenceID)
	return &c
}

func cloneComment(c *models.SongComment) *models.SongComment {
	out := *c
	out.Timestamp = clonePtr(c.Timestamp)
	return &out
}

// shallow copies rows without pointer or slice fields.
func shallow[T any](v *T) *T {
	c := *v
	return &c
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
