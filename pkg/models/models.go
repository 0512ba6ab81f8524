package models

import (
	"time"
)

type User struct {
	ID                int64      `json:"id" gorm:"primaryKey"`
	Username          string     `json:"username" gorm:"uniqueIndex;size:64"`
	Password          string     `json:"-"` // derived key and salt, "key.salt"
	Email             string     `json:"email"`
	DisplayName       string     `json:"displayName"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	IsAdmin           bool       `json:"isAdmin"`
	Bio               string     `json:"bio"`
	ProfileImage      *string    `json:"profileImage"`
	FavoriteArtists   []string   `json:"favoriteArtists" gorm:"serializer:json"`
	FavoriteSongs     []int64    `json:"favoriteSongs" gorm:"serializer:json"`
	ResetToken        *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	Stats             *UserStats `json:"stats" gorm:"serializer:json"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// UserStats is the aggregate blob kept on the user record.
type UserStats struct {
	TotalListens    int   `json:"totalListens"`
	TotalListenTime int   `json:"totalListenTime"`
	SongsUploaded   int   `json:"songsUploaded"`
	LastListenedID  int64 `json:"lastListenedId,omitempty"`
}

// AddListen counts one play of songID lasting duration seconds.
func (s *UserStats) AddListen(songID int64, duration int) {
	s.TotalListens++
	s.TotalListenTime += duration
	s.LastListenedID = songID
}

func (s *UserStats) AddUpload() { s.SongsUploaded++ }

type NewUser struct {
	Username    string
	Password    string // plaintext, hashed by the store
	Email       string
	DisplayName string
	FirstName   string
	LastName    string
	IsAdmin     bool
}

// UserUpdate holds the user fields that may change after registration.
// Nil fields are left untouched.
type UserUpdate struct {
	Password        *string // plaintext, hashed by the store; clears any reset token
	Email           *string
	DisplayName     *string
	FirstName       *string
	LastName        *string
	Bio             *string
	ProfileImage    *string
	FavoriteArtists *[]string
	FavoriteSongs   *[]int64
	Stats           *UserStats
}

type Artist struct {
	ID     int64    `json:"id" gorm:"primaryKey"`
	Name   string   `json:"name"`
	Bio    string   `json:"bio"`
	Image  *string  `json:"image"`
	Genres []string `json:"genres" gorm:"serializer:json"`
}

type NewArtist struct {
	Name   string
	Bio    string
	Image  *string
	Genres []string
}

type ArtistUpdate struct {
	Name   *string
	Bio    *string
	Image  *string
	Genres *[]string
}

type Album struct {
	ID          int64   `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title"`
	ArtistID    int64   `json:"artistId" gorm:"index"`
	CoverImage  *string `json:"coverImage"`
	ReleaseYear *int    `json:"releaseYear"`
	Genre       string  `json:"genre"`
	TrackCount  int     `json:"trackCount"`
}

type NewAlbum struct {
	Title       string
	ArtistID    int64
	CoverImage  *string
	ReleaseYear *int
	Genre       string
}

type AlbumUpdate struct {
	Title       *string
	ArtistID    *int64
	CoverImage  *string
	ReleaseYear *int
	Genre       *string
}

type Song struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	Title             string    `json:"title"`
	Artist            string    `json:"artist"`
	ArtistID          *int64    `json:"artistId" gorm:"index"`
	FeaturedArtistIDs []int64   `json:"featuredArtistIds" gorm:"serializer:json"`
	Album             string    `json:"album"`
	AlbumID           *int64    `json:"albumId" gorm:"index"`
	Genre             string    `json:"genre"`
	Year              *int      `json:"year"`
	Duration          int       `json:"duration"`
	CoverImage        *string   `json:"coverImage"`
	FilePath          string    `json:"-"`
	Lyrics            *string   `json:"lyrics"`
	UserID            int64     `json:"userId" gorm:"index"`
	PlayCount         int       `json:"playCount"`
	UploadedAt        time.Time `json:"uploadedAt"`
	Barcode           string    `json:"barcode" gorm:"uniqueIndex;size:64"`
}

type NewSong struct {
	Title             string
	Artist            string
	ArtistID          *int64
	FeaturedArtistIDs []int64
	Album             string
	AlbumID           *int64
	Genre             string
	Year              *int
	Duration          int
	CoverImage        *string
	FilePath          string
	Lyrics            *string
	UserID            int64
}

// SongUpdate excludes the owner, file, play count, upload time and barcode.
type SongUpdate struct {
	Title             *string
	Artist            *string
	ArtistID          *int64
	FeaturedArtistIDs *[]int64
	Album             *string
	AlbumID           *int64
	Genre             *string
	Year              *int
	Duration          *int
	CoverImage        *string
	Lyrics            *string
}

type Playlist struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CoverImage    *string   `json:"coverImage"`
	UserID        int64     `json:"userId" gorm:"index"`
	Collaborative bool      `json:"isCollaborative"`
	Collaborators []int64   `json:"collaborators" gorm:"serializer:json"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CanEdit reports whether userID owns the playlist or collaborates on it.
func (p *Playlist) CanEdit(userID int64) bool {
	if p.UserID == userID {
		return true
	}
	for _, id := range p.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}

type NewPlaylist struct {
	Name          string
	Description   string
	CoverImage    *string
	UserID        int64
	Collaborative bool
}

type PlaylistUpdate struct {
	Name          *string
	Description   *string
	CoverImage    *string
	Collaborative *bool
}

type PlaylistSong struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	PlaylistID int64     `json:"playlistId" gorm:"uniqueIndex:idx_playlist_song"`
	SongID     int64     `json:"songId" gorm:"uniqueIndex:idx_playlist_song"`
	AddedBy    int64     `json:"addedBy"`
	AddedAt    time.Time `json:"addedAt"`
}

type Favorite struct {
	ID      int64     `json:"id" gorm:"primaryKey"`
	UserID  int64     `json:"userId" gorm:"uniqueIndex:idx_favorite"`
	SongID  int64     `json:"songId" gorm:"uniqueIndex:idx_favorite"`
	AddedAt time.Time `json:"addedAt"`
}

type SongComment struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	SongID    int64     `json:"songId" gorm:"index"`
	UserID    int64     `json:"userId"`
	Comment   string    `json:"comment"`
	Timestamp *int      `json:"timestamp"` // seconds into the track
	CreatedAt time.Time `json:"createdAt"`
}

type NewComment struct {
	SongID    int64
	UserID    int64
	Comment   string
	Timestamp *int
}

type ListeningHistory struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	UserID     int64     `json:"userId" gorm:"index"`
	SongID     int64     `json:"songId"`
	ListenDate time.Time `json:"listenDate"`
	Duration   int       `json:"duration"`
}

type Game struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	UserID          int64     `json:"userId" gorm:"index"`
	GameType        string    `json:"gameType" gorm:"index;size:64"`
	Score           int       `json:"score"`
	DurationSeconds int       `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}

type NewGame struct {
	UserID          int64
	GameType        string
	Score           int
	DurationSeconds int
}

type SongRequestStatus string

const (
	RequestPending  SongRequestStatus = "pending"
	RequestApproved SongRequestStatus = "approved"
	RequestRejected SongRequestStatus = "rejected"
)

func (s SongRequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

type SongRequest struct {
	ID              int64             `json:"id" gorm:"primaryKey"`
	Title           string            `json:"title"`
	ArtistName      string            `json:"artistName"`
	ArtistID        *int64            `json:"artistId"`
	FeaturedArtists []string          `json:"featuredArtists" gorm:"serializer:json"`
	Album           string            `json:"album"`
	Year            *int              `json:"year"`
	CoverImage      *string           `json:"coverImage"`
	Notes           string            `json:"notes"`
	UserID          int64             `json:"userId" gorm:"index"`
	Status          SongRequestStatus `json:"status" gorm:"size:16"`
	AdminMessage    *string           `json:"adminMessage"`
	CreatedAt       time.Time         `json:"createdAt"`
}

type NewSongRequest struct {
	Title           string
	ArtistName      string
	ArtistID        *int64
	FeaturedArtists []string
	Album           string
	Year            *int
	CoverImage      *string
	Notes           string
	UserID          int64
}

type ShortLink struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	ShortID     string    `json:"shortId" gorm:"uniqueIndex;size:32"`
	TargetURL   string    `json:"targetUrl"`
	Type        string    `json:"type"`
	ReferenceID *int64    `json:"referenceId"`
	UserID      int64     `json:"userId" gorm:"index"`
	Clicks      int       `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}

type NewShortLink struct {
	ShortID     string
	TargetURL   string
	Type        string
	ReferenceID *int64
	UserID      int64
}

type LibraryEntry struct {
	ID      int64     `json:"id" gorm:"primaryKey"`
	UserID  int64     `json:"userId" gorm:"uniqueIndex:idx_library"`
	SongID  int64     `json:"songId" gorm:"uniqueIndex:idx_library"`
	AddedAt time.Time `json:"addedAt"`
}

// SongPlays is one row of a user's top songs.
type SongPlays struct {
	Song      *Song `json:"song"`
	PlayCount int   `json:"playCount"`
}

type NamePlays struct {
	Name      string `json:"name"`
	PlayCount int    `json:"playCount"`
}

type ListeningStats struct {
	TotalListeningTime int         `json:"totalListeningTime"`
	TopSongs           []SongPlays `json:"topSongs"`
	TopArtists         []NamePlays `json:"topArtists"`
	TopGenres          []NamePlays `json:"topGenres"`
}
