package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/password"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

// MySQLDB implements storage.Store on top of gorm. Ids come from
// AUTO_INCREMENT columns, which MySQL never reuses.
type MySQLDB struct {
	*gorm.DB
}

var _ storage.Store = (*MySQLDB)(nil)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Debug    bool
}

func NewMySQLDB(cfg Config, log *zap.Logger) (*MySQLDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(level),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("running database migrations", zap.String("host", cfg.Host), zap.String("database", cfg.Database))
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLDB{DB: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Artist{},
		&models.Album{},
		&models.Song{},
		&models.Playlist{},
		&models.PlaylistSong{},
		&models.Favorite{},
		&models.SongComment{},
		&models.ListeningHistory{},
		&models.Game{},
		&models.SongRequest{},
		&models.ShortLink{},
		&models.LibraryEntry{},
	)
}

func (db *MySQLDB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// first maps a missing row to storage.ErrNotFound.
func first[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*T, error) {
	var row T
	if err := db.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func find[T any](ctx context.Context, db *gorm.DB, order string, query string, args ...interface{}) ([]*T, error) {
	rows := make([]*T, 0)
	tx := db.WithContext(ctx)
	if query != "" {
		tx = tx.Where(query, args...)
	}
	if err := tx.Order(order).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func deleted(res *gorm.DB) (bool, error) {
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// User operations
func (db *MySQLDB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return first[models.User](ctx, db.DB, "id = ?", id)
}

func (db *MySQLDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return first[models.User](ctx, db.DB, "username = ?", username)
}

func (db *MySQLDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](ctx, db.DB, "LOWER(email) = ?", strings.ToLower(email))
}

func (db *MySQLDB) emailTaken(ctx context.Context, email string, except int64) (bool, error) {
	if email == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ? AND id <> ?", strings.ToLower(email), except).
		Count(&n).Error
	return n > 0, err
}

func (db *MySQLDB) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	if _, err := db.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("username %q: %w", in.Username, storage.ErrDuplicate)
	}
	if taken, err := db.emailTaken(ctx, in.Email, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, storage.ErrEmailTaken
	}
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:        in.Username,
		Password:        hash,
		Email:           in.Email,
		DisplayName:     in.DisplayName,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		IsAdmin:         in.IsAdmin,
		FavoriteArtists: []string{},
		FavoriteSongs:   []int64{},
		Stats:           &models.UserStats{},
		CreatedAt:       time.Now(),
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (db *MySQLDB) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	user, err := db.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		if taken, err := db.emailTaken(ctx, *upd.Email, id); err != nil {
			return nil, err
		} else if taken {
			return nil, storage.ErrEmailTaken
		}
	}
	user.Apply(upd)
	if upd.Password != nil {
		hash, err := password.Hash(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = hash
		user.ResetToken = nil
		user.ResetTokenExpires = nil
	}
	if err := db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (db *MySQLDB) CreatePasswordResetToken(ctx context.Context, userID int64) (string, error) {
	token, err := password.NewResetToken()
	if err != nil {
		return "", err
	}
	expires := time.Now().Add(storage.ResetTokenTTL)
	res := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"reset_token": token, "reset_token_expires": expires})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", storage.ErrNotFound
	}
	return token, nil
}

func (db *MySQLDB) ValidatePasswordResetToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, storage.ErrInvalidToken
	}
	user, err := first[models.User](ctx, db.DB, "reset_token = ? AND reset_token_expires > ?", token, time.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrInvalidToken
	}
	return user, err
}

func (db *MySQLDB) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	res := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"password": hash, "reset_token": nil, "reset_token_expires": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Artist and album operations
func (db *MySQLDB) GetArtist(ctx context.Context, id int64) (*models.Artist, error) {
	return first[models.Artist](ctx, db.DB, "id = ?", id)
}

func (db *MySQLDB) ListArtists(ctx context.Context) ([]*models.Artist, error) {
	return find[models.Artist](ctx, db.DB, "id", "")
}

func (db *MySQLDB) CreateArtist(ctx context.Context, in models.NewArtist) (*models.Artist, error) {
	artist := &models.Artist{Name: in.Name, Bio: in.Bio, Image: in.Image, Genres: in.Genres}
	if artist.Genres == nil {
		artist.Genres = []string{}
	}
	if err := db.WithContext(ctx).Create(artist).Error; err != nil {
		return nil, err
	}
	return artist, nil
}

func (db *MySQLDB) UpdateArtist(ctx context.Context, id int64, upd models.ArtistUpdate) (*models.Artist, error) {
	artist, err := db.GetArtist(ctx, id)
	if err != nil {
		return nil, err
	}
	artist.Apply(upd)
	return artist, db.WithContext(ctx).Save(artist).Error
}

func (db *MySQLDB) GetAlbum(ctx context.Context, id int64) (*models.Album, error) {
	return first[models.Album](ctx, db.DB, "id = ?", id)
}

func (db *MySQLDB) ListAlbums(ctx context.Context) ([]*models.Album, error) {
	return find[models.Album](ctx, db.DB, "id", "")
}

func (db *MySQLDB) ListAlbumsByArtist(ctx context.Context, artistID int64) ([]*models.Album, error) {
	return find[models.Album](ctx, db.DB, "id", "artist_id = ?", artistID)
}

func (db *MySQLDB) CreateAlbum(ctx context.Context, in models.NewAlbum) (*models.Album, error) {
	album := &models.Album{
		Title:       in.Title,
		ArtistID:    in.ArtistID,
		CoverImage:  in.CoverImage,
		ReleaseYear: in.ReleaseYear,
		Genre:       in.Genre,
	}
	if err := db.WithContext(ctx).Create(album).Error; err != nil {
		return nil, err
	}
	return album, nil
}

func (db *MySQLDB) UpdateAlbum(ctx context.Context, id int64, upd models.AlbumUpdate) (*models.Album, error) {
	album, err := db.GetAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	album.Apply(upd)
	return album, db.WithContext(ctx).Save(album).Error
}

func adjustTrackCount(tx *gorm.DB, albumID *int64, delta int) error {
	if albumID == nil {
		return nil
	}
	return tx.Model(&models.Album{}).Where("id = ?", *albumID).
		Update("track_count", gorm.Expr("GREATEST(track_count + ?, 0)", delta)).Error
}

// Song operations
func (db *MySQLDB) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	return first[models.Song](ctx, db.DB, "id = ?", id)
}

func (db *MySQLDB) GetSongByBarcode(ctx context.Context, barcode string) (*models.Song, error) {
	return first[models.Song](ctx, db.DB, "barcode = ?", barcode)
}

func (db *MySQLDB) ListSongs(ctx context.Context) ([]*models.Song, error) {
	return find[models.Song](ctx, db.DB, "id", "")
}

func (db *MySQLDB) ListSongsByUser(ctx context.Context, userID int64) ([]*models.Song, error) {
	return find[models.Song](ctx, db.DB, "id", "user_id = ?", userID)
}

func (db *MySQLDB) ListSongsByArtist(ctx context.Context, artistID int64) ([]*models.Song, error) {
	return find[models.Song](ctx, db.DB, "id",
		"artist_id = ? OR JSON_CONTAINS(featured_artist_ids, CAST(? AS JSON))", artistID, artistID)
}

func (db *MySQLDB) ListSongsByAlbum(ctx context.Context, albumID int64) ([]*models.Song, error) {
	return find[models.Song](ctx, db.DB, "id", "album_id = ?", albumID)
}

func (db *MySQLDB) SearchSongs(ctx context.Context, query string) ([]*models.Song, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return db.ListSongs(ctx)
	}
	like := "%" + strings.ToLower(q) + "%"
	return find[models.Song](ctx, db.DB, "id",
		"LOWER(title) LIKE ? OR LOWER(artist) LIKE ? OR LOWER(album) LIKE ?", like, like, like)
}

func (db *MySQLDB) RecentSongs(ctx context.Context, limit int) ([]*models.Song, error) {
	songs := make([]*models.Song, 0)
	tx := db.WithContext(ctx).Order("uploaded_at DESC, id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&songs).Error; err != nil {
		return nil, err
	}
	return songs, nil
}

func (db *MySQLDB) CreateSong(ctx context.Context, in models.NewSong) (*models.Song, error) {
	song := &models.Song{
		Title:             in.Title,
		Artist:            in.Artist,
		ArtistID:          in.ArtistID,
		FeaturedArtistIDs: in.FeaturedArtistIDs,
		Album:             in.Album,
		AlbumID:           in.AlbumID,
		Genre:             in.Genre,
		Year:              in.Year,
		Duration:          in.Duration,
		CoverImage:        in.CoverImage,
		FilePath:          in.FilePath,
		Lyrics:            in.Lyrics,
		UserID:            in.UserID,
		UploadedAt:        time.Now(),
		Barcode:           storage.NewBarcode(),
	}
	if song.FeaturedArtistIDs == nil {
		song.FeaturedArtistIDs = []int64{}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(song).Error; err != nil {
			return err
		}
		if err := adjustTrackCount(tx, song.AlbumID, 1); err != nil {
			return err
		}
		return updateStats(tx, song.UserID, (*models.UserStats).AddUpload)
	})
	if err != nil {
		return nil, err
	}
	return song, nil
}

func (db *MySQLDB) UpdateSong(ctx context.Context, id int64, upd models.SongUpdate) (*models.Song, error) {
	song, err := db.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if song.AlbumChanged(upd) {
			if err := adjustTrackCount(tx, song.AlbumID, -1); err != nil {
				return err
			}
			if err := adjustTrackCount(tx, upd.AlbumID, 1); err != nil {
				return err
			}
		}
		song.Apply(upd)
		return tx.Save(song).Error
	})
	if err != nil {
		return nil, err
	}
	return song, nil
}

func (db *MySQLDB) DeleteSong(ctx context.Context, id int64) (bool, error) {
	song, err := db.GetSong(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []interface{}{
			&models.PlaylistSong{}, &models.Favorite{}, &models.LibraryEntry{}, &models.SongComment{},
		} {
			if err := tx.Where("song_id = ?", id).Delete(dependent).Error; err != nil {
				return err
			}
		}
		if err := adjustTrackCount(tx, song.AlbumID, -1); err != nil {
			return err
		}
		return tx.Delete(&models.Song{}, id).Error
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (db *MySQLDB) IncrementPlayCount(ctx context.Context, id int64) (*models.Song, error) {
	res := db.WithContext(ctx).Model(&models.Song{}).Where("id = ?", id).
		Update("play_count", gorm.Expr("play_count + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return db.GetSong(ctx, id)
}

// Playlist operations
func (db *MySQLDB) GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error) {
	return first[models.Playlist](ctx, db.DB, "id = ?", id)
}

func (db *MySQLDB) ListPlaylistsByUser(ctx context.Context, userID int64) ([]*models.Playlist, error) {
	return find[models.Playlist](ctx, db.DB, "id",
		"user_id = ? OR JSON_CONTAINS(collaborators, CAST(? AS JSON))", userID, userID)
}

func (db *MySQLDB) CreatePlaylist(ctx context.Context, in models.NewPlaylist) (*models.Playlist, error) {
	playlist := &models.Playlist{
		Name:          in.Name,
		Description:   in.Description,
		CoverImage:    in.CoverImage,
		UserID:        in.UserID,
		Collaborative: in.Collaborative,
		Collaborators: []int64{},
		CreatedAt:     time.Now(),
	}
	if err := db.WithContext(ctx).Create(playlist).Error; err != nil {
		return nil, err
	}
	return playlist, nil
}

func (db *MySQLDB) UpdatePlaylist(ctx context.Context, id int64, upd models.PlaylistUpdate) (*models.Playlist, error) {
	playlist, err := db.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	playlist.Apply(upd)
	return playlist, db.WithContext(ctx).Save(playlist).Error
}

func (db *MySQLDB) DeletePlaylist(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistSong{}).Error; err != nil {
			return err
		}
		var err error
		ok, err = deleted(tx.Delete(&models.Playlist{}, id))
		return err
	})
	return ok, err
}

func (db *MySQLDB) GetPlaylistSongs(ctx context.Context, playlistID int64) ([]*models.Song, error) {
	songs := make([]*models.Song, 0)
	err := db.WithContext(ctx).
		Joins("JOIN playlist_songs ON playlist_songs.song_id = songs.id").
		Where("playlist_songs.playlist_id = ?", playlistID).
		Order("playlist_songs.id").
		Find(&songs).Error
	if err != nil {
		return nil, err
	}
	return songs, nil
}

func (db *MySQLDB) ListPlaylistEntries(ctx context.Context, playlistID int64) ([]*models.PlaylistSong, error) {
	return find[models.PlaylistSong](ctx, db.DB, "id", "playlist_id = ?", playlistID)
}

func (db *MySQLDB) AddSongToPlaylist(ctx context.Context, playlistID, songID, addedBy int64) (*models.PlaylistSong, error) {
	row := &models.PlaylistSong{PlaylistID: playlistID, SongID: songID, AddedBy: addedBy, AddedAt: time.Now()}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return first[models.PlaylistSong](ctx, db.DB, "playlist_id = ? AND song_id = ?", playlistID, songID)
}

func (db *MySQLDB) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID int64) (bool, error) {
	return deleted(db.WithContext(ctx).Where("playlist_id = ? AND song_id = ?", playlistID, songID).
		Delete(&models.PlaylistSong{}))
}

func (db *MySQLDB) AddCollaborator(ctx context.Context, playlistID, userID int64) (*models.Playlist, error) {
	return db.editPlaylist(ctx, playlistID, func(p *models.Playlist) { p.AddCollaborator(userID) })
}

func (db *MySQLDB) RemoveCollaborator(ctx context.Context, playlistID, userID int64) (*models.Playlist, error) {
	return db.editPlaylist(ctx, playlistID, func(p *models.Playlist) { p.RemoveCollaborator(userID) })
}

func (db *MySQLDB) editPlaylist(ctx context.Context, id int64, edit func(*models.Playlist)) (*models.Playlist, error) {
	var playlist models.Playlist
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&playlist, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		edit(&playlist)
		return tx.Save(&playlist).Error
	})
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Favorite and library operations
func (db *MySQLDB) songsJoined(ctx context.Context, table string, userID int64) ([]*models.Song, error) {
	songs := make([]*models.Song, 0)
	err := db.WithContext(ctx).
		Joins(fmt.Sprintf("JOIN %s ON %s.song_id = songs.id", table, table)).
		Where(table+".user_id = ?", userID).
		Order(table + ".id").
		Find(&songs).Error
	if err != nil {
		return nil, err
	}
	return songs, nil
}

func (db *MySQLDB) ListFavorites(ctx context.Context, userID int64) ([]*models.Song, error) {
	return db.songsJoined(ctx, "favorites", userID)
}

func (db *MySQLDB) AddToFavorites(ctx context.Context, userID, songID int64) (*models.Favorite, error) {
	row := &models.Favorite{UserID: userID, SongID: songID, AddedAt: time.Now()}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return nil, err
	}
	return first[models.Favorite](ctx, db.DB, "user_id = ? AND song_id = ?", userID, songID)
}

func (db *MySQLDB) RemoveFromFavorites(ctx context.Context, userID, songID int64) (bool, error) {
	return deleted(db.WithContext(ctx).Where("user_id = ? AND song_id = ?", userID, songID).Delete(&models.Favorite{}))
}

func (db *MySQLDB) IsFavorite(ctx context.Context, userID, songID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ? AND song_id = ?", userID, songID).Count(&n).Error
	return n > 0, err
}

func (db *MySQLDB) ListLibrary(ctx context.Context, userID int64) ([]*models.Song, error) {
	return db.songsJoined(ctx, "library_entries", userID)
}

func (db *MySQLDB) AddToLibrary(ctx context.Context, userID, songID int64) (*models.LibraryEntry, error) {
	row := &models.LibraryEntry{UserID: userID, SongID: songID, AddedAt: time.Now()}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return nil, err
	}
	return first[models.LibraryEntry](ctx, db.DB, "user_id = ? AND song_id = ?", userID, songID)
}

func (db *MySQLDB) RemoveFromLibrary(ctx context.Context, userID, songID int64) (bool, error) {
	return deleted(db.WithContext(ctx).Where("user_id = ? AND song_id = ?", userID, songID).Delete(&models.LibraryEntry{}))
}

func (db *MySQLDB) IsInLibrary(ctx context.Context, userID, songID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.LibraryEntry{}).Where("user_id = ? AND song_id = ?", userID, songID).Count(&n).Error
	return n > 0, err
}

// Comment operations
func (db *MySQLDB) GetComment(ctx context.Context, id int64) (*models.SongComment, error) {
	return first[models.SongComment](ctx, db.DB, "id = ?", id)
}

func (db *MySQLDB) ListComments(ctx context.Context, songID int64) ([]*models.SongComment, error) {
	return find[models.SongComment](ctx, db.DB, "created_at ASC, id ASC", "song_id = ?", songID)
}

func (db *MySQLDB) CreateComment(ctx context.Context, in models.NewComment) (*models.SongComment, error) {
	comment := &models.SongComment{
		SongID:    in.SongID,
		UserID:    in.UserID,
		Comment:   in.Comment,
		Timestamp: in.Timestamp,
		CreatedAt: time.Now(),
	}
	if err := db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

func (db *MySQLDB) DeleteComment(ctx context.Context, id int64) (bool, error) {
	return deleted(db.WithContext(ctx).Delete(&models.SongComment{}, id))
}

// History operations
func (db *MySQLDB) RecordListen(ctx context.Context, userID, songID int64, duration int) (*models.ListeningHistory, error) {
	entry := &models.ListeningHistory{UserID: userID, SongID: songID, ListenDate: time.Now(), Duration: duration}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Song{}).Where("id = ?", songID).Update("play_count", gorm.Expr("play_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return updateStats(tx, userID, func(s *models.UserStats) { s.AddListen(songID, duration) })
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// updateStats applies edit to the user's stats blob under a row lock.
// A missing user is skipped.
func updateStats(tx *gorm.DB, userID int64, edit func(*models.UserStats)) error {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "stats").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.Stats == nil {
		user.Stats = &models.UserStats{}
	}
	edit(user.Stats)
	return tx.Model(&user).Select("stats").Updates(&user).Error
}

func (db *MySQLDB) ListHistory(ctx context.Context, userID int64, limit int) ([]*models.ListeningHistory, error) {
	rows := make([]*models.ListeningHistory, 0)
	tx := db.WithContext(ctx).Where("user_id = ?", userID).Order("listen_date DESC, id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *MySQLDB) GetUserListeningStats(ctx context.Context, userID int64) (*models.ListeningStats, error) {
	history, err := find[models.ListeningHistory](ctx, db.DB, "id", "user_id = ?", userID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(history))
	for _, h := range history {
		ids = append(ids, h.SongID)
	}
	songs := make(map[int64]*models.Song)
	if len(ids) > 0 {
		found, err := find[models.Song](ctx, db.DB, "id", "id IN ?", ids)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			songs[s.ID] = s
		}
	}
	return storage.AggregateStats(history, func(id int64) *models.Song { return songs[id] }), nil
}

// Game operations
func (db *MySQLDB) CreateGame(ctx context.Context, in models.NewGame) (*models.Game, error) {
	game := &models.Game{
		UserID:          in.UserID,
		GameType:        in.GameType,
		Score:           in.Score,
		DurationSeconds: in.DurationSeconds,
		CreatedAt:       time.Now(),
	}
	if err := db.WithContext(ctx).Create(game).Error; err != nil {
		return nil, err
	}
	return game, nil
}

func (db *MySQLDB) ListGamesByUser(ctx context.Context, userID int64) ([]*models.Game, error) {
	return find[models.Game](ctx, db.DB, "id", "user_id = ?", userID)
}

func (db *MySQLDB) TopGames(ctx context.Context, gameType string, limit int) ([]*models.Game, error) {
	games := make([]*models.Game, 0)
	tx := db.WithContext(ctx).Order("score DESC, created_at ASC, id ASC")
	if gameType != "" {
		tx = tx.Where("game_type = ?", gameType)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

// Song request operations
func (db *MySQLDB) GetSongRequest(ctx context.Context, id int64) (*models.SongRequest, error) {
	return first[models.SongRequest](ctx, db.DB, "id = ?", id)
}

func (db *MySQLDB) ListSongRequests(ctx context.Context) ([]*models.SongRequest, error) {
	return find[models.SongRequest](ctx, db.DB, "id", "")
}

func (db *MySQLDB) ListSongRequestsByUser(ctx context.Context, userID int64) ([]*models.SongRequest, error) {
	return find[models.SongRequest](ctx, db.DB, "id", "user_id = ?", userID)
}

func (db *MySQLDB) ListPendingSongRequests(ctx context.Context) ([]*models.SongRequest, error) {
	return find[models.SongRequest](ctx, db.DB, "id", "status = ?", models.RequestPending)
}

func (db *MySQLDB) CreateSongRequest(ctx context.Context, in models.NewSongRequest) (*models.SongRequest, error) {
	req := &models.SongRequest{
		Title:           in.Title,
		ArtistName:      in.ArtistName,
		ArtistID:        in.ArtistID,
		FeaturedArtists: in.FeaturedArtists,
		Album:           in.Album,
		Year:            in.Year,
		CoverImage:      in.CoverImage,
		Notes:           in.Notes,
		UserID:          in.UserID,
		Status:          models.RequestPending,
		CreatedAt:       time.Now(),
	}
	if req.FeaturedArtists == nil {
		req.FeaturedArtists = []string{}
	}
	if err := db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

func (db *MySQLDB) UpdateSongRequestStatus(ctx context.Context, id int64, status models.SongRequestStatus, message *string) (*models.SongRequest, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	req, err := db.GetSongRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Status = status
	if message != nil {
		req.AdminMessage = message
	}
	return req, db.WithContext(ctx).Save(req).Error
}

func (db *MySQLDB) DeleteSongRequest(ctx context.Context, id int64) (bool, error) {
	return deleted(db.WithContext(ctx).Delete(&models.SongRequest{}, id))
}

// Short link operations
func (db *MySQLDB) GetShortLink(ctx context.Context, id int64) (*models.ShortLink, error) {
	return first[models.ShortLink](ctx, db.DB, "id = ?", id)
}

func (db *MySQLDB) GetShortLinkByShortID(ctx context.Context, shortID string) (*models.ShortLink, error) {
	return first[models.ShortLink](ctx, db.DB, "short_id = ?", shortID)
}

func (db *MySQLDB) ListShortLinksByUser(ctx context.Context, userID int64) ([]*models.ShortLink, error) {
	return find[models.ShortLink](ctx, db.DB, "id", "user_id = ?", userID)
}

func (db *MySQLDB) CreateShortLink(ctx context.Context, in models.NewShortLink) (*models.ShortLink, error) {
	if _, err := db.GetShortLinkByShortID(ctx, in.ShortID); err == nil {
		return nil, fmt.Errorf("short id %q: %w", in.ShortID, storage.ErrDuplicate)
	}
	link := &models.ShortLink{
		ShortID:     in.ShortID,
		TargetURL:   in.TargetURL,
		Type:        in.Type,
		ReferenceID: in.ReferenceID,
		UserID:      in.UserID,
		CreatedAt:   time.Now(),
	}
	if err := db.WithContext(ctx).Create(link).Error; err != nil {
		return nil, err
	}
	return link, nil
}

func (db *MySQLDB) IncrementShortLinkClicks(ctx context.Context, shortID string) (*models.ShortLink, error) {
	res := db.WithContext(ctx).Model(&models.ShortLink{}).Where("short_id = ?", shortID).
		Update("clicks", gorm.Expr("clicks + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return db.GetShortLinkByShortID(ctx, shortID)
}

func (db *MySQLDB) DeleteShortLink(ctx context.Context, id int64) (bool, error) {
	return deleted(db.WithContext(ctx).Delete(&models.ShortLink{}, id))
}
