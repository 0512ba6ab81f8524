package song

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/metrics"
	"github.com/tunehaven/tunehaven/internal/upload"
	"github.com/tunehaven/tunehaven/pkg/events"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

// ErrUnknownAlbum is returned when an upload or edit names an album id that
// does not exist.
var ErrUnknownAlbum = errors.New("unknown album")

// MissingFieldError is returned when a required field was neither given nor
// found in the audio file's tags.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string { return e.Field + " is required" }

type Store interface {
	storage.SongStore
	storage.CatalogStore
	storage.CommentStore
	storage.HistoryStore
}

type Service struct {
	store  Store
	files  *upload.Store
	events events.Publisher
	log    *zap.Logger
}

func NewService(store Store, files *upload.Store, publisher events.Publisher, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		files:  files,
		events: publisher,
		log:    log,
	}
}

// Create stores a song whose audio has already been written to disk. Empty
// title, artist, album, genre and year are filled from the file's embedded
// tags. On failure the audio and cover files are removed.
func (s *Service) Create(ctx context.Context, in models.NewSong, audio *upload.Saved, cover *upload.Saved) (*models.Song, error) {
	cleanup := func() {
		s.removeFile(audio.Path, 0)
		if cover != nil {
			s.removeFile(cover.Path, 0)
		}
	}

	if err := s.checkAlbum(ctx, in.AlbumID); err != nil {
		cleanup()
		return nil, err
	}

	in.FilePath = audio.Path
	if cover != nil {
		in.CoverImage = &cover.URL
	}
	s.fillFromTags(&in)
	if in.Title == "" || in.Artist == "" {
		cleanup()
		if in.Title == "" {
			return nil, &MissingFieldError{Field: "title"}
		}
		return nil, &MissingFieldError{Field: "artist"}
	}

	song, err := s.store.CreateSong(ctx, in)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create song: %w", err)
	}

	metrics.SongsUploaded.Inc()
	metrics.UploadBytes.Observe(float64(audio.Size))
	s.publish(ctx, events.EventTypeSongUploaded, song.UserID, events.SongPayload{
		SongID: song.ID,
		Title:  song.Title,
		Artist: song.Artist,
	})
	return song, nil
}

func (s *Service) fillFromTags(in *models.NewSong) {
	if in.Title != "" && in.Artist != "" && in.Album != "" && in.Genre != "" && in.Year != nil {
		return
	}
	tags, err := upload.ReadTags(in.FilePath)
	if err != nil {
		s.log.Debug("no embedded tags", zap.String("path", in.FilePath), zap.Error(err))
		return
	}
	if in.Title == "" {
		in.Title = tags.Title
	}
	if in.Artist == "" {
		in.Artist = tags.Artist
	}
	if in.Album == "" {
		in.Album = tags.Album
	}
	if in.Genre == "" {
		in.Genre = tags.Genre
	}
	if in.Year == nil && tags.Year > 0 {
		year := tags.Year
		in.Year = &year
	}
}

func (s *Service) Update(ctx context.Context, id int64, upd models.SongUpdate) (*models.Song, error) {
	if err := s.checkAlbum(ctx, upd.AlbumID); err != nil {
		return nil, err
	}
	return s.store.UpdateSong(ctx, id, upd)
}

func (s *Service) checkAlbum(ctx context.Context, albumID *int64) error {
	if albumID == nil {
		return nil
	}
	if _, err := s.store.GetAlbum(ctx, *albumID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownAlbum
		}
		return err
	}
	return nil
}

// Delete removes the song, its dependent rows and its audio file. A file
// that cannot be removed is logged and does not fail the delete.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	song, err := s.store.GetSong(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	ok, err := s.store.DeleteSong(ctx, id)
	if err != nil || !ok {
		return ok, err
	}

	s.removeFile(song.FilePath, song.ID)
	s.publish(ctx, events.EventTypeSongDeleted, song.UserID, events.SongPayload{
		SongID: song.ID,
		Title:  song.Title,
		Artist: song.Artist,
	})
	return true, nil
}

func (s *Service) removeFile(path string, songID int64) {
	if err := s.files.Remove(path); err != nil {
		s.log.Warn("failed to remove song file",
			zap.Int64("song_id", songID),
			zap.String("path", path),
			zap.Error(err))
	}
}

// RecordPlay appends a listen to the user's history.
func (s *Service) RecordPlay(ctx context.Context, userID, songID int64, duration int) (*models.ListeningHistory, error) {
	entry, err := s.store.RecordListen(ctx, userID, songID, duration)
	if err != nil {
		return nil, fmt.Errorf("failed to record listen: %w", err)
	}

	metrics.ListensRecorded.Inc()
	s.publish(ctx, events.EventTypeSongPlayed, userID, events.SongPlayedPayload{
		SongID:   songID,
		Duration: duration,
	})
	return entry, nil
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, userID int64, payload interface{}) {
	if err := s.events.Publish(ctx, eventType, userID, payload); err != nil {
		s.log.Warn("failed to publish event", zap.String("type", string(eventType)), zap.Error(err))
	}
}
