package storage

import (
	"context"
	"testing"
	"time"

	"github.com/tunehaven/tunehaven/pkg/models"
)

func TestListeningStats(t *testing.T) {
	ctx := context.Background()

	t.Run("RepeatedSong", func(t *testing.T) {
		m, _ := setupStore(t)
		u := mustUser(t, m, "alice")
		s := mustSong(t, m, u.ID, "One", "Band", "rock")

		for _, d := range []int{30, 60, 90} {
			if _, err := m.RecordListen(ctx, u.ID, s.ID, d); err != nil {
				t.Fatalf("failed to record listen: %v", err)
			}
		}

		stats, err := m.GetUserListeningStats(ctx, u.ID)
		if err != nil {
			t.Fatalf("failed to get stats: %v", err)
		}
		if stats.TotalListeningTime != 180 {
			t.Errorf("expected total 180, got %d", stats.TotalListeningTime)
		}
		if len(stats.TopSongs) != 1 || stats.TopSongs[0].Song.ID != s.ID || stats.TopSongs[0].PlayCount != 3 {
			t.Errorf("unexpected top songs %+v", stats.TopSongs)
		}
		if len(stats.TopArtists) != 1 || stats.TopArtists[0] != (models.NamePlays{Name: "Band", PlayCount: 3}) {
			t.Errorf("unexpected top artists %+v", stats.TopArtists)
		}
		if len(stats.TopGenres) != 1 || stats.TopGenres[0] != (models.NamePlays{Name: "rock", PlayCount: 3}) {
			t.Errorf("unexpected top genres %+v", stats.TopGenres)
		}

		song, _ := m.GetSong(ctx, s.ID)
		if song.PlayCount != 3 {
			t.Errorf("expected recording to bump play count to 3, got %d", song.PlayCount)
		}
		user, _ := m.GetUser(ctx, u.ID)
		if user.Stats.TotalListens != 3 || user.Stats.TotalListenTime != 180 ||
			user.Stats.LastListenedID != s.ID || user.Stats.SongsUploaded != 1 {
			t.Errorf("unexpected user stats blob %+v", user.Stats)
		}
	})

	t.Run("TiesKeepCountingOrder", func(t *testing.T) {
		m, _ := setupStore(t)
		a := mustSong(t, m, 1, "A", "X", "pop")
		b := mustSong(t, m, 1, "B", "Y", "jazz")
		c := mustSong(t, m, 1, "C", "Z", "pop")

		for _, id := range []int64{b.ID, a.ID, c.ID, c.ID} {
			m.RecordListen(ctx, 1, id, 10)
		}

		stats, _ := m.GetUserListeningStats(ctx, 1)
		got := []string{}
		for _, sp := range stats.TopSongs {
			got = append(got, sp.Song.Title)
		}
		if len(got) != 3 || got[0] != "C" || got[1] != "B" || got[2] != "A" {
			t.Errorf("expected [C B A], got %v", got)
		}
		if stats.TopGenres[0].Name != "pop" || stats.TopGenres[0].PlayCount != 3 {
			t.Errorf("unexpected top genre %+v", stats.TopGenres[0])
		}
	})

	t.Run("Limits", func(t *testing.T) {
		history := make([]*models.ListeningHistory, 0)
		songs := map[int64]*models.Song{}
		for i := int64(1); i <= 12; i++ {
			songs[i] = &models.Song{ID: i, Artist: string(rune('a' + i)), Genre: string(rune('A' + i))}
			history = append(history, &models.ListeningHistory{SongID: i, Duration: 1})
		}
		stats := AggregateStats(history, func(id int64) *models.Song { return songs[id] })
		if len(stats.TopSongs) != 10 || len(stats.TopArtists) != 5 || len(stats.TopGenres) != 5 {
			t.Errorf("unexpected lengths %d/%d/%d", len(stats.TopSongs), len(stats.TopArtists), len(stats.TopGenres))
		}
		if stats.TotalListeningTime != 12 {
			t.Errorf("expected total 12, got %d", stats.TotalListeningTime)
		}
	})

	t.Run("EmptyHistory", func(t *testing.T) {
		m, _ := setupStore(t)
		stats, _ := m.GetUserListeningStats(ctx, 9)
		if stats.TotalListeningTime != 0 || stats.TopSongs == nil || len(stats.TopSongs) != 0 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("HistoryNewestFirst", func(t *testing.T) {
		m, clock := setupStore(t)
		a := mustSong(t, m, 1, "A", "X", "")
		b := mustSong(t, m, 1, "B", "X", "")
		m.RecordListen(ctx, 1, a.ID, 10)
		clock.Advance(time.Minute)
		m.RecordListen(ctx, 1, b.ID, 10)

		h, _ := m.ListHistory(ctx, 1, 0)
		if len(h) != 2 || h[0].SongID != b.ID {
			t.Errorf("expected newest first, got %+v", h)
		}
		if h, _ := m.ListHistory(ctx, 1, 1); len(h) != 1 {
			t.Errorf("expected limit 1, got %d", len(h))
		}
	})

	t.Run("UnknownSong", func(t *testing.T) {
		m, _ := setupStore(t)
		if _, err := m.RecordListen(ctx, 1, 404, 10); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
