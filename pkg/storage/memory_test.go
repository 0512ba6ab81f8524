package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/password"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time           { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupStore(t *testing.T) (*Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemory(WithClock(clock.Now)), clock
}

func mustUser(t *testing.T, m *Memory, username string) *models.User {
	t.Helper()
	u, err := m.CreateUser(context.Background(), models.NewUser{
		Username: username,
		Password: "Passw0rd!",
		Email:    username + "@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func mustSong(t *testing.T, m *Memory, owner int64, title, artist, genre string) *models.Song {
	t.Helper()
	s, err := m.CreateSong(context.Background(), models.NewSong{
		Title:    title,
		Artist:   artist,
		Genre:    genre,
		Duration: 180,
		FilePath: "uploads/" + title + ".mp3",
		UserID:   owner,
	})
	if err != nil {
		t.Fatalf("failed to create song: %v", err)
	}
	return s
}

func TestUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateThenGet", func(t *testing.T) {
		m, clock := setupStore(t)
		u := mustUser(t, m, "alice")

		if u.ID != 1 {
			t.Errorf("expected first id 1, got %d", u.ID)
		}
		if !u.CreatedAt.Equal(clock.Now()) {
			t.Errorf("expected createdAt %v, got %v", clock.Now(), u.CreatedAt)
		}
		if u.DisplayName != "alice" {
			t.Errorf("expected display name to default to username, got %q", u.DisplayName)
		}
		if u.FavoriteArtists == nil || u.FavoriteSongs == nil {
			t.Error("expected empty favorite lists, got nil")
		}

		got, err := m.GetUser(ctx, u.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Username != "alice" || got.Email != "alice@example.com" {
			t.Errorf("unexpected user %+v", got)
		}
		if ok, _ := password.Verify("Passw0rd!", got.Password); !ok {
			t.Error("expected stored password to be a hash of the input")
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		m, _ := setupStore(t)
		mustUser(t, m, "alice")
		_, err := m.CreateUser(ctx, models.NewUser{Username: "alice", Password: "x"})
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("DuplicateEmailIgnoresCase", func(t *testing.T) {
		m, _ := setupStore(t)
		victim := mustUser(t, m, "victim")
		_, err := m.CreateUser(ctx, models.NewUser{Username: "intruder", Password: "x", Email: "VICTIM@example.com"})
		if !errors.Is(err, ErrEmailTaken) || !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
		for i := 0; i < 20; i++ {
			got, err := m.GetUserByEmail(ctx, "victim@example.com")
			if err != nil || got.ID != victim.ID {
				t.Fatalf("email resolved to %+v, %v", got, err)
			}
		}

		other := mustUser(t, m, "other")
		taken := "Victim@Example.com"
		if _, err := m.UpdateUser(ctx, other.ID, models.UserUpdate{Email: &taken}); !errors.Is(err, ErrEmailTaken) {
			t.Errorf("update to a taken email: %v", err)
		}
		own := "VICTIM@example.com"
		if _, err := m.UpdateUser(ctx, victim.ID, models.UserUpdate{Email: &own}); err != nil {
			t.Errorf("re-casing own email: %v", err)
		}
	})

	t.Run("UpdatePasswordViaUpdateUser", func(t *testing.T) {
		m, _ := setupStore(t)
		u := mustUser(t, m, "pat")
		if _, err := m.CreatePasswordResetToken(ctx, u.ID); err != nil {
			t.Fatal(err)
		}
		pw := "Newpass1!"
		got, err := m.UpdateUser(ctx, u.ID, models.UserUpdate{Password: &pw})
		if err != nil {
			t.Fatal(err)
		}
		if ok, _ := password.Verify(pw, got.Password); !ok {
			t.Error("password not changed")
		}
		if got.ResetToken != nil {
			t.Error("reset token kept after password change")
		}
	})

	t.Run("MissingIsNotFound", func(t *testing.T) {
		m, _ := setupStore(t)
		if _, err := m.GetUser(ctx, 42); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := m.UpdateUser(ctx, 42, models.UserUpdate{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		m, _ := setupStore(t)
		u := mustUser(t, m, "alice")
		bio := "hello"
		updated, err := m.UpdateUser(ctx, u.ID, models.UserUpdate{Bio: &bio})
		if err != nil {
			t.Fatalf("failed to update: %v", err)
		}
		if updated.Bio != "hello" {
			t.Errorf("expected bio updated, got %q", updated.Bio)
		}
		if updated.Email != u.Email || updated.Username != u.Username {
			t.Error("expected absent fields to be preserved")
		}
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		m, _ := setupStore(t)
		u := mustUser(t, m, "alice")
		u.Username = "mallory"
		got, _ := m.GetUser(ctx, u.ID)
		if got.Username != "alice" {
			t.Error("mutating a returned user changed the stored one")
		}
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidBeforeExpiry", func(t *testing.T) {
		m, clock := setupStore(t)
		u := mustUser(t, m, "alice")
		token, err := m.CreatePasswordResetToken(ctx, u.ID)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		clock.Advance(ResetTokenTTL - time.Second)
		got, err := m.ValidatePasswordResetToken(ctx, token)
		if err != nil {
			t.Fatalf("expected token to be valid: %v", err)
		}
		if got.ID != u.ID {
			t.Errorf("expected user %d, got %d", u.ID, got.ID)
		}
	})

	t.Run("RejectedAtExpiry", func(t *testing.T) {
		m, clock := setupStore(t)
		u := mustUser(t, m, "alice")
		token, _ := m.CreatePasswordResetToken(ctx, u.ID)

		clock.Advance(ResetTokenTTL)
		if _, err := m.ValidatePasswordResetToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken at expiry, got %v", err)
		}
	})

	t.Run("WrongToken", func(t *testing.T) {
		m, _ := setupStore(t)
		u := mustUser(t, m, "alice")
		m.CreatePasswordResetToken(ctx, u.ID)
		if _, err := m.ValidatePasswordResetToken(ctx, "nope"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("UpdatePasswordClearsToken", func(t *testing.T) {
		m, _ := setupStore(t)
		u := mustUser(t, m, "alice")
		token, _ := m.CreatePasswordResetToken(ctx, u.ID)

		if err := m.UpdatePassword(ctx, u.ID, "N3w!password"); err != nil {
			t.Fatalf("failed to update password: %v", err)
		}
		if _, err := m.ValidatePasswordResetToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected token invalidated, got %v", err)
		}
		got, _ := m.GetUser(ctx, u.ID)
		if ok, _ := password.Verify("N3w!password", got.Password); !ok {
			t.Error("expected new password to verify")
		}
		if got.ResetToken != nil || got.ResetTokenExpires != nil {
			t.Error("expected reset token and expiry cleared")
		}
	})
}

func TestSongs(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateDefaults", func(t *testing.T) {
		m, clock := setupStore(t)
		u := mustUser(t, m, "alice")
		s := mustSong(t, m, u.ID, "One", "Band", "rock")

		if s.PlayCount != 0 || s.Barcode == "" || !s.UploadedAt.Equal(clock.Now()) {
			t.Errorf("unexpected defaults %+v", s)
		}
		got, err := m.GetSong(ctx, s.ID)
		if err != nil {
			t.Fatalf("failed to get song: %v", err)
		}
		if got.Title != "One" || got.UserID != u.ID {
			t.Errorf("unexpected song %+v", got)
		}
		byCode, err := m.GetSongByBarcode(ctx, s.Barcode)
		if err != nil || byCode.ID != s.ID {
			t.Errorf("expected barcode lookup to find song %d, got %v %v", s.ID, byCode, err)
		}
	})

	t.Run("IncrementPlayCount", func(t *testing.T) {
		m, _ := setupStore(t)
		s := mustSong(t, m, 1, "One", "Band", "rock")
		for i := 0; i < 5; i++ {
			if _, err := m.IncrementPlayCount(ctx, s.ID); err != nil {
				t.Fatalf("failed to increment: %v", err)
			}
		}
		got, _ := m.GetSong(ctx, s.ID)
		if got.PlayCount != 5 {
			t.Errorf("expected play count 5, got %d", got.PlayCount)
		}
		if _, err := m.IncrementPlayCount(ctx, 99); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("IdsNotReused", func(t *testing.T) {
		m, _ := setupStore(t)
		a := mustSong(t, m, 1, "A", "X", "")
		m.DeleteSong(ctx, a.ID)
		b := mustSong(t, m, 1, "B", "X", "")
		if b.ID == a.ID {
			t.Errorf("expected fresh id, got reused %d", b.ID)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		m, _ := setupStore(t)
		u := mustUser(t, m, "alice")
		s := mustSong(t, m, u.ID, "One", "Band", "rock")
		keep := mustSong(t, m, u.ID, "Two", "Band", "rock")
		p, _ := m.CreatePlaylist(ctx, models.NewPlaylist{Name: "Mix", UserID: u.ID})

		m.AddSongToPlaylist(ctx, p.ID, s.ID, u.ID)
		m.AddSongToPlaylist(ctx, p.ID, keep.ID, u.ID)
		m.AddToFavorites(ctx, u.ID, s.ID)
		m.AddToLibrary(ctx, u.ID, s.ID)
		m.CreateComment(ctx, models.NewComment{SongID: s.ID, UserID: u.ID, Comment: "nice"})

		ok, err := m.DeleteSong(ctx, s.ID)
		if err != nil || !ok {
			t.Fatalf("expected delete to succeed, got %v %v", ok, err)
		}

		entries, _ := m.ListPlaylistEntries(ctx, p.ID)
		if len(entries) != 1 || entries[0].SongID != keep.ID {
			t.Errorf("expected only the kept song on the playlist, got %+v", entries)
		}
		if fav, _ := m.IsFavorite(ctx, u.ID, s.ID); fav {
			t.Error("expected favorite removed")
		}
		if in, _ := m.IsInLibrary(ctx, u.ID, s.ID); in {
			t.Error("expected library entry removed")
		}
		if comments, _ := m.ListComments(ctx, s.ID); len(comments) != 0 {
			t.Errorf("expected no comments, got %d", len(comments))
		}
		if _, err := m.GetSong(ctx, s.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		again, err := m.DeleteSong(ctx, s.ID)
		if err != nil || again {
			t.Errorf("expected second delete to report false, got %v %v", again, err)
		}
	})

	t.Run("AlbumTrackCount", func(t *testing.T) {
		m, _ := setupStore(t)
		album, _ := m.CreateAlbum(ctx, models.NewAlbum{Title: "LP", ArtistID: 1})
		s, _ := m.CreateSong(ctx, models.NewSong{Title: "One", AlbumID: &album.ID})
		m.CreateSong(ctx, models.NewSong{Title: "Two", AlbumID: &album.ID})

		got, _ := m.GetAlbum(ctx, album.ID)
		if got.TrackCount != 2 {
			t.Errorf("expected track count 2, got %d", got.TrackCount)
		}
		m.DeleteSong(ctx, s.ID)
		got, _ = m.GetAlbum(ctx, album.ID)
		if got.TrackCount != 1 {
			t.Errorf("expected track count 1 after delete, got %d", got.TrackCount)
		}
	})

	t.Run("RecentSongsNewestFirst", func(t *testing.T) {
		m, clock := setupStore(t)
		for _, title := range []string{"A", "B", "C"} {
			mustSong(t, m, 1, title, "X", "")
			clock.Advance(time.Minute)
		}
		recent, _ := m.RecentSongs(ctx, 2)
		if len(recent) != 2 || recent[0].Title != "C" || recent[1].Title != "B" {
			t.Errorf("unexpected recent songs %v", titles(recent))
		}
	})

	t.Run("Search", func(t *testing.T) {
		m, _ := setupStore(t)
		mustSong(t, m, 1, "Blue Sky", "Nova", "")
		mustSong(t, m, 1, "Red", "Skyline", "")
		mustSong(t, m, 1, "Green", "Other", "")
		found, _ := m.SearchSongs(ctx, "SKY")
		if len(found) != 2 {
			t.Errorf("expected 2 matches, got %v", titles(found))
		}
	})
}

func titles(songs []*models.Song) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.Title
	}
	return out
}

func TestPlaylists(t *testing.T) {
	ctx := context.Background()

	t.Run("AddSongIdempotent", func(t *testing.T) {
		m, clock := setupStore(t)
		p, _ := m.CreatePlaylist(ctx, models.NewPlaylist{Name: "Road Trip", UserID: 1})
		s := mustSong(t, m, 2, "One", "Band", "")

		first, err := m.AddSongToPlaylist(ctx, p.ID, s.ID, 1)
		if err != nil {
			t.Fatalf("failed to add: %v", err)
		}
		clock.Advance(time.Hour)
		second, err := m.AddSongToPlaylist(ctx, p.ID, s.ID, 3)
		if err != nil {
			t.Fatalf("failed to add again: %v", err)
		}
		if *second != *first {
			t.Errorf("expected the existing row back, got %+v vs %+v", second, first)
		}
		entries, _ := m.ListPlaylistEntries(ctx, p.ID)
		if len(entries) != 1 {
			t.Errorf("expected exactly one row, got %d", len(entries))
		}
	})

	t.Run("DeleteCascadesRows", func(t *testing.T) {
		m, _ := setupStore(t)
		p, _ := m.CreatePlaylist(ctx, models.NewPlaylist{Name: "Mix", UserID: 1})
		s := mustSong(t, m, 1, "One", "Band", "")
		m.AddSongToPlaylist(ctx, p.ID, s.ID, 1)

		if ok, _ := m.DeletePlaylist(ctx, p.ID); !ok {
			t.Fatal("expected delete to succeed")
		}
		if entries, _ := m.ListPlaylistEntries(ctx, p.ID); len(entries) != 0 {
			t.Errorf("expected rows removed, got %d", len(entries))
		}
		if _, err := m.GetSong(ctx, s.ID); err != nil {
			t.Errorf("expected song untouched, got %v", err)
		}
	})

	t.Run("Collaborators", func(t *testing.T) {
		m, _ := setupStore(t)
		p, _ := m.CreatePlaylist(ctx, models.NewPlaylist{Name: "Mix", UserID: 1})

		p, _ = m.AddCollaborator(ctx, p.ID, 2)
		p, _ = m.AddCollaborator(ctx, p.ID, 2)
		if len(p.Collaborators) != 1 || !p.Collaborative {
			t.Errorf("expected one collaborator and collaborative flag, got %+v", p)
		}

		shared, _ := m.ListPlaylistsByUser(ctx, 2)
		if len(shared) != 1 {
			t.Errorf("expected collaborator to see playlist, got %d", len(shared))
		}

		p, err := m.RemoveCollaborator(ctx, p.ID, 7)
		if err != nil || len(p.Collaborators) != 1 {
			t.Errorf("expected no-op for unknown collaborator, got %+v %v", p, err)
		}
		p, _ = m.RemoveCollaborator(ctx, p.ID, 2)
		if len(p.Collaborators) != 0 {
			t.Errorf("expected collaborator removed, got %v", p.Collaborators)
		}

		if _, err := m.AddCollaborator(ctx, 99, 2); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SongsInAddOrder", func(t *testing.T) {
		m, _ := setupStore(t)
		p, _ := m.CreatePlaylist(ctx, models.NewPlaylist{Name: "Mix", UserID: 1})
		a := mustSong(t, m, 1, "A", "X", "")
		b := mustSong(t, m, 1, "B", "X", "")
		m.AddSongToPlaylist(ctx, p.ID, b.ID, 1)
		m.AddSongToPlaylist(ctx, p.ID, a.ID, 1)

		songs, _ := m.GetPlaylistSongs(ctx, p.ID)
		if got := titles(songs); len(got) != 2 || got[0] != "B" || got[1] != "A" {
			t.Errorf("expected [B A], got %v", got)
		}
	})
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	m, _ := setupStore(t)
	s := mustSong(t, m, 1, "One", "Band", "")

	if _, err := m.AddToFavorites(ctx, 1, s.ID); err != nil {
		t.Fatalf("failed to favorite: %v", err)
	}
	m.AddToFavorites(ctx, 1, s.ID)
	if fav, _ := m.IsFavorite(ctx, 1, s.ID); !fav {
		t.Error("expected favorite after add")
	}
	if songs, _ := m.ListFavorites(ctx, 1); len(songs) != 1 {
		t.Errorf("expected one favorite, got %d", len(songs))
	}

	if ok, _ := m.RemoveFromFavorites(ctx, 1, s.ID); !ok {
		t.Error("expected remove to report true")
	}
	if fav, _ := m.IsFavorite(ctx, 1, s.ID); fav {
		t.Error("expected not favorite after remove")
	}
	ok, err := m.RemoveFromFavorites(ctx, 1, s.ID)
	if err != nil || ok {
		t.Errorf("expected (false, nil) removing a non-favorite, got (%v, %v)", ok, err)
	}
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	m, clock := setupStore(t)
	s := mustSong(t, m, 1, "One", "Band", "")

	at := 42
	m.CreateComment(ctx, models.NewComment{SongID: s.ID, UserID: 1, Comment: "first", Timestamp: &at})
	clock.Advance(time.Minute)
	m.CreateComment(ctx, models.NewComment{SongID: s.ID, UserID: 2, Comment: "second"})

	comments, _ := m.ListComments(ctx, s.ID)
	if len(comments) != 2 || comments[0].Comment != "first" || comments[1].Comment != "second" {
		t.Fatalf("expected oldest first, got %+v", comments)
	}
	if comments[0].Timestamp == nil || *comments[0].Timestamp != 42 {
		t.Error("expected in-track timestamp preserved")
	}
	if ok, _ := m.DeleteComment(ctx, comments[0].ID); !ok {
		t.Error("expected delete to succeed")
	}
}

func TestSongRequests(t *testing.T) {
	ctx := context.Background()
	m, _ := setupStore(t)

	r, err := m.CreateSongRequest(ctx, models.NewSongRequest{Title: "Wish", ArtistName: "Someone", UserID: 3})
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if r.Status != models.RequestPending || r.AdminMessage != nil {
		t.Errorf("expected pending without message, got %+v", r)
	}

	msg := "added next week"
	r, _ = m.UpdateSongRequestStatus(ctx, r.ID, models.RequestApproved, &msg)
	if r.Status != models.RequestApproved || *r.AdminMessage != msg {
		t.Errorf("unexpected request %+v", r)
	}

	r, _ = m.UpdateSongRequestStatus(ctx, r.ID, models.RequestRejected, nil)
	if r.Status != models.RequestRejected || r.AdminMessage == nil || *r.AdminMessage != msg {
		t.Errorf("expected message preserved on re-transition, got %+v", r)
	}

	if pending, _ := m.ListPendingSongRequests(ctx); len(pending) != 0 {
		t.Errorf("expected no pending requests, got %d", len(pending))
	}
	if _, err := m.UpdateSongRequestStatus(ctx, r.ID, "archived", nil); err == nil {
		t.Error("expected unknown status to fail")
	}
	if _, err := m.UpdateSongRequestStatus(ctx, 99, models.RequestApproved, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestShortLinks(t *testing.T) {
	ctx := context.Background()
	m, _ := setupStore(t)

	l, err := m.CreateShortLink(ctx, models.NewShortLink{ShortID: "abc123", TargetURL: "/songs/1", Type: "song", UserID: 1})
	if err != nil {
		t.Fatalf("failed to create link: %v", err)
	}
	if _, err := m.CreateShortLink(ctx, models.NewShortLink{ShortID: "abc123"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	m.IncrementShortLinkClicks(ctx, "abc123")
	got, _ := m.IncrementShortLinkClicks(ctx, "abc123")
	if got.Clicks != 2 {
		t.Errorf("expected 2 clicks, got %d", got.Clicks)
	}
	if _, err := m.IncrementShortLinkClicks(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if ok, _ := m.DeleteShortLink(ctx, l.ID); !ok {
		t.Error("expected delete to succeed")
	}
}

func TestGames(t *testing.T) {
	ctx := context.Background()
	m, clock := setupStore(t)

	m.CreateGame(ctx, models.NewGame{UserID: 1, GameType: "quiz", Score: 50})
	clock.Advance(time.Second)
	m.CreateGame(ctx, models.NewGame{UserID: 2, GameType: "quiz", Score: 80})
	clock.Advance(time.Second)
	m.CreateGame(ctx, models.NewGame{UserID: 3, GameType: "quiz", Score: 50})
	m.CreateGame(ctx, models.NewGame{UserID: 1, GameType: "lyrics", Score: 99})

	top, _ := m.TopGames(ctx, "quiz", 10)
	if len(top) != 3 || top[0].UserID != 2 || top[1].UserID != 1 || top[2].UserID != 3 {
		t.Errorf("unexpected leaderboard %+v", top)
	}
	if mine, _ := m.ListGamesByUser(ctx, 1); len(mine) != 2 {
		t.Errorf("expected 2 games for user 1, got %d", len(mine))
	}
}
