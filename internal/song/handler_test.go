package song

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tunehaven/tunehaven/internal/testutil"
	"github.com/tunehaven/tunehaven/internal/upload"
	"github.com/tunehaven/tunehaven/pkg/events"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

type fixture struct {
	*testutil.Env
	files  *upload.Store
	events *events.Recorder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutil.New(t)
	files, err := upload.NewStore(t.TempDir(), 1<<20, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	recorder := &events.Recorder{}
	svc := NewService(env.Store, files, recorder, env.Log)
	NewHandler(svc, env.Store, files, env.Log).RegisterRoutes(env.API)
	return &fixture{Env: env, files: files, events: recorder}
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, audio []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(audio)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/songs", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// storedSong writes a size-byte file and registers a song pointing at it.
func (f *fixture) storedSong(t *testing.T, owner int64, size int) *models.Song {
	t.Helper()
	path := filepath.Join(f.files.Dir(), fmt.Sprintf("song-%d.mp3", size))
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	song, err := f.Store.CreateSong(context.Background(), models.NewSong{
		Title:    "Stored",
		Artist:   "Someone",
		Duration: 60,
		FilePath: path,
		UserID:   owner,
	})
	if err != nil {
		t.Fatal(err)
	}
	return song
}

func TestUploadIsAdminOnlyButStreamingIsNot(t *testing.T) {
	f := setup(t)
	_, userA := f.UserSession("usera", false)
	_, adminB := f.UserSession("adminb", true)

	fields := map[string]string{"title": "T", "artist": "Ar", "duration": "180"}
	audio := bytes.Repeat([]byte("a"), 512)

	rec := f.Serve(uploadRequest(t, fields, "t.mp3", audio), userA)
	testutil.ExpectStatus(t, rec, http.StatusForbidden)

	rec = f.Serve(uploadRequest(t, fields, "t.mp3", audio), adminB)
	testutil.ExpectStatus(t, rec, http.StatusCreated)
	song := testutil.Decode[models.Song](t, rec)
	if song.ID == 0 || song.Title != "T" || song.Artist != "Ar" || song.Duration != 180 {
		t.Fatalf("created song = %+v", song)
	}
	if song.Barcode == "" || song.PlayCount != 0 {
		t.Errorf("defaults = barcode %q playCount %d", song.Barcode, song.PlayCount)
	}

	rec = f.Do(http.MethodGet, fmt.Sprintf("/api/songs/%d/stream", song.ID), nil, userA)
	testutil.ExpectStatus(t, rec, http.StatusOK)
	if rec.Body.Len() != len(audio) {
		t.Errorf("streamed %d bytes, want %d", rec.Body.Len(), len(audio))
	}

	if types := f.events.Types(); len(types) != 1 || types[0] != events.EventTypeSongUploaded {
		t.Errorf("events = %v", types)
	}
}

func TestUploadValidation(t *testing.T) {
	f := setup(t)
	_, admin := f.UserSession("admin", true)
	fields := map[string]string{"title": "T", "artist": "Ar", "duration": "180"}

	t.Run("missing file", func(t *testing.T) {
		testutil.ExpectStatus(t, f.Serve(uploadRequest(t, fields, "", nil), admin), http.StatusBadRequest)
	})
	t.Run("wrong extension", func(t *testing.T) {
		testutil.ExpectStatus(t, f.Serve(uploadRequest(t, fields, "notes.txt", []byte("x")), admin), http.StatusBadRequest)
	})
	t.Run("missing title", func(t *testing.T) {
		rec := f.Serve(uploadRequest(t, map[string]string{"artist": "Ar", "duration": "1"}, "t.mp3", []byte("x")), admin)
		testutil.ExpectStatus(t, rec, http.StatusBadRequest)
		body := testutil.Decode[struct {
			Fields []struct{ Field string } `json:"fields"`
		}](t, rec)
		if len(body.Fields) != 1 || body.Fields[0].Field != "title" {
			t.Errorf("fields = %+v", body.Fields)
		}
	})
	t.Run("unknown album", func(t *testing.T) {
		withAlbum := map[string]string{"title": "T", "artist": "Ar", "duration": "1", "albumId": "99"}
		testutil.ExpectStatus(t, f.Serve(uploadRequest(t, withAlbum, "t.mp3", []byte("x")), admin), http.StatusBadRequest)
	})

	entries, err := os.ReadDir(f.files.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected uploads left %d files behind", len(entries))
	}
}

// id3 builds an ID3v2.3 tag holding the given text frames, followed by a few
// bytes standing in for audio.
func id3(frames map[string]string) []byte {
	var body bytes.Buffer
	for id, text := range frames {
		size := len(text) + 1
		body.WriteString(id)
		body.Write([]byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size), 0, 0})
		body.WriteByte(0) // ISO-8859-1
		body.WriteString(text)
	}
	n := body.Len()
	out := []byte{'I', 'D', '3', 3, 0, 0, byte(n >> 21 & 0x7f), byte(n >> 14 & 0x7f), byte(n >> 7 & 0x7f), byte(n & 0x7f)}
	out = append(out, body.Bytes()...)
	return append(out, bytes.Repeat([]byte{0xff}, 64)...)
}

func TestUploadFillsTitleAndArtistFromTags(t *testing.T) {
	f := setup(t)
	_, admin := f.UserSession("admin", true)
	audio := id3(map[string]string{"TIT2": "Tagged Title", "TPE1": "Tagged Artist", "TALB": "Tagged Album"})

	rec := f.Serve(uploadRequest(t, map[string]string{"duration": "120"}, "tagged.mp3", audio), admin)
	testutil.ExpectStatus(t, rec, http.StatusCreated)
	song := testutil.Decode[models.Song](t, rec)
	if song.Title != "Tagged Title" || song.Artist != "Tagged Artist" || song.Album != "Tagged Album" {
		t.Errorf("song = %q by %q on %q", song.Title, song.Artist, song.Album)
	}

	rec = f.Serve(uploadRequest(t, map[string]string{"title": "Mine", "duration": "120"}, "tagged.mp3", audio), admin)
	testutil.ExpectStatus(t, rec, http.StatusCreated)
	if got := testutil.Decode[models.Song](t, rec); got.Title != "Mine" || got.Artist != "Tagged Artist" {
		t.Errorf("form title lost: %q by %q", got.Title, got.Artist)
	}
}

func TestStreamRanges(t *testing.T) {
	f := setup(t)
	owner, cookie := f.UserSession("listener", false)
	song := f.storedSong(t, owner.ID, 1000)
	path := fmt.Sprintf("/api/songs/%d/stream", song.ID)

	t.Run("range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Range", "bytes=0-99")
		rec := f.Serve(req, cookie)

		testutil.ExpectStatus(t, rec, http.StatusPartialContent)
		if got := rec.Header().Get("Content-Range"); got != "bytes 0-99/1000" {
			t.Errorf("Content-Range = %q", got)
		}
		if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
			t.Errorf("Accept-Ranges = %q", got)
		}
		if got := rec.Header().Get("Content-Type"); got != AudioContentType {
			t.Errorf("Content-Type = %q", got)
		}
		if rec.Body.Len() != 100 {
			t.Errorf("body length = %d, want 100", rec.Body.Len())
		}
	})

	t.Run("full", func(t *testing.T) {
		rec := f.Do(http.MethodGet, path, nil, cookie)
		testutil.ExpectStatus(t, rec, http.StatusOK)
		if rec.Body.Len() != 1000 || rec.Header().Get("Content-Length") != "1000" {
			t.Errorf("body length = %d, Content-Length %q", rec.Body.Len(), rec.Header().Get("Content-Length"))
		}
	})

	t.Run("unknown song", func(t *testing.T) {
		testutil.ExpectStatus(t, f.Do(http.MethodGet, "/api/songs/999/stream", nil, cookie), http.StatusNotFound)
	})
}

func TestDeleteCascadesAndRemovesFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	admin, adminCookie := f.UserSession("admin", true)
	user := f.CreateUser("fan", false)
	song := f.storedSong(t, admin.ID, 10)

	playlist, _ := f.Store.CreatePlaylist(ctx, models.NewPlaylist{Name: "Mix", UserID: user.ID})
	f.Store.AddSongToPlaylist(ctx, playlist.ID, song.ID, user.ID)
	f.Store.AddToFavorites(ctx, user.ID, song.ID)
	f.Store.CreateComment(ctx, models.NewComment{SongID: song.ID, UserID: user.ID, Comment: "nice"})

	_, userCookie := f.UserSession("nonadmin", false)
	testutil.ExpectStatus(t, f.Do(http.MethodDelete, fmt.Sprintf("/api/songs/%d", song.ID), nil, userCookie), http.StatusForbidden)

	rec := f.Do(http.MethodDelete, fmt.Sprintf("/api/songs/%d", song.ID), nil, adminCookie)
	testutil.ExpectStatus(t, rec, http.StatusNoContent)

	if _, err := f.Store.GetSong(ctx, song.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetSong after delete err = %v", err)
	}
	if rows, _ := f.Store.ListPlaylistEntries(ctx, playlist.ID); len(rows) != 0 {
		t.Errorf("playlist rows = %d", len(rows))
	}
	if fav, _ := f.Store.IsFavorite(ctx, user.ID, song.ID); fav {
		t.Error("favorite survived delete")
	}
	if comments, _ := f.Store.ListComments(ctx, song.ID); len(comments) != 0 {
		t.Errorf("comments = %d", len(comments))
	}
	if _, err := os.Stat(song.FilePath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still on disk: %v", err)
	}

	testutil.ExpectStatus(t, f.Do(http.MethodDelete, fmt.Sprintf("/api/songs/%d", song.ID), nil, adminCookie), http.StatusNotFound)
}

func TestDeleteSurvivesMissingFile(t *testing.T) {
	f := setup(t)
	admin, cookie := f.UserSession("admin", true)
	song := f.storedSong(t, admin.ID, 10)
	os.Remove(song.FilePath)

	testutil.ExpectStatus(t, f.Do(http.MethodDelete, fmt.Sprintf("/api/songs/%d", song.ID), nil, cookie), http.StatusNoContent)
}

func TestRecordPlay(t *testing.T) {
	f := setup(t)
	user, cookie := f.UserSession("listener", false)
	song := f.storedSong(t, user.ID, 10)
	path := fmt.Sprintf("/api/songs/%d/play", song.ID)

	for i := 0; i < 3; i++ {
		testutil.ExpectStatus(t, f.Do(http.MethodPost, path, map[string]int{"duration": 60}, cookie), http.StatusCreated)
	}

	rec := f.Do(http.MethodGet, fmt.Sprintf("/api/songs/%d", song.ID), nil, cookie)
	testutil.ExpectStatus(t, rec, http.StatusOK)
	if got := testutil.Decode[models.Song](t, rec); got.PlayCount != 3 {
		t.Errorf("PlayCount = %d, want 3", got.PlayCount)
	}

	testutil.ExpectStatus(t, f.Do(http.MethodPost, "/api/songs/404/play", map[string]int{"duration": 1}, cookie), http.StatusNotFound)
	testutil.ExpectStatus(t, f.Do(http.MethodPost, path, map[string]int{"duration": -1}, cookie), http.StatusBadRequest)
}

func TestLyricsOwnership(t *testing.T) {
	f := setup(t)
	owner, ownerCookie := f.UserSession("owner", false)
	_, otherCookie := f.UserSession("other", false)
	_, adminCookie := f.UserSession("admin", true)
	song := f.storedSong(t, owner.ID, 10)
	path := fmt.Sprintf("/api/songs/%d/lyrics", song.ID)

	testutil.ExpectStatus(t, f.Do(http.MethodPut, path, map[string]string{"lyrics": "la"}, otherCookie), http.StatusForbidden)

	rec := f.Do(http.MethodPut, path, map[string]string{"lyrics": "la la"}, ownerCookie)
	testutil.ExpectStatus(t, rec, http.StatusOK)
	if got := testutil.Decode[models.Song](t, rec); got.Lyrics == nil || *got.Lyrics != "la la" {
		t.Errorf("Lyrics = %v", got.Lyrics)
	}

	testutil.ExpectStatus(t, f.Do(http.MethodPut, path, map[string]string{"lyrics": "admin edit"}, adminCookie), http.StatusOK)
}

func TestUpdateSongMetadata(t *testing.T) {
	f := setup(t)
	admin, cookie := f.UserSession("admin", true)
	song := f.storedSong(t, admin.ID, 10)
	path := fmt.Sprintf("/api/songs/%d", song.ID)

	rec := f.Do(http.MethodPatch, path, map[string]interface{}{"title": "Renamed", "genre": "Jazz"}, cookie)
	testutil.ExpectStatus(t, rec, http.StatusOK)
	got := testutil.Decode[models.Song](t, rec)
	if got.Title != "Renamed" || got.Genre != "Jazz" || got.Artist != song.Artist {
		t.Errorf("updated song = %+v", got)
	}

	testutil.ExpectStatus(t, f.Do(http.MethodPatch, path, map[string]interface{}{"title": ""}, cookie), http.StatusBadRequest)
	testutil.ExpectStatus(t, f.Do(http.MethodPatch, "/api/songs/999", map[string]interface{}{"title": "x"}, cookie), http.StatusNotFound)
}

func TestSearchRecentAndBarcode(t *testing.T) {
	f := setup(t)
	user, cookie := f.UserSession("u", false)
	ctx := context.Background()
	first, _ := f.Store.CreateSong(ctx, models.NewSong{Title: "Blue Moon", Artist: "A", UserID: user.ID})
	f.Store.CreateSong(ctx, models.NewSong{Title: "Red Sun", Artist: "B", UserID: user.ID})

	rec := f.Do(http.MethodGet, "/api/songs?q=moon", nil, cookie)
	testutil.ExpectStatus(t, rec, http.StatusOK)
	if got := testutil.Decode[[]models.Song](t, rec); len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("search = %+v", got)
	}

	rec = f.Do(http.MethodGet, "/api/songs/recent?limit=1", nil, cookie)
	testutil.ExpectStatus(t, rec, http.StatusOK)
	if got := testutil.Decode[[]models.Song](t, rec); len(got) != 1 {
		t.Errorf("recent = %d songs", len(got))
	}

	rec = f.Do(http.MethodGet, "/api/songs/barcode/"+first.Barcode, nil, cookie)
	testutil.ExpectStatus(t, rec, http.StatusOK)
	testutil.ExpectStatus(t, f.Do(http.MethodGet, "/api/songs/barcode/NOPE", nil, cookie), http.StatusNotFound)
}

func TestComments(t *testing.T) {
	f := setup(t)
	author, authorCookie := f.UserSession("author", false)
	_, otherCookie := f.UserSession("other", false)
	song := f.storedSong(t, author.ID, 10)
	path := fmt.Sprintf("/api/songs/%d/comments", song.ID)

	rec := f.Do(http.MethodPost, path, map[string]interface{}{"comment": "first", "timestamp": 12}, authorCookie)
	testutil.ExpectStatus(t, rec, http.StatusCreated)
	comment := testutil.Decode[models.SongComment](t, rec)
	f.Do(http.MethodPost, path, map[string]interface{}{"comment": "second"}, otherCookie)

	rec = f.Do(http.MethodGet, path, nil, otherCookie)
	testutil.ExpectStatus(t, rec, http.StatusOK)
	list := testutil.Decode[[]models.SongComment](t, rec)
	if len(list) != 2 || list[0].Comment != "first" {
		t.Fatalf("comments = %+v", list)
	}

	testutil.ExpectStatus(t, f.Do(http.MethodPost, path, map[string]string{"comment": "  "}, authorCookie), http.StatusBadRequest)

	del := fmt.Sprintf("/api/comments/%d", comment.ID)
	testutil.ExpectStatus(t, f.Do(http.MethodDelete, del, nil, otherCookie), http.StatusForbidden)
	testutil.ExpectStatus(t, f.Do(http.MethodDelete, del, nil, authorCookie), http.StatusNoContent)
	testutil.ExpectStatus(t, f.Do(http.MethodDelete, del, nil, authorCookie), http.StatusNotFound)
}
