// Package upload stores audio and image files on local disk under generated
// names.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
)

type Kind string

const (
	Audio Kind = "audio"
	Image Kind = "image"
)

// URLPrefix is where the server mounts the upload directory.
const URLPrefix = "/uploads"

var allowedExtensions = map[Kind]map[string]bool{
	Audio: {".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".flac": true, ".aac": true},
	Image: {".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true},
}

// Saved describes a stored file.
type Saved struct {
	Name string // generated file name
	Path string // location on disk
	URL  string // public path served under URLPrefix
	Size int64
}

type Store struct {
	dir     string
	maxSize map[Kind]int64
}

func NewStore(dir string, maxAudioBytes, maxImageBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{
		dir:     dir,
		maxSize: map[Kind]int64{Audio: maxAudioBytes, Image: maxImageBytes},
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// Check validates the extension and size of fh without writing anything.
func (s *Store) Check(kind Kind, fh *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[kind][ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if limit := s.maxSize[kind]; limit > 0 && fh.Size > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, fh.Size, limit)
	}
	return nil
}

// Save writes fh under a fresh uuid name that keeps the original extension.
func (s *Store) Save(kind Kind, fh *multipart.FileHeader) (*Saved, error) {
	if err := s.Check(kind, fh); err != nil {
		return nil, err
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst := filepath.Join(s.dir, name)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &Saved{Name: name, Path: dst, URL: path.Join(URLPrefix, name), Size: written}, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(p string) error {
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Tags is the subset of embedded metadata used to fill in song fields.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Year   int
}

// ReadTags reads ID3/MP4/FLAC/OGG tags from the file at p.
func ReadTags(p string) (Tags, error) {
	f, err := os.Open(p)
	if err != nil {
		return Tags{}, err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return Tags{}, err
	}
	return Tags{
		Title:  strings.TrimSpace(meta.Title()),
		Artist: strings.TrimSpace(meta.Artist()),
		Album:  strings.TrimSpace(meta.Album()),
		Genre:  strings.TrimSpace(meta.Genre()),
		Year:   meta.Year(),
	}, nil
}
