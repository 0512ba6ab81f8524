package models

import "slices"

// Apply copies every non-nil field of upd onto u.
func (u *User) Apply(upd UserUpdate) {
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.ProfileImage != nil {
		u.ProfileImage = copyOf(upd.ProfileImage)
	}
	if upd.FavoriteArtists != nil {
		u.FavoriteArtists = append([]string{}, (*upd.FavoriteArtists)...)
	}
	if upd.FavoriteSongs != nil {
		u.FavoriteSongs = append([]int64{}, (*upd.FavoriteSongs)...)
	}
	if upd.Stats != nil {
		u.Stats = copyOf(upd.Stats)
	}
}

func (a *Artist) Apply(upd ArtistUpdate) {
	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.Bio != nil {
		a.Bio = *upd.Bio
	}
	if upd.Image != nil {
		a.Image = copyOf(upd.Image)
	}
	if upd.Genres != nil {
		a.Genres = append([]string{}, (*upd.Genres)...)
	}
}

func (a *Album) Apply(upd AlbumUpdate) {
	if upd.Title != nil {
		a.Title = *upd.Title
	}
	if upd.ArtistID != nil {
		a.ArtistID = *upd.ArtistID
	}
	if upd.CoverImage != nil {
		a.CoverImage = copyOf(upd.CoverImage)
	}
	if upd.ReleaseYear != nil {
		a.ReleaseYear = copyOf(upd.ReleaseYear)
	}
	if upd.Genre != nil {
		a.Genre = *upd.Genre
	}
}

func (s *Song) Apply(upd SongUpdate) {
	if upd.Title != nil {
		s.Title = *upd.Title
	}
	if upd.Artist != nil {
		s.Artist = *upd.Artist
	}
	if upd.ArtistID != nil {
		s.ArtistID = copyOf(upd.ArtistID)
	}
	if upd.FeaturedArtistIDs != nil {
		s.FeaturedArtistIDs = append([]int64{}, (*upd.FeaturedArtistIDs)...)
	}
	if upd.Album != nil {
		s.Album = *upd.Album
	}
	if upd.AlbumID != nil {
		s.AlbumID = copyOf(upd.AlbumID)
	}
	if upd.Genre != nil {
		s.Genre = *upd.Genre
	}
	if upd.Year != nil {
		s.Year = copyOf(upd.Year)
	}
	if upd.Duration != nil {
		s.Duration = *upd.Duration
	}
	if upd.CoverImage != nil {
		s.CoverImage = copyOf(upd.CoverImage)
	}
	if upd.Lyrics != nil {
		s.Lyrics = copyOf(upd.Lyrics)
	}
}

// AlbumChanged reports whether applying upd moves s to a different album.
func (s *Song) AlbumChanged(upd SongUpdate) bool {
	if upd.AlbumID == nil {
		return false
	}
	return s.AlbumID == nil || *s.AlbumID != *upd.AlbumID
}

func (p *Playlist) Apply(upd PlaylistUpdate) {
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.CoverImage != nil {
		p.CoverImage = copyOf(upd.CoverImage)
	}
	if upd.Collaborative != nil {
		p.Collaborative = *upd.Collaborative
	}
}

// AddCollaborator adds userID once and marks the playlist collaborative.
func (p *Playlist) AddCollaborator(userID int64) {
	if !slices.Contains(p.Collaborators, userID) {
		p.Collaborators = append(p.Collaborators, userID)
	}
	p.Collaborative = true
}

func (p *Playlist) RemoveCollaborator(userID int64) {
	p.Collaborators = slices.DeleteFunc(p.Collaborators, func(id int64) bool { return id == userID })
}

func copyOf[T any](p *T) *T {
	v := *p
	return &v
}
