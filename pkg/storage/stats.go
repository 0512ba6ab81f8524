package storage

import (
	"cmp"
	"slices"

	"github.com/tunehaven/tunehaven/pkg/models"
)

const (
	topSongsLimit   = 10
	topArtistsLimit = 5
	topGenresLimit  = 5
)

// counter tallies keys and remembers the order each key was first seen, so
// that a stable sort by count keeps ties in counting order.
type counter[K comparable] struct {
	order  []K
	counts map[K]int
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{counts: make(map[K]int)}
}

func (c *counter[K]) add(key K) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter[K]) top(limit int) []K {
	keys := slices.Clone(c.order)
	slices.SortStableFunc(keys, func(a, b K) int {
		return cmp.Compare(c.counts[b], c.counts[a])
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// AggregateStats folds a user's history, given in recording order, into
// listening statistics. lookup resolves song ids and may return nil for
// songs that no longer exist; those still count toward total time.
func AggregateStats(history []*models.ListeningHistory, lookup func(int64) *models.Song) *models.ListeningStats {
	stats := &models.ListeningStats{
		TopSongs:   []models.SongPlays{},
		TopArtists: []models.NamePlays{},
		TopGenres:  []models.NamePlays{},
	}

	songs := newCounter[int64]()
	artists := newCounter[string]()
	genres := newCounter[string]()
	resolved := make(map[int64]*models.Song)

	for _, h := range history {
		stats.TotalListeningTime += h.Duration

		song, ok := resolved[h.SongID]
		if !ok {
			song = lookup(h.SongID)
			resolved[h.SongID] = song
		}
		if song == nil {
			continue
		}
		songs.add(h.SongID)
		if song.Artist != "" {
			artists.add(song.Artist)
		}
		if song.Genre != "" {
			genres.add(song.Genre)
		}
	}

	for _, id := range songs.top(topSongsLimit) {
		stats.TopSongs = append(stats.TopSongs, models.SongPlays{Song: resolved[id], PlayCount: songs.counts[id]})
	}
	for _, name := range artists.top(topArtistsLimit) {
		stats.TopArtists = append(stats.TopArtists, models.NamePlays{Name: name, PlayCount: artists.counts[name]})
	}
	for _, name := range genres.top(topGenresLimit) {
		stats.TopGenres = append(stats.TopGenres, models.NamePlays{Name: name, PlayCount: genres.counts[name]})
	}
	return stats
}
