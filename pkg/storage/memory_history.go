package storage

import (
	"cmp"
	"context"
	"slices"

	"github.com/tunehaven/tunehaven/pkg/models"
)

func historyID(h *models.ListeningHistory) int64 { return h.ID }
func gameID(g *models.Game) int64                { return g.ID }

func (m *Memory) RecordListen(_ context.Context, userID, songID int64, duration int) (*models.ListeningHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.songs[songID]
	if !ok {
		return nil, ErrNotFound
	}
	h := &models.ListeningHistory{
		ID:         next(&m.seq.history),
		UserID:     userID,
		SongID:     songID,
		ListenDate: m.now(),
		Duration:   duration,
	}
	m.history[h.ID] = h
	s.PlayCount++

	if u, ok := m.users[userID]; ok {
		if u.Stats == nil {
			u.Stats = &models.UserStats{}
		}
		u.Stats.AddListen(songID, duration)
	}
	return shallow(h), nil
}

func (m *Memory) ListHistory(_ context.Context, userID int64, limit int) ([]*models.ListeningHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.userHistory(userID)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b *models.ListeningHistory) int {
		return b.ListenDate.Compare(a.ListenDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// userHistory returns the user's history in recording order.
func (m *Memory) userHistory(userID int64) []*models.ListeningHistory {
	return collect(m.history, historyID, func(h *models.ListeningHistory) bool {
		return h.UserID == userID
	}, shallow[models.ListeningHistory])
}

func (m *Memory) GetUserListeningStats(_ context.Context, userID int64) (*models.ListeningStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return AggregateStats(m.userHistory(userID), func(id int64) *models.Song {
		if s, ok := m.songs[id]; ok {
			return cloneSong(s)
		}
		return nil
	}), nil
}

func (m *Memory) CreateGame(_ context.Context, in models.NewGame) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := &models.Game{
		ID:              next(&m.seq.game),
		UserID:          in.UserID,
		GameType:        in.GameType,
		Score:           in.Score,
		DurationSeconds: in.DurationSeconds,
		CreatedAt:       m.now(),
	}
	m.games[g.ID] = g
	return shallow(g), nil
}

func (m *Memory) ListGamesByUser(_ context.Context, userID int64) ([]*models.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return collect(m.games, gameID, func(g *models.Game) bool {
		return g.UserID == userID
	}, shallow[models.Game]), nil
}

// TopGames orders by score, earlier games first on ties. An empty gameType
// matches every game.
func (m *Memory) TopGames(_ context.Context, gameType string, limit int) ([]*models.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := collect(m.games, gameID, func(g *models.Game) bool {
		return gameType == "" || g.GameType == gameType
	}, shallow[models.Game])
	slices.SortStableFunc(out, func(a, b *models.Game) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
