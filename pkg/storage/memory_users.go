package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/password"
)

func (m *Memory) GetUser(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email != "" && strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

// emailTaken reports whether a user other than except holds email.
// Callers hold m.mu.
func (m *Memory) emailTaken(email string, except int64) bool {
	if email == "" {
		return false
	}
	for id, u := range m.users {
		if id != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateUser(_ context.Context, in models.NewUser) (*models.User, error) {
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == in.Username {
			return nil, fmt.Errorf("username %q: %w", in.Username, ErrDuplicate)
		}
	}
	if m.emailTaken(in.Email, 0) {
		return nil, ErrEmailTaken
	}

	u := &models.User{
		ID:              next(&m.seq.user),
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
		CreatedAt:       m.now(),
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	m.users[u.ID] = u
	return cloneUser(u), nil
}

func (m *Memory) UpdateUser(_ context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	var hash string
	if upd.Password != nil {
		var err error
		if hash, err = password.Hash(*upd.Password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Email != nil && m.emailTaken(*upd.Email, id) {
		return nil, ErrEmailTaken
	}
	u.Apply(upd)
	if upd.Password != nil {
		u.Password = hash
		u.ResetToken = nil
		u.ResetTokenExpires = nil
	}
	return cloneUser(u), nil
}

func (m *Memory) CreatePasswordResetToken(_ context.Context, userID int64) (string, error) {
	token, err := password.NewResetToken()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	u.ResetToken = ptr(token)
	u.ResetTokenExpires = ptr(m.now().Add(ResetTokenTTL))
	return token, nil
}

func (m *Memory) ValidatePasswordResetToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	for _, u := range m.users {
		if u.ResetToken == nil || *u.ResetToken != token {
			continue
		}
		if u.ResetTokenExpires == nil || !now.Before(*u.ResetTokenExpires) {
			return nil, ErrInvalidToken
		}
		return cloneUser(u), nil
	}
	return nil, ErrInvalidToken
}

func (m *Memory) UpdatePassword(_ context.Context, userID int64, newPassword string) error {
	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Password = hash
	u.ResetToken = nil
	u.ResetTokenExpires = nil
	return nil
}
