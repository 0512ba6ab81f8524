package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemorySessions()
	s.now = func() time.Time { return now }

	if err := s.Create(ctx, "sid", 7, time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id, err := s.Lookup(ctx, "sid"); err != nil || id != 7 {
		t.Fatalf("Lookup = %d, %v", id, err)
	}

	now = now.Add(time.Hour)
	if _, err := s.Lookup(ctx, "sid"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expired Lookup err = %v", err)
	}

	_ = s.Create(ctx, "other", 8, time.Hour)
	_ = s.Delete(ctx, "other")
	if _, err := s.Lookup(ctx, "other"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("deleted Lookup err = %v", err)
	}
}

func TestMemorySessionsDeleteUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessions()
	_ = s.Create(ctx, "a1", 1, time.Hour)
	_ = s.Create(ctx, "a2", 1, time.Hour)
	_ = s.Create(ctx, "b1", 2, time.Hour)

	if err := s.DeleteUser(ctx, 1, "a2"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Lookup(ctx, "a1"); !errors.Is(err, ErrNoSession) {
		t.Errorf("a1 survived: %v", err)
	}
	if id, err := s.Lookup(ctx, "a2"); err != nil || id != 1 {
		t.Errorf("kept session a2 = %d, %v", id, err)
	}
	if id, err := s.Lookup(ctx, "b1"); err != nil || id != 2 {
		t.Errorf("other user's session b1 = %d, %v", id, err)
	}

	_ = s.DeleteUser(ctx, 1, "")
	if _, err := s.Lookup(ctx, "a2"); !errors.Is(err, ErrNoSession) {
		t.Errorf("a2 survived full revoke: %v", err)
	}
}

func TestMemorySessionsSweepsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemorySessions()
	s.now = func() time.Time { return now }

	for _, id := range []string{"x", "y", "z"} {
		_ = s.Create(ctx, id, 1, time.Minute)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d", s.Len())
	}

	now = now.Add(2 * time.Minute)
	_ = s.Create(ctx, "fresh", 1, time.Hour)
	if s.Len() != 1 {
		t.Errorf("Len after sweep = %d, want 1", s.Len())
	}
}
