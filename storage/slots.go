// Package storage keeps saved tables, one small key/value space per game session.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("not found")

// Slots stores opaque values by session and key.
type Slots interface {
	Get(ctx context.Context, session, key string) ([]byte, error)
	Put(ctx context.Context, session, key string, value []byte) error
	Delete(ctx context.Context, session string) error
	Close() error
}

// Session narrows Slots to a single session.
type Session struct {
	slots Slots
	id    string
}

func Bind(slots Slots, session string) *Session {
	return &Session{
		slots: slots,
		id:    session,
	}
}

func (s *Session) Get(ctx context.Context, key string) ([]byte, error) {
	return s.slots.Get(ctx, s.id, key)
}

func (s *Session) Put(ctx context.Context, key string, value []byte) error {
	return s.slots.Put(ctx, s.id, key, value)
}
