package memtable

import (
	"context"
	"fmt"

	"github.com/kbukum/changefeed/component"
)

var (
	_ component.Component   = (*Store)(nil)
	_ component.Describable = (*Store)(nil)
)

// Name implements component.Component.
func (s *Store) Name() string { return "memtable" }

// Start implements component.Component. The store is usable from New on.
func (s *Store) Start(ctx context.Context) error { return nil }

// Stop implements component.Component by closing the store.
func (s *Store) Stop(ctx context.Context) error { return s.Close() }

// Health implements component.Component.
func (s *Store) Health(ctx context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "store closed"}
	}
	return component.Health{
		Name:    s.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d tables, %d watched", len(s.tables), len(s.subs)),
	}
}

// Describe implements component.Describable.
func (s *Store) Describe() component.Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	return component.Description{Type: "store", Details: fmt.Sprintf("in-memory tables=%d", len(s.tables))}
}
