package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestAddIsIdempotent() {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	added, err := s.store.Add(s.ctx, "http://b.local", first)
	s.Require().NoError(err)
	s.True(added)

	added, err = s.store.Add(s.ctx, "http://b.local", first.Add(time.Hour))
	s.Require().NoError(err)
	s.False(added)

	_, err = s.store.Add(s.ctx, "http://a.local", first)
	s.Require().NoError(err)

	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("http://a.local", list[0].Address)
	s.Equal(first, list[1].RegisteredAt)
}

func (s *InMemoryStoreSuite) TestRemove() {
	_, err := s.store.Add(s.ctx, "http://a.local", time.Now())
	s.Require().NoError(err)

	removed, err := s.store.Remove(s.ctx, "http://a.local")
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.store.Remove(s.ctx, "http://a.local")
	s.Require().NoError(err)
	s.False(removed)

	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}
