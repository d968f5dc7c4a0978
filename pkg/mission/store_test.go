package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreateGet(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	m, err := s.Create("owner-1", []Node{{ID: "n1", Type: NodeAction}}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, StatusActive, m.Status)

	got, err := s.Get("owner-1", m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Len(t, got.Nodes, 1)
}

func TestStoreOwnerScoping(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	m, err := s.Create("owner-a", nil, nil)
	require.NoError(t, err)

	_, err = s.Get("owner-b", m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreList(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	_, err := s.Create("owner-1", nil, nil)
	require.NoError(t, err)
	_, err = s.Create("owner-1", nil, nil)
	require.NoError(t, err)

	missions, err := s.List("owner-1")
	require.NoError(t, err)
	assert.Len(t, missions, 2)

	empty, err := s.List("nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStoreDelete(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	m, err := s.Create("owner-1", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete("owner-1", m.ID))

	_, err = s.Get("owner-1", m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("owner-1", m.ID), ErrNotFound)
}
