package reputation

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "reputation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)

	want := map[string]float64{
		"192.0.2.1":  12.5,
		"192.0.2.2":  3000,
		"2001:db8::": 0,
	}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_SaveKeepsScoresDistinct(t *testing.T) {
	s := openTestStore(t)

	want := make(map[string]float64, 32)
	for i := 0; i < 32; i++ {
		want[fmt.Sprintf("198.51.100.%d", i)] = float64(i) * 7.25
	}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	for peer, score := range want {
		assert.Equal(t, score, got[peer], peer)
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(map[string]float64{"old": 1}))
	require.NoError(t, s.Save(map[string]float64{"new": 2}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"new": 2}, got)
}

func TestOpenStore_BadPath(t *testing.T) {
	_, err := OpenStore(filepath.Join(t.TempDir(), "missing", "sub", "reputation.db"))
	assert.Error(t, err)
}
