package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepStore(t *testing.T) *SQLite {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "syncmon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestSQLite_SaveLoadRoundtrip(t *testing.T) {
	s := prepStore(t)

	started := time.Now().Add(-5 * time.Minute).Truncate(time.Second).UTC()
	jobs := []ActiveJob{
		{JobID: uuid.New().String(), JobKind: "jira", StartedAt: started},
		{JobID: uuid.New().String(), JobKind: "notion", StartedAt: started.Add(time.Minute)},
	}
	require.NoError(t, s.SaveActive(jobs))

	loaded, err := s.LoadActive()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, jobs[0].JobID, loaded[0].JobID)
	assert.Equal(t, "jira", loaded[0].JobKind)
	assert.True(t, started.Equal(loaded[0].StartedAt))
	assert.Equal(t, "notion", loaded[1].JobKind)
}

func TestSQLite_SaveReplaces(t *testing.T) {
	s := prepStore(t)

	require.NoError(t, s.SaveActive([]ActiveJob{
		{JobID: "a", JobKind: "jira", StartedAt: time.Now()},
		{JobID: "b", JobKind: "notion", StartedAt: time.Now()},
	}))
	require.NoError(t, s.SaveActive([]ActiveJob{
		{JobID: "c", JobKind: "confluence", StartedAt: time.Now()},
	}))

	loaded, err := s.LoadActive()
	require.NoError(t, err)
	require.Len(t, loaded, 1, "full replace, not merge")
	assert.Equal(t, "c", loaded[0].JobID)
}

func TestSQLite_EmptySetDeletesEntry(t *testing.T) {
	s := prepStore(t)

	require.NoError(t, s.SaveActive([]ActiveJob{{JobID: "a", JobKind: "jira", StartedAt: time.Now()}}))
	require.NoError(t, s.SaveActive(nil))

	loaded, err := s.LoadActive()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	// deleting an absent entry is fine too
	require.NoError(t, s.SaveActive([]ActiveJob{}))
}

func TestSQLite_LoadFromFreshFile(t *testing.T) {
	s := prepStore(t)
	loaded, err := s.LoadActive()
	require.NoError(t, err)
	assert.Nil(t, loaded, "absent entry means no active jobs")
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncmon.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveActive([]ActiveJob{{JobID: "a", JobKind: "jira", StartedAt: time.Now()}}))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, s2.Close()) }()

	loaded, err := s2.LoadActive()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "a", loaded[0].JobID)
}

func TestSQLite_BadPath(t *testing.T) {
	_, err := NewSQLite("/dev/null/not-a-dir/syncmon.db")
	require.Error(t, err)
}
