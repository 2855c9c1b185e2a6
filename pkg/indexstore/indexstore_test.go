package indexstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	s := NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "index.db"),
		},
	})

	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() {
		require.NoError(t, s.Stop())
	})

	return s
}

func TestStoreUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		RunID:     "abc123",
		SuiteName: "demo",
		Driver:    "bash",
		Targets:   "staging,prod",
		Timestamp: 1000,
		Total:     4,
		Passed:    3,
		Failed:    1,
	}
	require.NoError(t, s.UpsertRun(ctx, run))

	got, err := s.GetRun(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "demo", got[0].SuiteName)
	assert.Equal(t, 3, got[0].Passed)

	// Upserting the same (run, suite) pair replaces the counts.
	run2 := &Run{
		RunID:     "abc123",
		SuiteName: "demo",
		Driver:    "bash",
		Total:     4,
		Passed:    4,
	}
	require.NoError(t, s.UpsertRun(ctx, run2))

	got, err = s.GetRun(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Passed)
	assert.Equal(t, 0, got[0].Failed)
}

func TestStoreGetRunOrdersBySuite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRun(ctx, &Run{RunID: "r1", SuiteName: "zeta"}))
	require.NoError(t, s.UpsertRun(ctx, &Run{RunID: "r1", SuiteName: "alpha"}))

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].SuiteName)
	assert.Equal(t, "zeta", got[1].SuiteName)
}

func TestStoreListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRun(ctx, &Run{RunID: "old", SuiteName: "demo", Timestamp: 100}))
	require.NoError(t, s.UpsertRun(ctx, &Run{RunID: "new", SuiteName: "demo", Timestamp: 200}))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "old", runs[1].RunID)
}

func TestStoreGetRunUnknownID(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreUnknownDriver(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	s := NewStore(log, &config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, s.Start(context.Background()))
}
