package state

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracertea/certidao/internal/batch"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_LockIsExclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := NewManager(dir, quietLogger())
	require.NoError(t, err)

	_, err = NewManager(dir, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another certidao instance")

	first.Close()

	second, err := NewManager(dir, quietLogger())
	require.NoError(t, err)
	second.Close()
}

func TestManager_JournalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, m.IssuedCount())

	m.ItemDone(batch.ItemOutcome{Identifier: "111", Status: batch.StatusSuccess, Duration: time.Second})
	m.ItemDone(batch.ItemOutcome{Identifier: "222", Status: batch.StatusFailure})
	m.ItemDone(batch.ItemOutcome{Identifier: "333", Status: batch.StatusFault})
	assert.True(t, m.IsIssued("111"))
	assert.False(t, m.IsIssued("222"))
	m.Close()

	reopened, err := NewManager(dir, quietLogger())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.IssuedCount())
	pending, skipped := reopened.Filter([]batch.Identifier{"111", "222", "333", "111"})
	assert.Equal(t, []batch.Identifier{"222", "333"}, pending)
	assert.Equal(t, 2, skipped)
}

func TestManager_CorruptedJournal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, journalFileName), []byte("{not json"), 0644))

	m, err := NewManager(dir, quietLogger())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.IssuedCount())
	backups, err := filepath.Glob(filepath.Join(dir, journalFileName+".corrupted.*"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}
