package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return Event{}
	}
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), 0)
	require.ErrorIs(t, err, ErrRootMissing)
}

func TestWatcher_ExistingSessionsFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "agents", "main", "sessions")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	w, err := New(root, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	// A burst of writes collapses into one event.
	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte(`{"s":`+string(rune('0'+i))+`}`), 0o600))
	}

	ev := waitEvent(t, w)
	require.NoError(t, ev.Error)
	require.Equal(t, []string{path}, ev.Paths)

	select {
	case extra := <-w.Events():
		t.Fatalf("unexpected second event: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "agents", "main", "sessions")
	require.NoError(t, os.MkdirAll(dir, 0o750))

	w, err := New(root, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_NewAgentDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "agents"), 0o750))

	w, err := New(root, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	agentDir := filepath.Join(root, "agents", "helper")
	require.NoError(t, os.Mkdir(agentDir, 0o750))
	time.Sleep(50 * time.Millisecond)
	sessionsDir := filepath.Join(agentDir, "sessions")
	require.NoError(t, os.Mkdir(sessionsDir, 0o750))
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(sessionsDir, "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	ev := waitEvent(t, w)
	require.Contains(t, ev.Paths, path)
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
