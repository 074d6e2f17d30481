package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dshills/assetplug/internal/logging"
	"github.com/dshills/assetplug/internal/plugin"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDelay   = 20 * time.Millisecond
	waitFor     = 5 * time.Second
	pollEvery   = 10 * time.Millisecond
	entryScript = "return { name = %q, version = %q }\n"
)

func writeEntry(t *testing.T, root, dir, name, version string) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	code := fmt.Sprintf(entryScript, name, version)
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, plugin.EntryFile), []byte(code), 0o644))
	return pluginDir
}

func newRegistry(t *testing.T, root string) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry(plugin.WithLogger(logging.Discard()), plugin.WithRoot(root))
	t.Cleanup(func() { reg.Close() })
	return reg
}

// fakeRegistry records the calls made by the watcher.
type fakeRegistry struct {
	mu       sync.Mutex
	reloads  []string
	unloads  []string
	loadErr  error
	unloadOK bool
}

func (f *fakeRegistry) ReloadPlugin(dir string) (plugin.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, dir)
	return plugin.Descriptor{Name: filepath.Base(dir), Path: dir}, f.loadErr
}

func (f *fakeRegistry) UnloadPath(dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads = append(f.unloads, dir)
	if !f.unloadOK {
		return "", fmt.Errorf("%w: %s", plugin.ErrNotFound, dir)
	}
	return filepath.Base(dir), nil
}

func (f *fakeRegistry) calls() (reloads, unloads []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reloads...), append([]string(nil), f.unloads...)
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(&fakeRegistry{}, filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestNew_WatchesRootAndPluginDirs(t *testing.T) {
	root := t.TempDir()
	writeEntry(t, root, "alpha", "alpha", "1.0")
	writeEntry(t, root, "beta", "beta", "1.0")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	w, err := New(&fakeRegistry{}, root, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 3, w.WatchedPaths())
	assert.Equal(t, filepath.Clean(root), w.Root())
}

func TestWatcher_LoadsNewPlugin(t *testing.T) {
	root := t.TempDir()
	reg := newRegistry(t, root)

	w, err := New(reg, root, WithDelay(testDelay), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	writeEntry(t, root, "fresh", "Fresh", "1.0")

	require.Eventually(t, func() bool {
		_, ok := reg.Get("Fresh")
		return ok
	}, waitFor, pollEvery)
}

func TestWatcher_ReloadsChangedPlugin(t *testing.T) {
	root := t.TempDir()
	reg := newRegistry(t, root)
	dir := writeEntry(t, root, "p", "P", "1.0")
	_, err := reg.LoadPlugin(dir)
	require.NoError(t, err)

	w, err := New(reg, root, WithDelay(testDelay), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	writeEntry(t, root, "p", "P", "2.0")

	require.Eventually(t, func() bool {
		d, ok := reg.Get("P")
		return ok && d.Version == "2.0"
	}, waitFor, pollEvery)
	assert.Equal(t, 1, reg.Count())
}

func TestWatcher_RenamedPluginReplacesOld(t *testing.T) {
	root := t.TempDir()
	reg := newRegistry(t, root)
	dir := writeEntry(t, root, "p", "Old", "1.0")
	_, err := reg.LoadPlugin(dir)
	require.NoError(t, err)

	w, err := New(reg, root, WithDelay(time.Hour), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	writeEntry(t, root, "p", "New", "1.0")
	w.handle(fsnotify.Event{Name: filepath.Join(dir, plugin.EntryFile), Op: fsnotify.Write})
	w.Flush()

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "New", list[0].Name)
	assert.Equal(t, dir, list[0].Path)
}

func TestWatcher_UnloadsRemovedPlugin(t *testing.T) {
	root := t.TempDir()
	reg := newRegistry(t, root)
	dir := writeEntry(t, root, "gone", "Gone", "1.0")
	_, err := reg.LoadPlugin(dir)
	require.NoError(t, err)

	w, err := New(reg, root, WithDelay(testDelay), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.RemoveAll(dir))

	require.Eventually(t, func() bool {
		_, ok := reg.Get("Gone")
		return !ok
	}, waitFor, pollEvery)
}

func TestWatcher_CoalescesEvents(t *testing.T) {
	root := t.TempDir()
	dir := writeEntry(t, root, "busy", "Busy", "1.0")
	fake := &fakeRegistry{}

	w, err := New(fake, root, WithDelay(time.Hour), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	entry := filepath.Join(dir, plugin.EntryFile)
	for i := 0; i < 5; i++ {
		w.handle(fsnotify.Event{Name: entry, Op: fsnotify.Write})
	}
	assert.Equal(t, 1, w.PendingCount())

	w.Flush()

	reloads, unloads := fake.calls()
	assert.Equal(t, []string{dir}, reloads)
	assert.Empty(t, unloads)
	assert.Equal(t, 0, w.PendingCount())
}

func TestWatcher_MissingEntryUnloads(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	fake := &fakeRegistry{}

	w, err := New(fake, root, WithDelay(time.Hour), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	w.handle(fsnotify.Event{Name: dir, Op: fsnotify.Create})
	w.Flush()

	reloads, unloads := fake.calls()
	assert.Empty(t, reloads)
	assert.Equal(t, []string{dir}, unloads)
}

func TestWatcher_IgnoredEvents(t *testing.T) {
	root := t.TempDir()
	fake := &fakeRegistry{}

	w, err := New(fake, root, WithDelay(time.Hour), WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	w.handle(fsnotify.Event{Name: root, Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(root, ".git", "index"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(root, "p", "init.lua~"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(root, "p", plugin.EntryFile), Op: fsnotify.Chmod})
	w.handle(fsnotify.Event{Name: filepath.Join(filepath.Dir(root), "elsewhere"), Op: fsnotify.Write})

	// Only the backup file inside p counts: the plugin directory itself is
	// not hidden.
	assert.Equal(t, 1, w.PendingCount())
}

func TestWatcher_pluginDir(t *testing.T) {
	root := filepath.Join("srv", "plugins")
	w := &Watcher{root: root}

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join(root, "a"), filepath.Join(root, "a"), true},
		{filepath.Join(root, "a", "init.lua"), filepath.Join(root, "a"), true},
		{filepath.Join(root, "a", "lib", "x.lua"), filepath.Join(root, "a"), true},
		{root, "", false},
		{filepath.Join(root, ".hidden", "init.lua"), "", false},
		{filepath.Join("srv", "other"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := w.pluginDir(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatcher_CloseDropsPending(t *testing.T) {
	root := t.TempDir()
	dir := writeEntry(t, root, "p", "P", "1.0")
	fake := &fakeRegistry{}

	w, err := New(fake, root, WithDelay(time.Hour), WithLogger(logging.Discard()))
	require.NoError(t, err)

	w.handle(fsnotify.Event{Name: dir, Op: fsnotify.Write})
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	w.Flush()
	reloads, _ := fake.calls()
	assert.Empty(t, reloads)
	assert.ErrorIs(t, w.add(dir), ErrWatcherClosed)
}
