package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Directories without an entry script never change the registry.
func TestPropertyMissingEntryLeavesRegistryUnchanged(t *testing.T) {
	r, _, root := newTestRegistry(t)
	_, err := r.LoadPlugin(writePlugin(t, root, "resident", namedPlugin("resident", "")))
	require.NoError(t, err)
	scratch := t.TempDir()

	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp(scratch, "candidate-")
		if err != nil {
			rt.Fatal(err)
		}

		files := rapid.SliceOfN(
			rapid.StringMatching(`[a-z]{1,8}\.(lua|txt|json)`).Filter(func(s string) bool { return s != EntryFile }),
			0, 4,
		).Draw(rt, "files")
		for _, name := range files {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("return { name = \"resident\" }"), 0o644); err != nil {
				rt.Fatal(err)
			}
		}

		before := r.List()
		_, err = r.LoadPlugin(dir)

		if KindOf(err) != KindNotFound {
			rt.Fatalf("LoadPlugin(%v) error = %v, want NotFound", files, err)
		}
		after := r.List()
		if len(after) != len(before) || after[0] != before[0] {
			rt.Fatalf("registry changed: before %v, after %v", before, after)
		}
	})
}

// Calling a function the plugin never defined always yields NotFound.
func TestPropertyUnknownFunctionIsNotFound(t *testing.T) {
	r, _, root := newTestRegistry(t)
	_, err := r.LoadPlugin(writePlugin(t, root, "p", namedPlugin("p", `
		function defined() return 1 end
		value = "not callable"
	`)))
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		fn := "missing_" + rapid.String().Draw(rt, "fn")

		_, err := r.Call("p", fn)
		if KindOf(err) != KindNotFound {
			rt.Fatalf("Call(%q) error = %v, want NotFound", fn, err)
		}
	})
}

// Broadcast visits every enabled plugin exactly once, whatever the enabled
// pattern.
func TestPropertyBroadcastVisitsEnabledOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		logger, buf := newTestLogger()
		r := NewRegistry(WithLogger(logger))
		defer r.Close()

		root, err := os.MkdirTemp(t.TempDir(), "plugins-")
		if err != nil {
			rt.Fatal(err)
		}

		n := rapid.IntRange(1, 6).Draw(rt, "plugins")
		enabled := rapid.SliceOfN(rapid.Bool(), n, n).Draw(rt, "enabled")
		failing := rapid.SliceOfN(rapid.Bool(), n, n).Draw(rt, "failing")

		var want []string
		for i := 0; i < n; i++ {
			name := string(rune('a' + i))
			body := `function on_app_started() log("` + name + `") end`
			if failing[i] {
				body = `function on_app_started() log("` + name + `") error("fail") end`
			}
			dir := filepath.Join(root, name)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				rt.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, EntryFile), []byte(namedPlugin(name, body)), 0o644); err != nil {
				rt.Fatal(err)
			}
			if _, err := r.LoadPlugin(dir); err != nil {
				rt.Fatal(err)
			}
			if !enabled[i] {
				if err := r.SetEnabled(name, false); err != nil {
					rt.Fatal(err)
				}
				continue
			}
			want = append(want, name)
		}

		r.Broadcast(AppStarted())

		got := guestMessages(buf)
		if len(got) != len(want) {
			rt.Fatalf("visited %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				rt.Fatalf("visited %v, want %v", got, want)
			}
		}
	})
}
