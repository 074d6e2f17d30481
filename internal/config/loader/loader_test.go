package loader

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

func TestTOMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/config.toml", `
[plugins]
dir = "/srv/plugins"
watch = true

[log]
level = "debug"
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/config.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	plugins, ok := config["plugins"].(map[string]any)
	if !ok {
		t.Fatalf("plugins section missing: %#v", config)
	}
	if plugins["dir"] != "/srv/plugins" {
		t.Errorf("plugins.dir = %v, want /srv/plugins", plugins["dir"])
	}
	if plugins["watch"] != true {
		t.Errorf("plugins.watch = %v, want true", plugins["watch"])
	}
}

func TestTOMLLoader_MissingFile(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(NewMemFS(), "/missing.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config != nil {
		t.Errorf("config = %v, want nil", config)
	}
}

func TestTOMLLoader_ParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.toml", "[plugins\ndir = ")

	_, err := NewTOMLLoaderWithFS(memfs, "/bad.toml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if perr.Path != "/bad.toml" {
		t.Errorf("Path = %q, want /bad.toml", perr.Path)
	}
	if !strings.Contains(perr.Error(), "/bad.toml") {
		t.Errorf("Error() = %q, want path in message", perr.Error())
	}
}

func TestTOMLLoader_LoadFromReader(t *testing.T) {
	config, err := NewTOMLLoader("").LoadFromReader(strings.NewReader(`debug = true`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if config["debug"] != true {
		t.Errorf("debug = %v, want true", config["debug"])
	}
}

func TestYAMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/config.yaml", `
database:
  type: postgres
  dsn: postgres://localhost/assets
log:
  format: json
`)

	config, err := NewYAMLLoaderWithFS(memfs, "/config.yaml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	db, ok := config["database"].(map[string]any)
	if !ok {
		t.Fatalf("database section missing: %#v", config)
	}
	if db["type"] != "postgres" {
		t.Errorf("database.type = %v, want postgres", db["type"])
	}
	if db["dsn"] != "postgres://localhost/assets" {
		t.Errorf("database.dsn = %v", db["dsn"])
	}
}

func TestYAMLLoader_ParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.yaml", "log: [unterminated\n")

	_, err := NewYAMLLoaderWithFS(memfs, "/bad.yaml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"a.toml", "*loader.TOMLLoader", false},
		{"a.TOML", "*loader.TOMLLoader", false},
		{"a.yaml", "*loader.YAMLLoader", false},
		{"a.yml", "*loader.YAMLLoader", false},
		{"a.json", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l, err := ForPath(NewMemFS(), tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("err = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ForPath failed: %v", err)
			}
			switch l.(type) {
			case *TOMLLoader:
				if tt.want != "*loader.TOMLLoader" {
					t.Errorf("got TOMLLoader, want %s", tt.want)
				}
			case *YAMLLoader:
				if tt.want != "*loader.YAMLLoader" {
					t.Errorf("got YAMLLoader, want %s", tt.want)
				}
			}
		})
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"plugins": map[string]any{"dir": "a", "watch": false},
		"debug":   false,
	}
	src := map[string]any{
		"plugins": map[string]any{"watch": true},
		"log":     map[string]any{"level": "warn"},
	}

	got := DeepMerge(dst, src)

	plugins := got["plugins"].(map[string]any)
	if plugins["dir"] != "a" {
		t.Errorf("plugins.dir = %v, want a", plugins["dir"])
	}
	if plugins["watch"] != true {
		t.Errorf("plugins.watch = %v, want true", plugins["watch"])
	}
	if got["debug"] != false {
		t.Errorf("debug = %v, want false", got["debug"])
	}
	if got["log"].(map[string]any)["level"] != "warn" {
		t.Errorf("log.level = %v, want warn", got["log"])
	}
}

func TestDeepMerge_NilDst(t *testing.T) {
	got := DeepMerge(nil, map[string]any{"a": 1})
	if got["a"] != 1 {
		t.Errorf("a = %v, want 1", got["a"])
	}
	if got := DeepMerge(nil, nil); got == nil || len(got) != 0 {
		t.Errorf("DeepMerge(nil, nil) = %v, want empty map", got)
	}
}
