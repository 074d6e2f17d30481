package loader

import (
	"testing"
)

func getByPath(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, part := range splitPath(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return append(parts, path[start:])
}

func newTestEnvLoader(env ...string) *EnvLoader {
	l := NewEnvLoader("ASSETPLUG_")
	l.lookup = func() []string { return env }
	return l
}

func TestEnvLoader_Load(t *testing.T) {
	l := newTestEnvLoader(
		"ASSETPLUG_PLUGINS_DIR=/opt/plugins",
		"ASSETPLUG_LOG_LEVEL=debug",
		"ASSETPLUG_DB_DSN=postgres://u:p@host/db?sslmode=disable",
		"HOME=/root",
	)

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := map[string]any{
		"plugins.dir":  "/opt/plugins",
		"log.level":    "debug",
		"database.dsn": "postgres://u:p@host/db?sslmode=disable",
	}
	for path, want := range tests {
		if val, ok := getByPath(config, path); !ok || val != want {
			t.Errorf("%s = %v, want %v", path, val, want)
		}
	}
	if _, ok := config["home"]; ok {
		t.Error("unprefixed variable was loaded")
	}
}

func TestEnvLoader_LoadUnmapped(t *testing.T) {
	config, err := newTestEnvLoader("ASSETPLUG_PLUGINS_WATCH=yes", "ASSETPLUG_DEBUG=off").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if val, ok := getByPath(config, "plugins.watch"); !ok || val != true {
		t.Errorf("plugins.watch = %v, want true", val)
	}
	if val, ok := getByPath(config, "debug"); !ok || val != false {
		t.Errorf("debug = %v, want false", val)
	}
}

func TestEnvLoader_EmptyValueIsSet(t *testing.T) {
	config, err := newTestEnvLoader("ASSETPLUG_LOG_FORMAT=").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if val, ok := getByPath(config, "log.format"); !ok || val != "" {
		t.Errorf("log.format = %v (present %v), want empty string", val, ok)
	}
}

func TestEnvLoader_AddMapping(t *testing.T) {
	l := newTestEnvLoader("ASSETPLUG_ROOT=/x")
	l.AddMapping("ASSETPLUG_ROOT", "plugins.dir")

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if val, ok := getByPath(config, "plugins.dir"); !ok || val != "/x" {
		t.Errorf("plugins.dir = %v, want /x", val)
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader("ASSETPLUG_")

	tests := []struct {
		env  string
		want string
	}{
		{"ASSETPLUG_DEBUG", "debug"},
		{"ASSETPLUG_PLUGINS_WATCH", "plugins.watch"},
		{"ASSETPLUG_DATABASE_MAX_CONNS", "database.max_conns"},
		{"ASSETPLUG_", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := l.envToPath(tt.env); got != tt.want {
				t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestEnvLoader_parseValue(t *testing.T) {
	l := NewEnvLoader("ASSETPLUG_")

	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"ON", true},
		{"no", false},
		{"42", "42"},
		{"250ms", "250ms"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := l.parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v", tt.in, got, got, tt.want)
		}
	}
}
