package loader

import (
	"os"
	"strings"
)

// DefaultEnvPrefix is the prefix of every environment variable read by default.
const DefaultEnvPrefix = "ASSETPLUG_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "ASSETPLUG_")
	mapping map[string]string // Env var -> config path
	lookup  func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "ASSETPLUG_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		lookup:  os.Environ,
	}
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		lookup:  os.Environ,
	}
}

// defaultEnvMapping covers the settings whose names contain an underscore
// or that have a conventional short form.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "PLUGINS_DIR":    "plugins.dir",
		prefix + "PLUGIN_DIR":     "plugins.dir",
		prefix + "DB":             "database.type",
		prefix + "DB_TYPE":        "database.type",
		prefix + "DB_DSN":         "database.dsn",
		prefix + "DATABASE_URL":   "database.dsn",
		prefix + "LOG_LEVEL":      "log.level",
		prefix + "LOG_FORMAT":     "log.format",
		prefix + "WATCH_DEBOUNCE": "plugins.debounce",
	}
}

// Load reads environment variables and returns a configuration map.
// Empty values are treated as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.lookup() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			// ASSETPLUG_PLUGINS_WATCH -> plugins.watch
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, l.parseValue(value))
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts ASSETPLUG_DATABASE_MAX_CONNS to database.max_conns.
// The first segment names the section; the rest is the snake_case key.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	if name == "" {
		return ""
	}
	section, key, ok := strings.Cut(name, "_")
	if !ok || key == "" {
		return section
	}
	return section + "." + key
}

// parseValue converts boolean words to bool and leaves everything else as
// a string. Numbers stay strings so DSNs and names never change shape; the
// config decoder converts them where a field expects a number or duration.
func (l *EnvLoader) parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	current[parts[len(parts)-1]] = value
}
