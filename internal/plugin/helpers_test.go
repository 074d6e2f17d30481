package plugin

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/assetplug/internal/logging"
	"github.com/tidwall/gjson"
)

// writePlugin creates root/dir/init.lua with code and returns the plugin
// directory.
func writePlugin(t *testing.T, root, dir, code string) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, EntryFile), []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}
	return pluginDir
}

// namedPlugin returns a minimal entry script declaring name, followed by
// body.
func namedPlugin(name, body string) string {
	return body + "\nreturn { name = \"" + name + "\", version = \"1.0\" }\n"
}

// newTestLogger returns a debug-level JSON logger writing into a buffer.
func newTestLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{
		Level:  logging.LevelDebug,
		Format: logging.FormatJSON,
		Output: &buf,
	})
	return logger, &buf
}

// logRecords splits JSON log output into records.
func logRecords(buf *bytes.Buffer) []gjson.Result {
	var records []gjson.Result
	for _, line := range strings.Split(buf.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		records = append(records, gjson.Parse(line))
	}
	return records
}

// guestMessages returns, in order, the messages logged by guest code via
// log(msg).
func guestMessages(buf *bytes.Buffer) []string {
	var msgs []string
	for _, rec := range logRecords(buf) {
		if rec.Get("level").String() == "info" && rec.Get("source").String() == "lua" {
			msgs = append(msgs, rec.Get("msg").String())
		}
	}
	return msgs
}
