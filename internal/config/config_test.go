package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, root, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, ".lingua"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(root), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SchemaVersion != "1.0.0" {
		t.Errorf("SchemaVersion = %q, want 1.0.0", cfg.SchemaVersion)
	}
	if cfg.Server.Trace != "off" {
		t.Errorf("Trace = %q, want off", cfg.Server.Trace)
	}
	if len(cfg.Languages) != 0 {
		t.Errorf("Languages = %v, want empty", cfg.Languages)
	}
}

func TestLoadStripsComments(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{
  // comment
  "schemaVersion": "1.0.0",
  "languages": [
    { "language": "yaml", "extensions": [".yml", ".yaml"] }
  ]
}`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Languages) != 1 {
		t.Fatalf("Languages = %v, want one entry", cfg.Languages)
	}
	if cfg.Languages[0].Language != "yaml" {
		t.Errorf("Language = %q, want yaml", cfg.Languages[0].Language)
	}
	if got := len(cfg.Languages[0].Extensions); got != 2 {
		t.Errorf("Extensions count = %d, want 2", got)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{
  "schemaVersion": "1.0.0",
  "languages": [{ "language": "", "extensions": [".x"] }]
}`)

	if _, err := Load(root); err == nil {
		t.Fatal("Load accepted an empty language name")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{ "schemaVersion": "1.0.0", "unknown": true }`)

	if _, err := Load(root); err == nil {
		t.Fatal("Load accepted an unknown top-level key")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{ "schemaVersion": `)

	if _, err := Load(root); err == nil {
		t.Fatal("Load accepted malformed JSON")
	}
}

func TestWriteStarterProducesLoadableConfig(t *testing.T) {
	root := t.TempDir()
	path, err := WriteStarter(root, false)
	if err != nil {
		t.Fatalf("WriteStarter: %v", err)
	}
	if path != Path(root) {
		t.Errorf("path = %q, want %q", path, Path(root))
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load of starter config: %v", err)
	}
	if cfg.SchemaVersion != "1.0.0" {
		t.Errorf("SchemaVersion = %q, want 1.0.0", cfg.SchemaVersion)
	}
}

func TestWriteStarterPreservesExisting(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{ "schemaVersion": "2.0.0" }`)

	if _, err := WriteStarter(root, false); err != nil {
		t.Fatalf("WriteStarter: %v", err)
	}
	data, err := os.ReadFile(Path(root))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{ "schemaVersion": "2.0.0" }` {
		t.Error("WriteStarter overwrote an existing config without allowOverwrite")
	}
}

func TestPathsAndDurations(t *testing.T) {
	cfg := Default()
	if got := cfg.AnnotationsStore("/ws"); got != filepath.Join("/ws", ".lingua", "annotations.db") {
		t.Errorf("AnnotationsStore = %q", got)
	}
	if got := cfg.LogFile("/ws"); got != filepath.Join("/ws", ".lingua", "lingua.log") {
		t.Errorf("LogFile = %q", got)
	}
	if !cfg.AnnotationsEnabled() {
		t.Error("annotations should default to enabled")
	}

	cfg.Annotations.Store = "custom.db"
	if got := cfg.AnnotationsStore("/ws"); got != filepath.Join("/ws", "custom.db") {
		t.Errorf("relative store = %q", got)
	}

	zero := 0
	cfg.Server.DebounceMillis = &zero
	if cfg.Debounce() != 0 {
		t.Errorf("explicit zero debounce should stick, got %v", cfg.Debounce())
	}
}
