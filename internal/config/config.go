// Package config loads the workspace configuration from .lingua/lingua.jsonc.
// The file is JSONC (comments allowed) and is validated
// against an embedded JSON schema before use. A missing file yields defaults;
// a malformed or invalid file is an error the caller surfaces.
package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed lingua.schema.json
var schemaFS embed.FS

const schemaURL = "mem://schemas/lingua.schema.json"

var (
	compileOnce sync.Once
	schema      *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		data, err := schemaFS.ReadFile("lingua.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("read embedded schema: %w", err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			compileErr = fmt.Errorf("decode embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("register schema: %w", err)
			return
		}
		schema, compileErr = c.Compile(schemaURL)
	})
	return schema, compileErr
}

// LanguageConfig declares extra extensions for a language without shipping a
// provider. Each entry becomes a static routing-only provider.
type LanguageConfig struct {
	Language   string   `json:"language"`
	Extensions []string `json:"extensions"`
}

// ServerConfig tunes serve mode.
type ServerConfig struct {
	LogFile             string `json:"logFile,omitempty"`
	Trace               string `json:"trace,omitempty"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds,omitempty"`
	DebounceMillis      *int   `json:"debounceMillis,omitempty"`
}

// AnnotationsConfig controls the workspace annotation store. Extensions list
// the file extensions the annotation handlers attach to for hover and pull
// diagnostics; the startup sweep publishes annotations regardless.
type AnnotationsConfig struct {
	Enabled    *bool    `json:"enabled,omitempty"`
	Store      string   `json:"store,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
}

// Config is the decoded workspace configuration.
type Config struct {
	SchemaVersion string            `json:"schemaVersion"`
	Server        ServerConfig      `json:"server"`
	Languages     []LanguageConfig  `json:"languages,omitempty"`
	Annotations   AnnotationsConfig `json:"annotations"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		SchemaVersion: "1.0.0",
		Server: ServerConfig{
			Trace:               "off",
			PollIntervalSeconds: 2,
		},
	}
}

// Path returns the configuration file path for a workspace root.
func Path(root string) string {
	return filepath.Join(root, ".lingua", "lingua.jsonc")
}

// Load reads and validates the workspace configuration. A missing file is not
// an error; defaults apply. Any other failure (unreadable file, bad JSONC,
// schema violation) is returned to the caller.
func Load(root string) (*Config, error) {
	path := Path(root)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	clean := jsonc.ToJSON(raw)
	if err := validate(clean); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(clean, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateJSONC checks raw JSONC bytes against the workspace config schema.
// Used by the JSON provider to diagnose open lingua.jsonc buffers.
func ValidateJSONC(raw []byte) error {
	return validate(jsonc.ToJSON(raw))
}

func validate(clean []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(clean))
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// PollInterval returns the host liveness polling interval.
func (c *Config) PollInterval() time.Duration {
	if c.Server.PollIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Server.PollIntervalSeconds) * time.Second
}

// Debounce returns the publish debounce delay.
func (c *Config) Debounce() time.Duration {
	if c.Server.DebounceMillis == nil {
		return 300 * time.Millisecond
	}
	return time.Duration(*c.Server.DebounceMillis) * time.Millisecond
}

// AnnotationsEnabled reports whether the annotation store should be opened.
func (c *Config) AnnotationsEnabled() bool {
	return c.Annotations.Enabled == nil || *c.Annotations.Enabled
}

// AnnotationsStore returns the annotation database path for a workspace root.
func (c *Config) AnnotationsStore(root string) string {
	if c.Annotations.Store != "" {
		if filepath.IsAbs(c.Annotations.Store) {
			return c.Annotations.Store
		}
		return filepath.Join(root, c.Annotations.Store)
	}
	return filepath.Join(root, ".lingua", "annotations.db")
}

// LogFile returns the serve-mode log path for a workspace root.
func (c *Config) LogFile(root string) string {
	if c.Server.LogFile != "" {
		if filepath.IsAbs(c.Server.LogFile) {
			return c.Server.LogFile
		}
		return filepath.Join(root, c.Server.LogFile)
	}
	return filepath.Join(root, ".lingua", "lingua.log")
}

const starterTemplate = `{
  // Lingua workspace configuration. Comments are allowed; the file is JSONC.
  "schemaVersion": "1.0.0",
  "server": {
    "trace": "off"
  },
  // Route extra extensions to a language's handlers, e.g.:
  //   "languages": [{ "language": "json", "extensions": [".geojson"] }]
  "languages": []
}
`

// WriteStarter creates .lingua/ with a commented starter configuration. An
// existing file is left alone unless allowOverwrite is set.
func WriteStarter(root string, allowOverwrite bool) (string, error) {
	path := Path(root)
	if _, err := os.Stat(path); err == nil && !allowOverwrite {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(starterTemplate), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
