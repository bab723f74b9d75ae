package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Section names with meaning to the core.
const (
	// SectionMQTT is the mandatory broker connection section.
	SectionMQTT = "mqtt"
)

// Document is a parsed, unvalidated configuration document.
// Top-level keys are section names.
type Document map[string]any

// Config is a validated configuration.
// It must be treated as read-only once handed to the service.
type Config struct {
	// MQTT holds the normalised broker settings.
	MQTT MQTTSettings

	// Document is the full normalised document, including application
	// sections exactly as they were read.
	Document Document
}

// MQTTSettings contains the broker connection settings of a Config.
type MQTTSettings struct {
	Broker    string
	Port      int
	User      *string
	Password  *string
	BaseTopic string

	// Optional transport tuning. Not part of SameConnection: a reload that
	// only changes these keeps the current connection, and they take effect
	// when a connection setting changes as well. See SameTuning.
	ClientID  string
	TLS       bool
	KeepAlive int // seconds, 0 means transport default
}

// SameConnection reports whether two settings would produce the same broker
// connection: broker, port, user, password and base topic are all equal.
func (s MQTTSettings) SameConnection(o MQTTSettings) bool {
	return s.Broker == o.Broker &&
		s.Port == o.Port &&
		equalOptional(s.User, o.User) &&
		equalOptional(s.Password, o.Password) &&
		s.BaseTopic == o.BaseTopic
}

// SameTuning reports whether client id, TLS and keepalive are equal.
func (s MQTTSettings) SameTuning(o MQTTSettings) bool {
	return s.ClientID == o.ClientID && s.TLS == o.TLS && s.KeepAlive == o.KeepAlive
}

// Address returns the broker as host:port.
func (s MQTTSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Broker, s.Port)
}

// UserName returns the configured user or "" when unset.
func (s MQTTSettings) UserName() string {
	if s.User == nil {
		return ""
	}
	return *s.User
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Section returns the raw value of a top-level section.
func (c *Config) Section(name string) (any, bool) {
	v, ok := c.Document[name]
	return v, ok
}

// DecodeSection decodes an application section into out (a pointer to a
// struct with json tags). A missing section leaves out untouched.
//
// Returns:
//   - bool: whether the section was present
//   - error: if the section does not fit out
func (c *Config) DecodeSection(name string, out any) (bool, error) {
	raw, ok := c.Document[name]
	if !ok || raw == nil {
		return false, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return true, fmt.Errorf("encoding section %q: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("decoding section %q: %w", name, err)
	}
	return true, nil
}

// LoggingConfig contains logging settings for the process collaborator.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	// Output is "stdout", "stderr" or a file path.
	Output string `json:"output"`
	// Console also mirrors file output to stderr (foreground mode).
	Console bool `json:"console"`
}

// DatabaseConfig contains SQLite database settings for application sections.
type DatabaseConfig struct {
	Path        string `json:"path"`
	WALMode     bool   `json:"wal_mode"`
	BusyTimeout int    `json:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for application sections.
type InfluxDBConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	Token         string `json:"token"`
	Org           string `json:"org"`
	Bucket        string `json:"bucket"`
	BatchSize     int    `json:"batch_size"`
	FlushInterval int    `json:"flush_interval"`
}

// Load reads and parses a configuration document.
//
// Files ending in .yaml or .yml are parsed as YAML. Anything else is parsed
// as JSON, with // and /* */ comments and trailing commas tolerated.
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - Document: The parsed document (not yet validated)
//   - error: wraps ErrConfigRead or ErrConfigParse
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigRead, err)
	}

	doc, err := Parse(data, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Format selects the document syntax.
type Format int

const (
	// FormatJSON is JSON with optional comments.
	FormatJSON Format = iota
	// FormatYAML is YAML 1.2.
	FormatYAML
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes a configuration document from data.
//
// Returns:
//   - Document: The parsed document
//   - error: wraps ErrConfigParse (malformed input or non-object root)
func Parse(data []byte, format Format) (Document, error) {
	var doc Document

	switch format {
	case FormatYAML:
		// Decoding into the named type would make nested mappings Documents
		// as well; sections are plain maps in both formats.
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigParse, err)
		}
		if raw != nil {
			doc = Document(raw)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigParse, err)
		}
	}

	if doc == nil {
		return nil, fmt.Errorf("%w: document root must be an object", ErrConfigParse)
	}
	return doc, nil
}

// ApplyEnvOverrides replaces MQTT credentials with environment variables.
//
// Variables follow the pattern PREFIX_MQTT_KEY, for example
// ECHOSERVICE_MQTT_PASSWORD. Only user and password are overridable, so that
// secrets need not live in the file. Documents without an mqtt section are
// left alone for the validator to reject.
func ApplyEnvOverrides(doc Document, prefix string) {
	if prefix == "" {
		return
	}
	section, ok := asSection(doc[SectionMQTT])
	if !ok {
		return
	}

	prefix = strings.ToUpper(prefix)
	if v := os.Getenv(prefix + "_MQTT_USER"); v != "" {
		section["user"] = v
	}
	if v := os.Getenv(prefix + "_MQTT_PASSWORD"); v != "" {
		section["password"] = v
	}
}

// asSection returns raw as a section map. Documents built in code may nest
// Document values, which are accepted as well.
func asSection(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case Document:
		return map[string]any(v), true
	default:
		return nil, false
	}
}
