// Package config loads the score service configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/score.report/internal/security"
)

// DefaultConfigPath is the path to the canonical server defaults file.
const DefaultConfigPath = "config/server.defaults.json"

// Built-in defaults, used for any field the JSON file omits.
const (
	DefaultListen           = ":8080"
	DefaultArtifactExt      = ".cbor"
	DefaultPreprocessorName = "preprocessor"
	DefaultModelName        = "model"
	DefaultDBPath           = "score.db"
	DefaultHistoryLimit     = 100
	DefaultShutdownTimeout  = 5 * time.Second
)

// ServerConfig is the service configuration. Every field is optional; the
// Get* accessors supply defaults.
type ServerConfig struct {
	Listen *string `json:"listen,omitempty"`

	// Artifact lookup. An empty artifact_roots list means the resolver's
	// ranked fallback search.
	ArtifactRoots    []string `json:"artifact_roots,omitempty"`
	ArtifactExt      *string  `json:"artifact_ext,omitempty"`
	PreprocessorName *string  `json:"preprocessor_name,omitempty"`
	ModelName        *string  `json:"model_name,omitempty"`
	CacheArtifacts   *bool    `json:"cache_artifacts,omitempty"`

	// Prediction log
	DBPath            *string `json:"db_path,omitempty"`
	RecordPredictions *bool   `json:"record_predictions,omitempty"`
	HistoryLimit      *int    `json:"history_limit,omitempty"`

	ShutdownTimeout *string `json:"shutdown_timeout,omitempty"` // duration string like "5s"
}

func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyServerConfig returns a ServerConfig with all fields unset.
func EmptyServerConfig() *ServerConfig {
	return &ServerConfig{}
}

// LoadServerConfig loads a ServerConfig from a JSON file. The file must have
// a .json extension and be at most 1MB.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyServerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when given. Otherwise it loads DefaultConfigPath
// if that file exists, and falls back to an empty config.
func LoadOrDefault(path string) (*ServerConfig, error) {
	if path != "" {
		return LoadServerConfig(path)
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return LoadServerConfig(DefaultConfigPath)
	}
	return EmptyServerConfig(), nil
}

// Validate checks the fields that are set.
func (c *ServerConfig) Validate() error {
	for i, root := range c.ArtifactRoots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("artifact_roots[%d] is empty", i)
		}
	}
	if c.ArtifactExt != nil && !strings.HasPrefix(*c.ArtifactExt, ".") {
		return fmt.Errorf("artifact_ext must start with '.', got %q", *c.ArtifactExt)
	}
	for field, name := range map[string]*string{
		"preprocessor_name": c.PreprocessorName,
		"model_name":        c.ModelName,
	} {
		if name == nil {
			continue
		}
		if err := security.ValidateArtifactName(*name); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if c.PreprocessorName != nil && c.ModelName != nil && *c.PreprocessorName == *c.ModelName {
		return fmt.Errorf("preprocessor_name and model_name must differ, both are %q", *c.ModelName)
	}
	if c.HistoryLimit != nil && (*c.HistoryLimit < 1 || *c.HistoryLimit > 10000) {
		return fmt.Errorf("history_limit must be between 1 and 10000, got %d", *c.HistoryLimit)
	}
	if c.ShutdownTimeout != nil && *c.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(*c.ShutdownTimeout); err != nil {
			return fmt.Errorf("invalid shutdown_timeout '%s': %w", *c.ShutdownTimeout, err)
		}
	}
	return nil
}

// GetListen returns the listen address or the default.
func (c *ServerConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetArtifactRoots returns a copy of the configured roots; nil means the
// resolver's fallback search.
func (c *ServerConfig) GetArtifactRoots() []string {
	if len(c.ArtifactRoots) == 0 {
		return nil
	}
	return append([]string(nil), c.ArtifactRoots...)
}

// GetArtifactExt returns the artifact file extension or the default.
func (c *ServerConfig) GetArtifactExt() string {
	if c.ArtifactExt == nil || *c.ArtifactExt == "" {
		return DefaultArtifactExt
	}
	return *c.ArtifactExt
}

// GetPreprocessorName returns the preprocessor's logical name or the default.
func (c *ServerConfig) GetPreprocessorName() string {
	if c.PreprocessorName == nil || *c.PreprocessorName == "" {
		return DefaultPreprocessorName
	}
	return *c.PreprocessorName
}

// GetModelName returns the model's logical name or the default.
func (c *ServerConfig) GetModelName() string {
	if c.ModelName == nil || *c.ModelName == "" {
		return DefaultModelName
	}
	return *c.ModelName
}

func (c *ServerConfig) GetCacheArtifacts() bool {
	if c.CacheArtifacts == nil {
		return false
	}
	return *c.CacheArtifacts
}

func (c *ServerConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetRecordPredictions returns whether predictions are logged; on by default.
func (c *ServerConfig) GetRecordPredictions() bool {
	if c.RecordPredictions == nil {
		return true
	}
	return *c.RecordPredictions
}

func (c *ServerConfig) GetHistoryLimit() int {
	if c.HistoryLimit == nil {
		return DefaultHistoryLimit
	}
	return *c.HistoryLimit
}

// GetShutdownTimeout parses and returns ShutdownTimeout.
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == nil || *c.ShutdownTimeout == "" {
		return DefaultShutdownTimeout
	}
	d, err := time.ParseDuration(*c.ShutdownTimeout)
	if err != nil {
		return DefaultShutdownTimeout
	}
	return d
}

// ApplyOverrides sets fields from command-line flags. Empty strings leave
// the field alone.
func (c *ServerConfig) ApplyOverrides(listen, artifactsDir, dbPath string) {
	if listen != "" {
		c.Listen = ptrString(listen)
	}
	if artifactsDir != "" {
		c.ArtifactRoots = []string{artifactsDir}
	}
	if dbPath != "" {
		c.DBPath = ptrString(dbPath)
	}
}

// Summary is the JSON view served by /api/config.
type Summary struct {
	Listen            string   `json:"listen"`
	ArtifactRoots     []string `json:"artifact_roots"`
	ArtifactExt       string   `json:"artifact_ext"`
	PreprocessorName  string   `json:"preprocessor_name"`
	ModelName         string   `json:"model_name"`
	CacheArtifacts    bool     `json:"cache_artifacts"`
	RecordPredictions bool     `json:"record_predictions"`
	HistoryLimit      int      `json:"history_limit"`
}

// Summary resolves every default.
func (c *ServerConfig) Summary() Summary {
	return Summary{
		Listen:            c.GetListen(),
		ArtifactRoots:     c.GetArtifactRoots(),
		ArtifactExt:       c.GetArtifactExt(),
		PreprocessorName:  c.GetPreprocessorName(),
		ModelName:         c.GetModelName(),
		CacheArtifacts:    c.GetCacheArtifacts(),
		RecordPredictions: c.GetRecordPredictions(),
		HistoryLimit:      c.GetHistoryLimit(),
	}
}
