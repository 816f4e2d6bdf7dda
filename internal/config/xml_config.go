// Package config provides XML-based configuration for the analysis server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"AnalyzerServer"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Processing ProcessingConfig `xml:"Processing"`
	History    HistoryConfig    `xml:"History"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
	ServeWebUI   bool   `xml:"ServeWebUI"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	HistoryDatabase  string `xml:"HistoryDatabase"`
	RulesFile        string `xml:"RulesFile"` // empty = built-in rules
}

// ProcessingConfig contains analysis settings
type ProcessingConfig struct {
	MaxConcurrentAnalyses int  `xml:"MaxConcurrentAnalyses"`
	MaxFileSizeMB         int  `xml:"MaxFileSizeMB"`
	CacheEntries          int  `xml:"CacheEntries"`
	EnableCompression     bool `xml:"EnableCompression"`
	CompressionLevel      int  `xml:"CompressionLevel"`
}

// HistoryConfig controls the analysis history store
type HistoryConfig struct {
	Enabled              bool `xml:"Enabled"`
	RetentionHours       int  `xml:"RetentionHours"`
	PruneIntervalMinutes int  `xml:"PruneIntervalMinutes"`
	DuckDBThreads        int  `xml:"DuckDBThreads"`
}

// AdvancedConfig contains logging options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"` // "info" hides debug/info lines, "debug" shows them
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         5000,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "64M",
			ServeWebUI:   true,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			HistoryDatabase:  "./data/history.duckdb",
			RulesFile:        "",
		},
		Processing: ProcessingConfig{
			MaxConcurrentAnalyses: 4,
			MaxFileSizeMB:         16,
			CacheEntries:          256,
			EnableCompression:     true,
			CompressionLevel:      5,
		},
		History: HistoryConfig{
			Enabled:              true,
			RetentionHours:       24 * 7,
			PruneIntervalMinutes: 60,
			DuckDBThreads:        2,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from an XML file, writing the defaults
// there first if the file does not exist.
func LoadConfig(configPath string) (*AppConfig, error) {
	var config *AppConfig

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		config = DefaultConfig()
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- HTML Lexical Analyzer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Processing.MaxConcurrentAnalyses <= 0 {
		return fmt.Errorf("MaxConcurrentAnalyses must be positive")
	}
	if c.Processing.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MaxFileSizeMB must be positive")
	}
	if _, err := c.BodyLimitBytes(); err != nil {
		return fmt.Errorf("invalid BodyLimit %q: %w", c.Server.BodyLimit, err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.HistoryDatabase = filepath.Join(dataDir, "history.duckdb")
	}

	if rules := os.Getenv("RULES_FILE"); rules != "" {
		c.Storage.RulesFile = rules
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.HistoryDatabase)
	resolve(&c.Storage.RulesFile)
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// MaxFileSize returns the per-file size cap in bytes.
func (c *AppConfig) MaxFileSize() int64 {
	return int64(c.Processing.MaxFileSizeMB) << 20
}

// BodyLimitBytes parses Server.BodyLimit ("64M", "512K") the way the Echo
// body limit middleware does. Zero means no limit.
func (c *AppConfig) BodyLimitBytes() (int64, error) {
	if strings.TrimSpace(c.Server.BodyLimit) == "" {
		return 0, nil
	}
	return bytes.Parse(c.Server.BodyLimit)
}

// Verbose reports whether debug and info log lines should be written.
func (c *AppConfig) Verbose() bool {
	return strings.EqualFold(c.Advanced.LogLevel, "debug")
}

// HistoryRetention returns how long history rows are kept.
func (c *AppConfig) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionHours) * time.Hour
}

// PruneInterval returns how often history is pruned.
func (c *AppConfig) PruneInterval() time.Duration {
	if c.History.PruneIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.History.PruneIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}
	if c.Storage.HistoryDatabase != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.HistoryDatabase))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
