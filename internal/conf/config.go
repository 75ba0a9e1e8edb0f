// config.go: application settings. Defines the settings struct and the
// viper-backed loading of YAML configuration with environment overrides.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// MainSettings holds service-wide settings.
type MainSettings struct {
	Name     string // service instance name, used in log attributes
	Debug    bool   // true to enable debug logging
	LogLevel string // "trace", "debug", "info", "warn", "error"
	LogFile  string // structured log destination; empty logs to stdout
}

// ServerSettings holds HTTP server settings.
type ServerSettings struct {
	Host string // bind address
	Port int    // bind port
}

// BucketSettings names the GCS buckets the annotation pipeline reads and
// writes. The layout mirrors the upstream extraction pipeline and cannot be
// collapsed into fewer buckets without migrating it.
type BucketSettings struct {
	Papers          string // uploaded source PDFs
	PapersProcessed string // processed paper artifacts
	Labelling       string // labeling session artifacts
	JSONFiles       string // per-session papers JSON documents
	ExtractedImages string // images pulled out of PDFs
	Segmentation    string // uploaded segmentation text files
}

// StorageSettings holds object storage settings.
type StorageSettings struct {
	CredentialsFile string // path to a service account JSON key; empty uses ADC
	Buckets         BucketSettings
}

// SessionSettings identifies the labeling session whose documents are loaded.
type SessionSettings struct {
	ID string // session identifier, part of every object path
}

// SpeciesSettings configures the LLM species assistant.
type SpeciesSettings struct {
	Enabled   bool   // false disables the assistant endpoints
	Model     string // generative model name
	APIKeyEnv string // environment variable holding the API key
	MaxTokens int    // completion token budget
}

// TrackerSettings configures the upload tracker database.
type TrackerSettings struct {
	Enabled bool
	Path    string // SQLite database path
}

// ReconcilerSettings configures the segmentation reconciler.
type ReconcilerSettings struct {
	FallbackImageWidth  float64 // used when a record has no dimensions
	FallbackImageHeight float64
}

// Settings is the root configuration object.
type Settings struct {
	Main       MainSettings
	Server     ServerSettings
	Storage    StorageSettings
	Session    SessionSettings
	Species    SpeciesSettings
	Tracker    TrackerSettings
	Reconciler ReconcilerSettings
}

var (
	settingsInstance *Settings
	settingsOnce     sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads configuration from the given file (or the default search
// paths when path is empty), applies environment overrides, and returns the
// validated settings.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "diatom-annotator"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("diatom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// Setting returns the loaded settings, loading defaults on first use.
func Setting() *Settings {
	settingsOnce.Do(func() {
		settingsMutex.RLock()
		loaded := settingsInstance != nil
		settingsMutex.RUnlock()
		if !loaded {
			if _, err := Load(""); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Validate checks settings for values that would only fail deep inside a
// request path.
func (s *Settings) Validate() error {
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Server.Port)
	}
	if s.Session.ID == "" {
		return fmt.Errorf("session id must be set")
	}
	if s.Reconciler.FallbackImageWidth <= 0 || s.Reconciler.FallbackImageHeight <= 0 {
		return fmt.Errorf("fallback image dimensions must be positive")
	}
	return nil
}

// PapersDocumentObject returns the object path of the per-session papers
// JSON document inside the JSON files bucket.
func (s *Settings) PapersDocumentObject() string {
	return fmt.Sprintf("jsons_from_pdfs/%s/%s.json", s.Session.ID, s.Session.ID)
}

// SpeciesAPIKey resolves the configured API key environment variable.
func (s *Settings) SpeciesAPIKey() string {
	return os.Getenv(s.Species.APIKeyEnv)
}
