// conf/config.go
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the single configuration tree for the engine process. It does
// NOT hold Project state (tracks/clips/DSP chains) — that tree is runtime
// state owned by the project package and serialized separately.
type Settings struct {
	Debug    bool   // true to enable debug mode
	SystemID string // random, stable per-installation ID reported alongside telemetry

	Main struct {
		Name string // name of this engine instance, used in logs and notifications
		Log  LogConfig
	}

	Engine EngineConfig

	Paths struct {
		ProjectsDir   string // directory projects are saved/loaded from
		ExportDir     string // directory offline renders and clip exports are written to
		TempDir       string // scratch directory for in-progress recordings
		RecordingsDir string // directory finalized recorder takes are written to
	}

	API APIConfig

	MQTT struct {
		Enabled  bool   // true to publish transport/meter events to MQTT
		Broker   string // MQTT broker (tcp://host:port)
		Topic    string // base MQTT topic
		Username string
		Password string
	}

	Notification struct {
		Enabled bool     // true to dispatch error notifications
		URLs    []string // shoutrrr service URLs (slack://, smtp://, generic webhook, ...)
	}

	Telemetry struct {
		Enabled bool   // true to capture EnhancedErrors to Sentry
		DSN     string // Sentry DSN
	}

	SessionStore SessionStoreConfig

	Backup BackupConfig

	Security Security

	Observability ObservabilityConfig
}

// ObservabilityConfig configures the metrics endpoint and resource monitor.
type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool   // true to expose a Prometheus /metrics endpoint
		Listen  string // address:port for the metrics endpoint
	}

	Monitoring struct {
		Enabled                bool
		CheckInterval          int     // seconds between resource checks
		CriticalResendInterval int     // minutes between repeat critical alerts
		HysteresisPercent      float64 // percent below a threshold before it clears

		CPU struct {
			Enabled  bool
			Warning  float64
			Critical float64
		}

		Memory struct {
			Enabled  bool
			Warning  float64
			Critical float64
		}

		Disk struct {
			Enabled  bool
			Paths    []string // extra paths to watch beyond the auto-detected set
			Warning  float64
			Critical float64
		}
	}
}

// BackupConfig configures the backup manager: which destinations to back
// up to, whether backups are encrypted, and retention/timeout policy.
type BackupConfig struct {
	Enabled       bool
	Debug         bool
	Encryption    bool
	EncryptionKey string
	Destinations  []BackupDestinationConfig
	Schedules     []BackupScheduleConfig

	Retention struct {
		MaxAge     string // e.g. "30d", "" for no age-based cleanup
		MinBackups int
		MaxBackups int
	}

	OperationTimeouts struct {
		Backup  time.Duration
		Store   time.Duration
		Cleanup time.Duration
		Delete  time.Duration
	}
}

// BackupScheduleConfig configures one recurring backup run time.
type BackupScheduleConfig struct {
	Enabled  bool
	Hour     int
	Minute   int
	Weekday  string // "" for daily, else a weekday name
	IsWeekly bool
}

// EngineConfig configures the audio engine's device and buffering behavior.
type EngineConfig struct {
	SampleRate   int // engine-wide sample rate in Hz
	Channels     int // engine-wide channel count (2 for stereo)
	BufferFrames int // callback buffer size in frames

	Device struct {
		Input  string // preferred capture device name, "" for system default
		Output string // preferred playback device name, "" for system default
	}
}

// APIConfig configures the HTTP command surface.
type APIConfig struct {
	Enabled bool   // true to enable the HTTP command surface
	Listen  string // address:port to listen on
	APIKey  string // bearer token required on every request
	AutoTLS bool   // true to enable auto TLS
	Log     LogConfig
}

// SessionStoreConfig configures the recording-session/backup index.
type SessionStoreConfig struct {
	Driver string // "sqlite" or "mysql"

	SQLite struct {
		Path string
	}

	MySQL struct {
		Username string
		Password string
		Database string
		Host     string
		Port     string
	}
}

// Security holds the fields used to construct externally visible URLs
// (notification links, reverse-proxy aware command-surface addressing).
type Security struct {
	Host    string // externally visible hostname (reverse proxy setups)
	BaseURL string // full externally visible base URL, takes priority over Host
	AutoTLS bool
}

// BackupDestinationConfig configures one project-backup destination.
type BackupDestinationConfig struct {
	Type string // "local", "ftp", "sftp", "gdrive"

	Local struct {
		Path string
	}
	FTP struct {
		Host     string
		Username string
		Password string
		Path     string
	}
	SFTP struct {
		Host       string
		Username   string
		Password   string
		PrivateKey string
		Path       string
	}
	GoogleDrive struct {
		CredentialsFile string
		FolderID        string
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay time.Weekday // Day of the week for RotationWeekly
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// buildDate is the time when the binary was built, set via -ldflags.
var buildDate string

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	applyEnvOverrides(settings)

	if err := validateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	fmt.Printf("tapedeck build date: %s, using config file: %s\n", buildDate, viper.ConfigFileUsed())

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the YAML file
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsMap, err := structToMap(settingsInstance)
	if err != nil {
		return fmt.Errorf("error converting settings to map: %w", err)
	}

	if err := viper.MergeConfigMap(settingsMap); err != nil {
		return fmt.Errorf("error merging settings with viper: %w", err)
	}

	return viper.WriteConfig()
}

// UpdateSettings updates the settings in memory and persists them to the YAML file
func UpdateSettings(newSettings *Settings) error {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := validateSettings(newSettings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	settingsInstance = newSettings

	settingsMap, err := structToMap(newSettings)
	if err != nil {
		return fmt.Errorf("error converting settings to map: %w", err)
	}

	if err := viper.MergeConfigMap(settingsMap); err != nil {
		return fmt.Errorf("error merging settings with viper: %w", err)
	}

	return viper.WriteConfig()
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}
