// Package settings loads process settings from defaults, an optional
// grid-explorer.json file and GRID_* environment variables, in increasing
// order of precedence. Command line flags are applied on top by main.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the settings file looked up in the search directories
const FileName = "grid-explorer"

// Store kinds for session persistence
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// ErrInvalidSettings is wrapped by every validation failure
var ErrInvalidSettings = errors.New("invalid settings")

// NgrokSettings controls the optional public tunnel
type NgrokSettings struct {
	Enabled   bool   `mapstructure:"enabled"`
	AuthToken string `mapstructure:"authToken"`
	Domain    string `mapstructure:"domain"`
}

// Settings are the process-wide settings of the server
type Settings struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	ConfigDir   string `mapstructure:"configDir"`
	SessionsDir string `mapstructure:"sessionsDir"`
	Store       string `mapstructure:"store"`
	SQLitePath  string `mapstructure:"sqlitePath"`
	LogLevel    string `mapstructure:"logLevel"`
	LogPretty   bool   `mapstructure:"logPretty"`

	SessionTTL      time.Duration `mapstructure:"sessionTTL"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
	SyncInterval    time.Duration `mapstructure:"syncInterval"`
	// FrameInterval throttles realtime frame pushes to websocket clients
	FrameInterval time.Duration `mapstructure:"frameInterval"`

	Ngrok NgrokSettings `mapstructure:"ngrok"`
}

// Addr is the host:port the HTTP server listens on
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)
	v.SetDefault("configDir", "configs")
	v.SetDefault("sessionsDir", "sessions")
	v.SetDefault("store", StoreFile)
	v.SetDefault("sqlitePath", "sessions.db")
	v.SetDefault("logLevel", "info")
	v.SetDefault("logPretty", true)

	v.SetDefault("sessionTTL", "24h")
	v.SetDefault("cleanupInterval", "1h")
	v.SetDefault("syncInterval", "5s")
	v.SetDefault("frameInterval", "100ms")

	v.SetDefault("ngrok.enabled", false)
	v.SetDefault("ngrok.authToken", "")
	v.SetDefault("ngrok.domain", "")
}

// bindEnv maps each key to GRID_<KEY> plus the names older deployments use
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"host":            {"GRID_HOST"},
		"port":            {"GRID_PORT"},
		"configDir":       {"GRID_CONFIG_DIR", "CONFIG_DIR"},
		"sessionsDir":     {"GRID_SESSIONS_DIR"},
		"store":           {"GRID_STORE"},
		"sqlitePath":      {"GRID_SQLITE_PATH"},
		"logLevel":        {"GRID_LOG_LEVEL"},
		"logPretty":       {"GRID_LOG_PRETTY"},
		"sessionTTL":      {"GRID_SESSION_TTL"},
		"cleanupInterval": {"GRID_CLEANUP_INTERVAL"},
		"syncInterval":    {"GRID_SYNC_INTERVAL"},
		"frameInterval":   {"GRID_FRAME_INTERVAL"},
		"ngrok.enabled":   {"GRID_NGROK_ENABLED", "NGROK_ENABLED"},
		"ngrok.authToken": {"GRID_NGROK_AUTHTOKEN", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"},
		"ngrok.domain":    {"GRID_NGROK_DOMAIN", "NGROK_DOMAIN"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Load reads settings. A missing settings file is not an error; a malformed
// one is.
func Load(searchDirs ...string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	v.SetConfigName(FileName)
	v.SetConfigType("json")
	if len(searchDirs) == 0 {
		searchDirs = []string{"."}
	}
	for _, dir := range searchDirs {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings for values the server cannot start with
func (s *Settings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("%w: port must be between 0 and 65535, got %d", ErrInvalidSettings, s.Port)
	}
	switch strings.ToLower(s.Store) {
	case StoreFile, StoreSQLite, StoreMemory:
		s.Store = strings.ToLower(s.Store)
	default:
		return fmt.Errorf("%w: store must be one of file, sqlite or memory, got %q", ErrInvalidSettings, s.Store)
	}
	if s.SessionTTL <= 0 {
		return fmt.Errorf("%w: sessionTTL must be positive", ErrInvalidSettings)
	}
	if s.CleanupInterval <= 0 || s.SyncInterval <= 0 {
		return fmt.Errorf("%w: cleanup and sync intervals must be positive", ErrInvalidSettings)
	}
	if s.FrameInterval < 0 {
		return fmt.Errorf("%w: frameInterval must not be negative", ErrInvalidSettings)
	}
	return nil
}
