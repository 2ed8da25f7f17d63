// Package config loads spectree settings through viper.
//
// Precedence, highest first: command-line flags (bound in cmd/spectree),
// SPECTREE_* environment variables, the workspace .spectree/config.yaml,
// the user config ~/.config/spectree/config.yaml, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WorkspaceDirName is the per-project directory holding config and cache.
const WorkspaceDirName = ".spectree"

// Configuration keys.
const (
	KeyCMSURL       = "cms.url"
	KeyCMSToken     = "cms.token"
	KeyCMSTimeout   = "cms.timeout"
	KeyApp          = "app"
	KeyPersistToAPI = "persist-to-api"
	KeyReconcile    = "reconcile"
	KeyAIModel      = "ai.model"
	KeyAIAPIKey     = "ai.api-key"
	KeyAIPrompts    = "ai.prompts"
	KeyAICount      = "ai.count"
	KeyCacheDSN     = "cache.dsn"
	KeyJSON         = "json"
	KeyLogLevel     = "log.level"
)

// KnownKeys lists every key `spectree config` accepts, with a short help text.
var KnownKeys = map[string]string{
	KeyCMSURL:       "CMS base URL, e.g. http://localhost:1337",
	KeyCMSToken:     "CMS API token (bearer)",
	KeyCMSTimeout:   "HTTP timeout for CMS calls",
	KeyApp:          "documentId of the app to work on",
	KeyPersistToAPI: "write reorders back to the CMS",
	KeyReconcile:    "reload the tree from the CMS after a failed write",
	KeyAIModel:      "Anthropic model used by generate",
	KeyAIAPIKey:     "Anthropic API key (ANTHROPIC_API_KEY wins)",
	KeyAIPrompts:    "path to a prompts.toml override file",
	KeyAICount:      "default number of drafts per generate call",
	KeyCacheDSN:     "MySQL/Dolt DSN for the snapshot cache (file cache when empty)",
	KeyJSON:         "JSON output by default",
	KeyLogLevel:     "log level: debug, info, warn, error",
}

var (
	v          *viper.Viper
	configPath string
)

func newViper() *viper.Viper {
	nv := viper.New()
	nv.SetConfigType("yaml")
	nv.SetEnvPrefix("SPECTREE")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()

	nv.SetDefault(KeyCMSURL, "http://localhost:1337")
	nv.SetDefault(KeyCMSTimeout, "30s")
	nv.SetDefault(KeyPersistToAPI, true)
	nv.SetDefault(KeyReconcile, false)
	nv.SetDefault(KeyAIModel, "claude-3-5-haiku-latest")
	nv.SetDefault(KeyAICount, 5)
	nv.SetDefault(KeyJSON, false)
	nv.SetDefault(KeyLogLevel, "warn")
	return nv
}

// Initialize loads configuration. An explicit path wins; otherwise the
// nearest .spectree/config.yaml above the working directory is used, then
// the user config. Missing files are not an error.
func Initialize(explicitPath string) error {
	v = newViper()
	configPath = ""

	path := explicitPath
	if path == "" {
		if found, err := FindConfigYAMLPath(); err == nil {
			path = found
		} else if home, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(home, "spectree", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if explicitPath != "" {
				return fmt.Errorf("config file %s: %w", explicitPath, err)
			}
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	configPath = path
	return nil
}

// Viper exposes the underlying instance so cmd/spectree can bind flags.
func Viper() *viper.Viper {
	if v == nil {
		v = newViper()
	}
	return v
}

// ConfigFileUsed returns the loaded config file, or "" when none was found.
func ConfigFileUsed() string {
	return configPath
}

// FindConfigYAMLPath walks up from the working directory looking for
// .spectree/config.yaml.
func FindConfigYAMLPath() (string, error) {
	dir, err := FindWorkspaceDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("no %s/config.yaml found: %w", WorkspaceDirName, err)
	}
	return p, nil
}

// FindWorkspaceDir returns the nearest .spectree directory at or above the
// working directory.
func FindWorkspaceDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, WorkspaceDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return "", fmt.Errorf("no %s directory found in current directory or parents", WorkspaceDirName)
}

// GetString returns a string setting.
func GetString(key string) string { return Viper().GetString(key) }

// GetBool returns a boolean setting.
func GetBool(key string) bool { return Viper().GetBool(key) }

// GetInt returns an integer setting.
func GetInt(key string) int { return Viper().GetInt(key) }

// GetDuration returns a duration setting.
func GetDuration(key string) time.Duration { return Viper().GetDuration(key) }

// Set overrides a value for this process only.
func Set(key string, value any) { Viper().Set(key, value) }

// Settings is the typed view of the configuration.
type Settings struct {
	CMSURL       string
	CMSToken     string
	CMSTimeout   time.Duration
	App          string
	PersistToAPI bool
	Reconcile    bool
	AIModel      string
	AIAPIKey     string
	AIPrompts    string
	AICount      int
	CacheDSN     string
	JSON         bool
	LogLevel     string
}

// Load returns the current settings.
func Load() Settings {
	return Settings{
		CMSURL:       GetString(KeyCMSURL),
		CMSToken:     GetString(KeyCMSToken),
		CMSTimeout:   GetDuration(KeyCMSTimeout),
		App:          GetString(KeyApp),
		PersistToAPI: GetBool(KeyPersistToAPI),
		Reconcile:    GetBool(KeyReconcile),
		AIModel:      GetString(KeyAIModel),
		AIAPIKey:     GetString(KeyAIAPIKey),
		AIPrompts:    GetString(KeyAIPrompts),
		AICount:      GetInt(KeyAICount),
		CacheDSN:     GetString(KeyCacheDSN),
		JSON:         GetBool(KeyJSON),
		LogLevel:     GetString(KeyLogLevel),
	}
}

// List returns every known key with its effective value. Secrets are masked.
func List() []KeyValue {
	keys := make([]string, 0, len(KnownKeys))
	for k := range KnownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		val := fmt.Sprint(Viper().Get(k))
		if Viper().Get(k) == nil {
			val = ""
		}
		if isSecret(k) && val != "" {
			val = mask(val)
		}
		out = append(out, KeyValue{Key: k, Value: val, Help: KnownKeys[k]})
	}
	return out
}

// KeyValue is one row of List.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Help  string `json:"help"`
}

func isSecret(key string) bool {
	return strings.HasSuffix(key, "token") || strings.HasSuffix(key, "api-key")
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
