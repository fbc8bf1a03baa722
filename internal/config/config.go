// Package config handles server configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the complete server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Repo    RepoConfig    `koanf:"repo"`
	OIDC    OIDCConfig    `koanf:"oidc"`
	Spec    SpecConfig    `koanf:"spec"`
	CORS    CORSConfig    `koanf:"cors"`
	Logging LoggingConfig `koanf:"logging"`
	Metrics MetricsConfig `koanf:"metrics"`
	Cache   CacheConfig   `koanf:"cache"`

	// DebugMode relaxes error-message redaction (§7 propagation policy) and
	// enables any debug-only affordances. Must never be enabled in production.
	DebugMode bool `koanf:"debug_mode"`

	// Env is the pass-through map available to templates as `env` (§6.2).
	Env map[string]any `koanf:"env"`
}

type ServerConfig struct {
	Listen                  string `koanf:"listen"`
	SystemdSocketActivation bool   `koanf:"systemd_socket_activation"`
	RootPath                string `koanf:"root_path"`
}

// RepoConfig configures the repo backend plugin (§6.2, "repo_plugin").
// Backend-specific fields are forwarded as-is to the selected plugin.
type RepoConfig struct {
	Plugin            string `koanf:"plugin"`
	URL               string `koanf:"url"`
	Branch            string `koanf:"branch"`
	SSHKeyFile        string `koanf:"ssh_key_file"`
	SSHKnownHostsFile string `koanf:"ssh_known_hosts_file"`
	DirtyMaxAge       int    `koanf:"dirty_max_age"`
	WorkDir           string `koanf:"work_dir"`
}

type OIDCConfig struct {
	URL                 string   `koanf:"url"`
	ClientIDs           []string `koanf:"client_ids"`
	JWTName             string   `koanf:"jwt_name"`
	JWTNameFallback     string   `koanf:"jwt_name_fallback"`
	JWTEmail            string   `koanf:"jwt_email"`
	JWTEmailFallback    string   `koanf:"jwt_email_fallback"`
	JWTFullName         string   `koanf:"jwt_full_name"`
	JWTFullNameFallback string   `koanf:"jwt_full_name_fallback"`
}

type SpecConfig struct {
	// Path is either an on-disk file, or a "."-prefixed path read from
	// inside the entity repository (§4.6, §9 open question: file-source
	// reads are memoized for process lifetime).
	Path string `koanf:"path"`
}

type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

type LoggingConfig struct {
	Output string        `koanf:"output"`
	Level  string        `koanf:"level"`
	File   LogFileConfig `koanf:"file"`
}

type LogFileConfig struct {
	Path string `koanf:"path"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// CacheConfig configures the optional spec-hash cache (SPEC_FULL.md §2),
// the one narrow repurposing of the teacher's SQL storage layer.
type CacheConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:   ":8080",
			RootPath: "/",
		},
		Repo: RepoConfig{
			Plugin:  "git",
			Branch:  "main",
			WorkDir: "/repo",
		},
		Spec: SpecConfig{
			Path: "spec.yaml",
		},
		Logging: LoggingConfig{
			Output: "stdout",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
		Cache: CacheConfig{
			Driver: "sqlite",
			DSN:    "yacgo-cache.db",
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Defaults()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Environment variable overrides: YACGO_REPO_URL -> repo.url
	// Only the first underscore separates the section from the field name;
	// subsequent underscores are preserved as literal characters in field names.
	if err := k.Load(env.Provider("YACGO_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "YACGO_")
		s = strings.ToLower(s)
		if i := strings.Index(s, "_"); i > 0 {
			section, field := s[:i], s[i+1:]
			switch section {
			case "server", "repo", "oidc", "spec", "cors", "logging", "metrics", "cache":
				// Handle 3-level nesting for logging.file.*
				if section == "logging" && strings.HasPrefix(field, "file_") {
					return "logging.file." + field[len("file_"):]
				}
				return section + "." + field
			}
		}
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// OIDCClientAllowed reports whether the given audience claim is one of the
// configured accepted client IDs (§6.3).
func (c *Config) OIDCClientAllowed(aud string) bool {
	for _, id := range c.OIDC.ClientIDs {
		if id == aud {
			return true
		}
	}
	return false
}

// DirtyMaxAge returns the configured dirty-read window as a duration.
func (c *Config) DirtyMaxAge() time.Duration {
	return time.Duration(c.Repo.DirtyMaxAge) * time.Minute
}
