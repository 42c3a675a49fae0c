package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Server    ServerConfig    `envPrefix:"SERVER_"`
	Backend   BackendConfig   `envPrefix:"BACKEND_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Poll      PollConfig      `envPrefix:"POLL_"`
	Media     MediaConfig     `envPrefix:"MEDIA_"`
	Firestore FirestoreConfig `envPrefix:"FIRESTORE_"`
	Storage   StorageConfig   `envPrefix:"STORAGE_"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"127.0.0.1"`

	// AllowedOrigins lists browser shells allowed cross-origin access;
	// empty denies every cross-origin caller.
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	// Secret must accompany every /v1 and /ws request. When unset a
	// random one is generated at startup and written to SecretFile.
	Secret          string        `env:"SECRET"`
	SecretFile      string        `env:"SECRET_FILE" envDefault:".gateway-secret"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// BackendConfig points at the marketplace REST API.
type BackendConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:5000/api"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type SessionConfig struct {
	// Store is "memory" or "firestore".
	Store   string `env:"STORE" envDefault:"memory"`
	Profile string `env:"PROFILE" envDefault:"default"`
}

type PollConfig struct {
	Interval      time.Duration `env:"INTERVAL" envDefault:"30s"`
	EventBurst    int           `env:"EVENT_BURST" envDefault:"3"`
	EventCooldown time.Duration `env:"EVENT_COOLDOWN" envDefault:"2s"`
}

type MediaConfig struct {
	MaxSize int64 `env:"MAX_SIZE" envDefault:"10485760"`
	// Root is the only folder local media references may point into.
	Root string `env:"ROOT"`
}

type FirestoreConfig struct {
	ProjectID       string `env:"PROJECT_ID"`
	CredentialsFile string `env:"CREDENTIALS_FILE"`
	Collection      string `env:"COLLECTION" envDefault:"sessions"`
}

type StorageConfig struct {
	// Enabled turns on gs:// media references.
	Enabled         bool   `env:"ENABLED" envDefault:"false"`
	CredentialsFile string `env:"CREDENTIALS_FILE"`
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureSecret generates the gateway secret when none is configured and
// writes it to SecretFile, readable by the owner only. It reports whether
// a secret was generated.
func (s *ServerConfig) EnsureSecret() (bool, error) {
	if s.Secret != "" {
		return false, nil
	}
	s.Secret = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	if s.SecretFile == "" {
		return true, nil
	}
	if err := os.WriteFile(s.SecretFile, []byte(s.Secret+"\n"), 0o600); err != nil {
		return true, fmt.Errorf("write gateway secret: %w", err)
	}
	if err := os.Chmod(s.SecretFile, 0o600); err != nil {
		return true, fmt.Errorf("restrict gateway secret file: %w", err)
	}
	return true, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
