package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath         = "CONFIG_PATH"
	EnvDBConnection       = "DB_CONNECTION"
	EnvAuthJWTSecret      = "AUTH_JWT_SECRET"
	EnvAuthPublicKeyFile  = "AUTH_PUBLIC_KEY_FILE"
	EnvAuthIssuer         = "AUTH_ISSUER"
	EnvAuthAudience       = "AUTH_AUDIENCE"
	EnvEncryptionKey      = "ENCRYPTION_KEY"
	EnvGatewaySyncConfig  = "GATEWAY_SYNC_CONFIG_PATH"
	EnvServerPort         = "PORT"
	defaultServerHost     = ""
	defaultServerPort     = 8080
	defaultSubjectClaim   = "sub"
	defaultDotEnvFilename = ".env"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// LoadDotEnv loads a .env file from the working directory when present. Existing variables win.
func LoadDotEnv() error {
	if _, errStat := os.Stat(defaultDotEnvFilename); errStat != nil {
		if os.IsNotExist(errStat) {
			return nil
		}
		return errStat
	}
	if errLoad := godotenv.Load(defaultDotEnvFilename); errLoad != nil {
		return fmt.Errorf("load %s: %w", defaultDotEnvFilename, errLoad)
	}
	return nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// ErrMissingEncryptionKey indicates no provider secret encryption key is configured.
var ErrMissingEncryptionKey = errors.New("missing encryption key (set `encryption-key` in config file or ENCRYPTION_KEY)")

// fileConfig maps the YAML file. Every loader reads the subset it needs.
type fileConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Server        ServerConfig      `yaml:"server"`
	Auth          AuthConfig        `yaml:"auth"`
	EncryptionKey string            `yaml:"encryption-key"`
	GatewaySync   GatewaySyncConfig `yaml:"gateway-sync"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig holds the identity provider token validation settings.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt-secret"`      // HS256 shared secret.
	PublicKeyFile string `yaml:"public-key-file"` // RS256 PEM public key path.
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	SubjectClaim  string `yaml:"subject-claim"` // Claim holding the user id, "sub" by default.
}

// GatewaySyncConfig points at the CLIProxyAPI config file kept in step with selected keys.
type GatewaySyncConfig struct {
	ConfigPath string `yaml:"config-path"`
}

// readFileConfig parses configPath. A missing file yields an empty config.
func readFileConfig(configPath string) (fileConfig, error) {
	var cfg fileConfig
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return cfg, nil
}

// LoadDatabaseDSN reads the database DSN from the environment or the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// LoadAuthConfig loads token validation settings. Environment variables override the file.
func LoadAuthConfig(configPath string) (AuthConfig, error) {
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return AuthConfig{}, errRead
	}
	result := cfg.Auth

	if secret := strings.TrimSpace(os.Getenv(EnvAuthJWTSecret)); secret != "" {
		result.JWTSecret = secret
	}
	if keyFile := strings.TrimSpace(os.Getenv(EnvAuthPublicKeyFile)); keyFile != "" {
		result.PublicKeyFile = keyFile
	}
	if issuer := strings.TrimSpace(os.Getenv(EnvAuthIssuer)); issuer != "" {
		result.Issuer = issuer
	}
	if audience := strings.TrimSpace(os.Getenv(EnvAuthAudience)); audience != "" {
		result.Audience = audience
	}

	result.JWTSecret = strings.TrimSpace(result.JWTSecret)
	result.PublicKeyFile = strings.TrimSpace(result.PublicKeyFile)
	result.SubjectClaim = strings.TrimSpace(result.SubjectClaim)
	if result.SubjectClaim == "" {
		result.SubjectClaim = defaultSubjectClaim
	}
	if result.JWTSecret == "" && result.PublicKeyFile == "" {
		return result, errors.New("missing auth key (set `auth.jwt-secret` or `auth.public-key-file`)")
	}
	return result, nil
}

// LoadEncryptionKey returns the master key used to seal provider secrets.
func LoadEncryptionKey(configPath string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvEncryptionKey)); key != "" {
		return key, nil
	}
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return "", errRead
	}
	if key := strings.TrimSpace(cfg.EncryptionKey); key != "" {
		return key, nil
	}
	return "", ErrMissingEncryptionKey
}

// LoadGatewaySyncConfig returns the gateway config sync settings. An empty path disables syncing.
func LoadGatewaySyncConfig(configPath string) (GatewaySyncConfig, error) {
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return GatewaySyncConfig{}, errRead
	}
	result := cfg.GatewaySync
	if path := strings.TrimSpace(os.Getenv(EnvGatewaySyncConfig)); path != "" {
		result.ConfigPath = path
	}
	result.ConfigPath = strings.TrimSpace(result.ConfigPath)
	return result, nil
}

// LoadServerConfig returns the listener settings with defaults applied.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	cfg, errRead := readFileConfig(configPath)
	if errRead != nil {
		return ServerConfig{}, errRead
	}
	result := cfg.Server
	if portRaw := strings.TrimSpace(os.Getenv(EnvServerPort)); portRaw != "" {
		if port, errParse := strconv.Atoi(portRaw); errParse == nil {
			result.Port = port
		}
	}
	result.Host = strings.TrimSpace(result.Host)
	if result.Host == "" {
		result.Host = defaultServerHost
	}
	if result.Port <= 0 {
		result.Port = defaultServerPort
	}
	return result, nil
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
