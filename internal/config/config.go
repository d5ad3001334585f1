package config

import (
	"bytes"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort        = 3000
	defaultEnv         = "development"
	defaultDBHost      = "127.0.0.1"
	defaultDBPort      = 3306
	defaultDBUser      = "sigao"
	defaultDBPassword  = "sigao"
	defaultDBName      = "sigao_ai"
	defaultDBCharset   = "utf8mb4"
	defaultDBLoc       = "Local"
	defaultRedisURL    = "redis://localhost:6379/0"
	defaultAdminUser   = "admin"
	defaultAdminPass   = "admin"
	defaultAPIEndpoint = "https://www.magisterium.com/api/v1/chat/completions"
	defaultModel       = "magisterium-1"
	defaultCacheDays   = 30
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int               `yaml:"port"`
	Env            string            `yaml:"env"` // "development" | "production"
	DSN            string            `yaml:"dsn"` // MySQL DSN; assembled from Database when empty
	Database       DatabaseConfig    `yaml:"database"`
	RedisURL       string            `yaml:"redis_url"`
	JWTSecret      string            `yaml:"jwt_secret"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	Admin          AdminConfig       `yaml:"admin"`
	Magisterium    MagisteriumConfig `yaml:"magisterium"`
}

type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	Charset   string `yaml:"charset"`
	ParseTime bool   `yaml:"parse_time"`
	Loc       string `yaml:"loc"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"` // plain or bcrypt hash
}

// MagisteriumConfig configures the upstream completion API.
type MagisteriumConfig struct {
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Stream    bool   `yaml:"stream"`         // ask the upstream transport itself to stream
	CacheDays int    `yaml:"cache_ttl_days"` // <= 0 means cache rows never expire
}

// Load reads the YAML config, applies defaults and environment overrides.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		// Missing file is fine: defaults + env cover the original dotenv setup.
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:     defaultPort,
		Env:      defaultEnv,
		RedisURL: defaultRedisURL,
		Database: DatabaseConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Admin: AdminConfig{
			Username: defaultAdminUser,
			Password: defaultAdminPass,
		},
		Magisterium: MagisteriumConfig{
			APIURL:    defaultAPIEndpoint,
			Model:     defaultModel,
			CacheDays: defaultCacheDays,
		},
	}
}

// applyEnvOverrides keeps the original deployment contract: secrets arrive
// through the environment, never the YAML file.
func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("NODE_ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("DB_HOST")); v != "" {
		cfg.Database.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("DB_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("DB_USER")); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASS"); v != "" {
		cfg.Database.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("DB_NAME")); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ADMIN_PASS"); v != "" {
		cfg.Admin.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("MAGISTERIUM_API_URL")); v != "" {
		cfg.Magisterium.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MAGISTERIUM_API_KEY")); v != "" {
		cfg.Magisterium.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MAGISTERIUM_STREAM")); v != "" {
		cfg.Magisterium.Stream = strings.EqualFold(v, "true")
	}
}

func normalize(cfg *AppConfig) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.DSN == "" {
		cfg.DSN = cfg.Database.DSNValue()
	}
	cfg.RedisURL = normalizeRedisURL(cfg.RedisURL)
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = defaultAdminUser
	}
	if cfg.Magisterium.APIURL == "" {
		cfg.Magisterium.APIURL = defaultAPIEndpoint
	}
	if cfg.Magisterium.Model == "" {
		cfg.Magisterium.Model = defaultModel
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.AllowedOrigins = origins
}

func normalizeRedisURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultRedisURL
	}
	if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
		return trimmed
	}
	return "redis://" + trimmed
}

// DSNValue assembles a MySQL DSN from the individual fields.
func (c DatabaseConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	charset := strings.TrimSpace(c.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}
	loc := strings.TrimSpace(c.Loc)
	if loc == "" {
		loc = defaultDBLoc
	}

	params := neturl.Values{}
	params.Set("charset", charset)
	params.Set("parseTime", strconv.FormatBool(c.ParseTime))
	params.Set("loc", loc)

	return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s",
		c.User, c.Password, net.JoinHostPort(host, strconv.Itoa(port)), c.Name, params.Encode())
}

func (c *AppConfig) IsDev() bool {
	return !strings.EqualFold(c.Env, "production")
}
