package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"http_server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security" validate:"required"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret   string        `mapstructure:"access_token_secret" validate:"required,min=32"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration"`
	BCryptCost          int           `mapstructure:"bcrypt_cost"`
}

type LoggingConfig struct {
	Env string `mapstructure:"env"`
}

// DashboardConfig drives the generic resource CRUD engine and the
// protection rules applied to user and role deletion.
type DashboardConfig struct {
	AdminRole  string                    `mapstructure:"admin_role"`
	StorageDir string                    `mapstructure:"storage_dir"`
	Pagination PaginationConfig          `mapstructure:"pagination"`
	Protected  ProtectedConfig           `mapstructure:"protected"`
	Resources  map[string]ResourceConfig `mapstructure:"resources"`
}

type PaginationConfig struct {
	Users      int `mapstructure:"users"`
	Roles      int `mapstructure:"roles"`
	Privileges int `mapstructure:"privileges"`
	Resources  int `mapstructure:"resources"`
}

type ProtectedConfig struct {
	Users []int64  `mapstructure:"users"`
	Roles []string `mapstructure:"roles"`
}

// ResourceConfig is the static, declarative schema for one CRUD resource.
// It is read once at startup and never mutated at runtime.
type ResourceConfig struct {
	Title    string        `mapstructure:"title"`
	Table    string        `mapstructure:"table"`
	Roles    []string      `mapstructure:"roles"`
	Readonly []string      `mapstructure:"readonly"`
	Search   []string      `mapstructure:"search"`
	Fields   []FieldConfig `mapstructure:"fields"`
}

type FieldConfig struct {
	Key          string              `mapstructure:"key"`
	Label        string              `mapstructure:"label"`
	Type         string              `mapstructure:"type"`
	Rules        []string            `mapstructure:"rules"`
	Searchable   bool                `mapstructure:"searchable"`
	Sortable     bool                `mapstructure:"sortable"`
	Relationship *RelationshipConfig `mapstructure:"relationship"`
}

// RelationshipConfig describes a many-to-many relation backing a
// select/multiselect/radio/checkbox field.
type RelationshipConfig struct {
	Name         string `mapstructure:"name"`
	JoinTable    string `mapstructure:"join_table"`
	ForeignKey   string `mapstructure:"foreign_key"`
	RelatedKey   string `mapstructure:"related_key"`
	RelatedTable string `mapstructure:"related_table"`
	LabelColumn  string `mapstructure:"label_column"`
}

// ----------------- DEFAULTS -----------------

const (
	DefaultAdminRole  = "admin"
	DefaultPageSize   = 15
	DefaultBCryptCost = 10
)

func (c *DashboardConfig) AdminRoleSlug() string {
	if c.AdminRole == "" {
		return DefaultAdminRole
	}
	return c.AdminRole
}

func (c *PaginationConfig) PerPage(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return n
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds a minimal configuration from environment
// variables, used for container deployments without a config file.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:      getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Security: SecurityConfig{
			AccessTokenSecret:   getEnv("ACCESS_TOKEN_SECRET", ""),
			AccessTokenDuration: 24 * time.Hour,
			BCryptCost:          getEnvAsInt("BCRYPT_COST", DefaultBCryptCost),
		},
		Logging: LoggingConfig{
			Env: getEnv("APP_ENV", "development"),
		},
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Dashboard.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("dashboard config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access token secret must be at least 32 characters")
	}
	if c.BCryptCost != 0 && (c.BCryptCost < 4 || c.BCryptCost > 31) {
		return errors.New("bcrypt cost out of range")
	}
	return nil
}

func (c *DashboardConfig) Validate() error {
	for key, res := range c.Resources {
		if res.Table == "" {
			return fmt.Errorf("resource %q: table is required", key)
		}
		seen := map[string]bool{}
		for _, f := range res.Fields {
			if f.Key == "" {
				return fmt.Errorf("resource %q: field with empty key", key)
			}
			if seen[f.Key] {
				return fmt.Errorf("resource %q: duplicate field %q", key, f.Key)
			}
			seen[f.Key] = true
		}
	}
	return nil
}
