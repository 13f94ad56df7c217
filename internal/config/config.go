package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env        string `yaml:"env"`
	BaseURL    string `yaml:"base_url"`
	Log        `yaml:"log"`
	ShortCode  `yaml:"short_code"`
	HTTPServer `yaml:"http_server"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	SQLite     `yaml:"sqlite"`
	RateLimit  `yaml:"rate_limit"`
}

type Log struct {
	Level   string `yaml:"level"`
	JSON    bool   `yaml:"json"`
	Concise bool   `yaml:"concise"`
}

var defaultLog = Log{
	Level:   "info",
	Concise: true,
}

type ShortCode struct {
	MaxAttempts int `yaml:"max_attempts"`
}

var defaultShortCode = ShortCode{
	MaxAttempts: 100,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Storage struct {
	Driver string `yaml:"driver"`
}

var defaultStorage = Storage{
	Driver: DriverPostgres,
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.DB,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}

	return u.String()
}

type SQLite struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

var defaultSQLite = SQLite{
	Path:        "url-shortener.db",
	BusyTimeout: 5 * time.Second,
}

type RateLimit struct {
	Enabled    bool          `yaml:"enabled"`
	RPS        float64       `yaml:"rps"`
	Burst      int           `yaml:"burst"`
	TTL        time.Duration `yaml:"ttl"`
	MaxClients int           `yaml:"max_clients"`
	// TrustProxyHeaders keys clients on X-Forwarded-For and X-Real-IP instead
	// of the connection peer. Enable only behind a reverse proxy.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

var defaultRateLimit = RateLimit{
	RPS:        10,
	Burst:      20,
	TTL:        10 * time.Minute,
	MaxClients: 10000,
}

// Load reads the YAML config file at path. ${VAR} references in the file are
// expanded from the environment before decoding.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.Log = defaultLog
	cfg.ShortCode = defaultShortCode
	cfg.HTTPServer = defaultHTTPServer
	cfg.Storage = defaultStorage
	cfg.Postgres = defaultPostgres
	cfg.SQLite = defaultSQLite
	cfg.RateLimit = defaultRateLimit
}

func (cfg *Config) Validate() error {
	var errs []error

	switch cfg.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("unknown env %q", cfg.Env))
	}

	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q must be an absolute url", cfg.BaseURL))
	}

	switch cfg.Storage.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver))
	}

	if cfg.ShortCode.MaxAttempts <= 0 {
		errs = append(errs, errors.New("short_code.max_attempts must be positive"))
	}

	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate_limit.rps and rate_limit.burst must be positive"))
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.MaxClients <= 0 {
		errs = append(errs, errors.New("rate_limit.max_clients must be positive"))
	}

	return errors.Join(errs...)
}
