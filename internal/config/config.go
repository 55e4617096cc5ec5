package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Service names accepted by Load.
const (
	ServiceGateway = "gateway"
	ServiceLogin   = "login-service"
	ServiceMessage = "message-service"
)

const minJWTSecretLength = 32

var defaultPorts = map[string]string{
	ServiceGateway: "8080",
	ServiceLogin:   "8082",
	ServiceMessage: "8083",
}

type Config struct {
	Service string

	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	GatewaySecret string
	BcryptCost    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	UserCacheEnabled bool
	UserCacheTTL     time.Duration

	LoginServiceURL        string
	MessageServiceURL      string
	UpstreamConnectTimeout time.Duration
	UpstreamReadTimeout    time.Duration

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	LogLevel  string
	LogFormat string
}

func Load(service string) (*Config, error) {
	_ = godotenv.Load()

	port, ok := defaultPorts[service]
	if !ok {
		return nil, fmt.Errorf("unknown service %q", service)
	}

	cfg := &Config{
		Service:                 service,
		ServerPort:              getEnv("SERVER_PORT", port),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:            getDuration("JWT_ACCESS_TTL", 24*time.Hour),
		JWTRefreshTTL:           getDuration("JWT_REFRESH_TTL", 24*time.Hour),
		GatewaySecret:           strings.TrimSpace(os.Getenv("GATEWAY_SECRET")),
		BcryptCost:              getInt("BCRYPT_COST", 10),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 2)),
		UserCacheEnabled:        getBool("USER_CACHE_ENABLED", true),
		UserCacheTTL:            getMillis("USER_CACHE_TTL_MS", 5*time.Minute),
		LoginServiceURL:         getEnvAllowEmpty("LOGIN_SERVICE_URL", "http://localhost:8082"),
		MessageServiceURL:       getEnv("MESSAGE_SERVICE_URL", "http://localhost:8083"),
		UpstreamConnectTimeout:  getDuration("UPSTREAM_CONNECT_TIMEOUT", 3*time.Second),
		UpstreamReadTimeout:     getDuration("UPSTREAM_READ_TIMEOUT", 15*time.Second),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.GatewaySecret == "" {
		return fmt.Errorf("GATEWAY_SECRET is required")
	}

	switch c.Service {
	case ServiceGateway:
		if err := c.validateJWT(); err != nil {
			return err
		}
		if err := validateURL("LOGIN_SERVICE_URL", c.LoginServiceURL, true); err != nil {
			return err
		}
		if err := validateURL("MESSAGE_SERVICE_URL", c.MessageServiceURL, true); err != nil {
			return err
		}
		if err := c.validateUpstream(); err != nil {
			return err
		}
		if c.RateLimitRPM <= 0 || c.AuthRateLimitRPM <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPM and AUTH_RATE_LIMIT_RPM must be positive")
		}
	case ServiceLogin:
		if err := c.validateJWT(); err != nil {
			return err
		}
		if c.JWTAccessTTL < time.Second || c.JWTRefreshTTL < time.Second {
			return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be at least 1s")
		}
		if c.BcryptCost < 4 || c.BcryptCost > 31 {
			return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
		}
		if err := c.validateDatabase(); err != nil {
			return err
		}
	case ServiceMessage:
		if err := c.validateDatabase(); err != nil {
			return err
		}
		if c.UserCacheTTL <= 0 {
			return fmt.Errorf("USER_CACHE_TTL_MS must be positive")
		}
		if err := validateURL("LOGIN_SERVICE_URL", c.LoginServiceURL, false); err != nil {
			return err
		}
		if err := c.validateUpstream(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown service %q", c.Service)
	}

	return nil
}

func (c *Config) validateJWT() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	}

	return nil
}

func (c *Config) validateUpstream() error {
	if c.UpstreamConnectTimeout <= 0 || c.UpstreamReadTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_CONNECT_TIMEOUT and UPSTREAM_READ_TIMEOUT must be positive")
	}

	return nil
}

func validateURL(key string, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", key)
		}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL", key)
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key string, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	return strings.TrimSpace(v)
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getMillis(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return time.Duration(v) * time.Millisecond
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
