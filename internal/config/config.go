package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	App struct {
		// Origin of the web client, pinned as the access-token audience.
		Origin string `yaml:"origin"`
		// Public base URL of this API, pinned as the token issuer.
		BaseURL string `yaml:"base_url"`
	} `yaml:"app"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`

	Tokens struct {
		AccessSecret      string `yaml:"access_secret"`
		RefreshSecret     string `yaml:"refresh_secret"`
		OpaqueHashSecret  string `yaml:"opaque_hash_secret"`
		RefreshCookieName string `yaml:"refresh_cookie_name"`
	} `yaml:"tokens"`

	OpenAI struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Storage struct {
		Type       string `yaml:"type"`        // local, s3
		BasePath   string `yaml:"base_path"`   // for local storage
		BaseURL    string `yaml:"base_url"`    // public URL base
		Bucket     string `yaml:"bucket"`      // for S3
		Region     string `yaml:"region"`      // for S3
		AccessKey  string `yaml:"access_key"`  // for S3
		SecretKey  string `yaml:"secret_key"`  // for S3
		Endpoint   string `yaml:"endpoint"`    // for custom S3 (MinIO)
		UseSSL     bool   `yaml:"use_ssl"`     // for S3
		PublicRead bool   `yaml:"public_read"` // make files public
	} `yaml:"storage"`

	Upload struct {
		MaxSize      int64    `yaml:"max_size"`      // max file size in bytes
		AllowedTypes []string `yaml:"allowed_types"` // allowed MIME types
	} `yaml:"upload"`
}

// Token lifetimes are contract constants rather than tunables: the refresh
// cookie, the rotation TTL and the denylist slack all derive from them.
const (
	AccessTokenTTL        = 30 * time.Minute
	RefreshTokenTTL       = 7 * 24 * time.Hour
	VerificationTokenTTL  = 7 * 24 * time.Hour
	ResetPasswordTokenTTL = 10 * time.Minute
	TwoFactorTokenTTL     = 5 * time.Minute
	OpaqueTokenLength     = 48
	// Extra denylist TTL beyond the token lifetime, absorbs clock skew.
	RevocationSlack = 2 * time.Minute
)

// Load reads configuration from CONFIG_PATH (default config/config.yaml).
// When DATABASE_URL is set, the yaml file is skipped and everything comes
// from environment variables instead (test/deploy mode).
func Load() (*Config, error) {
	var cfg Config

	if os.Getenv("DATABASE_URL") == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("open config file %s: %w", configPath, err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}

		return &cfg, cfg.validate()
	}

	cfg.Database.DSN = os.Getenv("DATABASE_URL")
	cfg.Server.Env = getEnv("SERVER_ENV", "development")
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.Port, _ = strconv.Atoi(getEnv("SERVER_PORT", "8080"))

	cfg.App.Origin = getEnv("APP_ORIGIN", "http://localhost:3000")
	cfg.App.BaseURL = getEnv("BASE_URL", "http://localhost:8080")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB, _ = strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg.Email.SMTPHost = os.Getenv("EMAIL_SERVER_HOST")
	cfg.Email.SMTPPort, _ = strconv.Atoi(getEnv("EMAIL_SERVER_PORT", "587"))
	cfg.Email.SMTPUsername = os.Getenv("EMAIL_SERVER_USER")
	cfg.Email.SMTPPassword = os.Getenv("EMAIL_SERVER_PASSWORD")
	cfg.Email.FromEmail = getEnv("EMAIL_FROM", "no-reply@lumen.app")
	cfg.Email.FromName = getEnv("EMAIL_FROM_NAME", "Lumen")

	cfg.Tokens.AccessSecret = os.Getenv("ACCESS_TOKEN_SECRET")
	cfg.Tokens.RefreshSecret = os.Getenv("REFRESH_TOKEN_SECRET")
	cfg.Tokens.OpaqueHashSecret = os.Getenv("OPAQUE_HASH_SECRET")
	cfg.Tokens.RefreshCookieName = getEnv("REFRESH_TOKEN_COOKIE_NAME", "lumen_refresh")

	cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAI.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")

	cfg.Storage.Type = getEnv("STORAGE_TYPE", "local")
	cfg.Storage.BasePath = getEnv("STORAGE_BASE_PATH", "./uploads")
	cfg.Storage.BaseURL = getEnv("STORAGE_BASE_URL", "/api/v1/files")
	cfg.Storage.Bucket = os.Getenv("AWS_S3_BUCKET_NAME")
	cfg.Storage.Region = os.Getenv("AWS_REGION")
	cfg.Storage.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Storage.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.Storage.Endpoint = os.Getenv("AWS_S3_ENDPOINT")

	cfg.Upload.MaxSize = 10 * 1024 * 1024
	cfg.Upload.AllowedTypes = []string{
		"image/jpeg", "image/png", "image/gif", "image/webp",
		"application/pdf", "text/plain",
	}

	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Tokens.AccessSecret == "" || c.Tokens.RefreshSecret == "" {
		return fmt.Errorf("access and refresh token secrets are required")
	}
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Tokens.OpaqueHashSecret == "" {
		c.Tokens.OpaqueHashSecret = c.Tokens.RefreshSecret
	}
	if c.Tokens.RefreshCookieName == "" {
		c.Tokens.RefreshCookieName = "lumen_refresh"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
