package warden

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration snapshot. It is built once at
// startup and passed by reference into each component constructor; nothing in
// the package reads the environment after that.
type Config struct {
	SigningKey string

	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	ResetTokenTTL        time.Duration
	VerificationTokenTTL time.Duration

	MaxFailedAttempts int
	LockoutDuration   time.Duration

	DefaultRoleName string
	BcryptCost      int

	MongoURI      string
	MongoDatabase string

	HTTPAddr string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	SuperadminUsername string
	SuperadminEmail    string
	SuperadminPassword string
}

// LoadConfig reads configuration from the environment, with an optional .env
// file for local development. SigningKey and, when Mongo is used, MongoURI
// and MongoDatabase must be set; everything else has a default.
func LoadConfig() (*Config, error) {
	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		SigningKey:           os.Getenv("WARDEN_SIGNING_KEY"),
		AccessTokenTTL:       envDuration("WARDEN_ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL:      envDuration("WARDEN_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ResetTokenTTL:        envDuration("WARDEN_RESET_TOKEN_TTL", 15*time.Minute),
		VerificationTokenTTL: envDuration("WARDEN_VERIFICATION_TOKEN_TTL", time.Hour),
		MaxFailedAttempts:    envInt("WARDEN_MAX_FAILED_ATTEMPTS", 5),
		LockoutDuration:      envDuration("WARDEN_LOCKOUT_DURATION", 15*time.Minute),
		DefaultRoleName:      envString("WARDEN_DEFAULT_ROLE", "member"),
		BcryptCost:           envInt("WARDEN_BCRYPT_COST", DefaultBcryptCost),
		MongoURI:             os.Getenv("WARDEN_MONGO_URI"),
		MongoDatabase:        os.Getenv("WARDEN_MONGO_DATABASE"),
		HTTPAddr:             envString("WARDEN_HTTP_ADDR", ":8080"),
		SMTPHost:             os.Getenv("WARDEN_SMTP_HOST"),
		SMTPPort:             envString("WARDEN_SMTP_PORT", "587"),
		SMTPUser:             os.Getenv("WARDEN_SMTP_USER"),
		SMTPPass:             os.Getenv("WARDEN_SMTP_PASS"),
		MailFrom:             os.Getenv("WARDEN_MAIL_FROM"),
		SuperadminUsername:   envString("WARDEN_SUPERADMIN_USERNAME", "superadmin"),
		SuperadminEmail:      envString("WARDEN_SUPERADMIN_EMAIL", "superadmin@example.com"),
		SuperadminPassword:   os.Getenv("WARDEN_SUPERADMIN_PASSWORD"),
	}

	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("WARDEN_SIGNING_KEY must be set")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
