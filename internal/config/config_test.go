package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_DatabaseIsOptional(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.HasDatabase() {
		t.Fatalf("expected no database")
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected default ttl, got %v", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer, c.Auth.JWTAudience = "callcore", "callcore-api"
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callcore"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callcore"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestLoad_ReadsPolicyFlags(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CALL_WAITING_DISABLED", "true")
	t.Setenv("REJECT_CALLS_ON_DND_ACCOUNTS", "alice, bob,,")

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !c.Policy.CallWaitingDisabled || c.Policy.RejectCallsOnDND {
		t.Fatalf("unexpected policy %+v", c.Policy)
	}
	if !c.Policy.OnThePhoneStatus {
		t.Fatalf("on-the-phone status must default to enabled")
	}
	if len(c.Policy.RejectCallsOnDNDAccounts) != 2 || c.Policy.RejectCallsOnDNDAccounts[1] != "bob" {
		t.Fatalf("unexpected accounts %v", c.Policy.RejectCallsOnDNDAccounts)
	}
}

func TestLoad_RejectsBadBoolean(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REJECT_CALLS_ON_DND", "sometimes")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid boolean")
	}
}

func TestLoadEnv_MissingFileTolerated(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if err := LoadEnv(); err != nil {
		t.Fatalf("expected missing file tolerated, got %v", err)
	}
}

func TestLoadEnv_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CALLCORE_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("CALLCORE_TEST_VALUE", "")
	os.Unsetenv("CALLCORE_TEST_VALUE")

	if err := LoadEnv(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := os.Getenv("CALLCORE_TEST_VALUE"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}

func TestLoad_ReadsRedisCredentials(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "pw")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("JWT_SECRET", "secret")

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.RedisAddr() != "redis:6380" || c.Redis.Password != "pw" || c.Redis.DB != 3 {
		t.Fatalf("unexpected redis config %+v", c.Redis)
	}

	t.Setenv("REDIS_DB", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative REDIS_DB")
	}
}
