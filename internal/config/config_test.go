package config

import (
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(envMap(nil))

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.SessionTTL != 168*time.Hour {
		t.Errorf("SessionTTL = %v, want 168h", cfg.SessionTTL)
	}
	if cfg.UploadDir != "uploads" || cfg.MaxAudioSizeMB != 50 || cfg.MaxImageSizeMB != 5 {
		t.Errorf("upload defaults = %q %d %d", cfg.UploadDir, cfg.MaxAudioSizeMB, cfg.MaxImageSizeMB)
	}
	if cfg.StorageDriver != "memory" {
		t.Errorf("StorageDriver = %q, want memory", cfg.StorageDriver)
	}
	if !cfg.ExposeResetCode {
		t.Error("reset token should be exposed outside production")
	}
	if cfg.Redis.Addr() != "" {
		t.Errorf("Redis.Addr() = %q, want empty", cfg.Redis.Addr())
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("Kafka.Brokers = %v, want none", cfg.Kafka.Brokers)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg := FromEnv(envMap(map[string]string{
		"ENV":               "production",
		"SESSION_TTL":       "2h",
		"MAX_AUDIO_SIZE_MB": "10",
		"CORS_ORIGINS":      "https://a.example, https://b.example,",
		"STORAGE_DRIVER":    "MySQL",
		"REDIS_HOST":        "cache",
		"KAFKA_BROKERS":     "k1:9092,k2:9092",
	}))

	if !cfg.Production() {
		t.Error("Production() = false")
	}
	if cfg.ExposeResetCode {
		t.Error("reset token must not be exposed in production by default")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.MaxAudioSizeMB != 10 {
		t.Errorf("MaxAudioSizeMB = %d", cfg.MaxAudioSizeMB)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.StorageDriver != "mysql" {
		t.Errorf("StorageDriver = %q", cfg.StorageDriver)
	}
	if cfg.Redis.Addr() != "cache:6379" {
		t.Errorf("Redis.Addr() = %q", cfg.Redis.Addr())
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestFromEnvIgnoresBadValues(t *testing.T) {
	cfg := FromEnv(envMap(map[string]string{
		"SESSION_TTL":           "soon",
		"RESET_RATE_PER_MINUTE": "-3",
		"EXPOSE_RESET_TOKEN":    "maybe",
	}))
	if cfg.SessionTTL != 168*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.ResetPerMinute != 5 {
		t.Errorf("ResetPerMinute = %d", cfg.ResetPerMinute)
	}
	if !cfg.ExposeResetCode {
		t.Error("ExposeResetCode should fall back to the environment default")
	}
}

func TestValidateJWTSecret(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		ok   bool
	}{
		{"development default", nil, true},
		{"production default", map[string]string{"ENV": "production"}, false},
		{"production short", map[string]string{"ENV": "production", "JWT_SECRET": "short"}, false},
		{"production set", map[string]string{"ENV": "production", "JWT_SECRET": "a-long-random-production-secret"}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := FromEnv(envMap(tc.env)).Validate()
			if (err == nil) != tc.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}
