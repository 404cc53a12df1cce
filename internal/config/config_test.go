package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")

	// App
	t.Setenv("APP_ENV", "prod") // will normalize to "production"
	t.Setenv("WEBHOOK_SECRET", "whsec_abc")
	t.Setenv("MAX_BODY_BYTES", "2048")
	t.Setenv("CHECKOUT_MATCH_WINDOW", "12h")

	// Datastore
	t.Setenv("DB_DRIVER", "SQLITE") // case-insensitive
	t.Setenv("DB_PATH", "db.sqlite")

	// Attribution
	t.Setenv("ATTRIBUTION_URL", "https://attr.example.com")
	t.Setenv("ATTRIBUTION_TOKEN", "tok")
	t.Setenv("ATTRIBUTION_TIMEOUT", "3s")
	t.Setenv("ATTRIBUTION_CURRENCY", "usd") // will upper-case

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// App
	if cfg.Environment != "production" || cfg.WebhookSecret != "whsec_abc" ||
		cfg.MaxBodyBytes != 2048 || cfg.CheckoutMatchWindow != 12*time.Hour {
		t.Fatalf("app fields unexpected: %+v", cfg)
	}

	// Datastore
	if cfg.DB.Driver != "sqlite" || cfg.DB.DBPath != "db.sqlite" {
		t.Fatalf("db fields unexpected: %+v", cfg.DB)
	}

	// Attribution
	a := cfg.Attribution
	if a.URL != "https://attr.example.com" || a.Token != "tok" || a.Timeout != 3*time.Second || a.Currency != "USD" {
		t.Fatalf("attribution unexpected: %+v", a)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}

	// OTEL
	o := cfg.OTEL
	if !o.Enabled || o.Endpoint != "otel:4317" || o.Insecure || o.ServiceName != "svc" || o.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", o)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("defaults unexpected: %+v", cfg)
	}
	if cfg.Environment != "development" || cfg.WebhookSecret != "" {
		t.Fatalf("app defaults unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DBPath != "app.db" {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	if cfg.CheckoutMatchWindow != 24*time.Hour {
		t.Fatalf("window default unexpected: %v", cfg.CheckoutMatchWindow)
	}
	if cfg.Attribution.Currency != "BRL" || cfg.Attribution.Timeout != 5*time.Second {
		t.Fatalf("attribution defaults unexpected: %+v", cfg.Attribution)
	}
}

// --- validation failures ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"zero timeout", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts"},
		{"bad body cap", map[string]string{"MAX_BODY_BYTES": "0"}, "MAX_BODY_BYTES"},
		{"bad window", map[string]string{"CHECKOUT_MATCH_WINDOW": "-1h"}, "CHECKOUT_MATCH_WINDOW"},
		{"unknown driver", map[string]string{"DB_DRIVER": "postgres"}, "DB_DRIVER"},
		{"mysql without dsn", map[string]string{"DB_DRIVER": "mysql"}, "MYSQL_DSN"},
		{"bad burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"bad sampler", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
