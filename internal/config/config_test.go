package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadStockDefaults(t *testing.T) {
	t.Setenv("DEFAULT_STOCK_RATIO", "")
	t.Setenv("OVERSELL_POLICY", "")

	cfg := Load()
	if cfg.Stock.DefaultRatio != 0.8 {
		t.Fatalf("expected default ratio 0.8, got %v", cfg.Stock.DefaultRatio)
	}
	if cfg.Stock.OversellPolicy != "clamp" {
		t.Fatalf("expected clamp policy by default, got %q", cfg.Stock.OversellPolicy)
	}
}

func TestLoadRejectsOutOfRangeRatio(t *testing.T) {
	t.Setenv("DEFAULT_STOCK_RATIO", "1.7")
	if got := Load().Stock.DefaultRatio; got != 0.8 {
		t.Fatalf("expected fallback ratio 0.8, got %v", got)
	}

	t.Setenv("DEFAULT_STOCK_RATIO", "0.6")
	if got := Load().Stock.DefaultRatio; got != 0.6 {
		t.Fatalf("expected ratio 0.6, got %v", got)
	}
}

func TestLoadKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	cfg := Load()
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "a:9092" || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %#v", cfg.Kafka.Brokers)
	}
	if !cfg.Kafka.Enabled() {
		t.Fatalf("expected kafka to be enabled")
	}

	t.Setenv("KAFKA_BROKERS", "")
	if Load().Kafka.Enabled() {
		t.Fatalf("expected kafka disabled without brokers")
	}
}

func TestLoadSMTPFromFallsBackToUsername(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USERNAME", "alerts@example.com")
	t.Setenv("SMTP_FROM", "")

	cfg := Load()
	if !cfg.SMTP.Enabled() || cfg.SMTP.From != "alerts@example.com" {
		t.Fatalf("unexpected smtp config %+v", cfg.SMTP)
	}
	if cfg.SMTP.Port != 587 {
		t.Fatalf("expected default port 587, got %d", cfg.SMTP.Port)
	}
}
