package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "FRONTEND_URL", "CORS_ORIGINS", "CREDITS_PER_GENERATION", "MAX_UPLOAD_BYTES"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" || cfg.CreditsPerGeneration != 3 || cfg.FrontendURL != "http://localhost:3000" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.UsesSQLite() || cfg.SQLitePath() != "credits.db" {
		t.Fatalf("default database should be sqlite, got %q", cfg.DatabaseURL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/credits")
	t.Setenv("FRONTEND_URL", "https://app.example/")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CREDITS_PER_GENERATION", "5")
	t.Setenv("MAX_UPLOAD_BYTES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:9090" || cfg.CreditsPerGeneration != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.UsesSQLite() {
		t.Fatal("postgres url detected as sqlite")
	}
	if cfg.FrontendURL != "https://app.example" {
		t.Fatalf("frontend url = %q", cfg.FrontendURL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CREDITS_PER_GENERATION", "abc")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
	t.Setenv("CREDITS_PER_GENERATION", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero cost")
	}
}
