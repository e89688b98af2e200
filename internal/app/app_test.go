package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/config"
)

func writeAppConfig(t *testing.T, body string) config.AppConfig {
	t.Helper()
	t.Setenv(config.EnvDBConnection, "")
	t.Setenv(config.EnvEncryptionKey, "")
	t.Setenv(config.EnvAuthJWTSecret, "")
	t.Setenv(config.EnvAuthPublicKeyFile, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return config.AppConfig{ConfigPath: path}
}

func TestMigrateCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	cfg := writeAppConfig(t, "database-dsn: \"file:"+dbPath+"\"\n")
	if err := Migrate(context.Background(), cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, errStat := os.Stat(dbPath); errStat != nil {
		t.Fatalf("expected database file: %v", errStat)
	}
}

func TestImportReadsCSVFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeAppConfig(t, "database-dsn: \"file:"+filepath.Join(dir, "import.db")+"\"\nencryption-key: app-test-key\n")
	csvPath := filepath.Join(dir, "keys.csv")
	if err := os.WriteFile(csvPath, []byte("first,secret-one\nsecond;secret-two\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	params := ImportParams{UserID: "alice", Provider: "pplx", File: csvPath}
	result, err := Import(context.Background(), cfg, params)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Total != 2 || result.Success != 2 || result.Failed != 0 {
		t.Fatalf("unexpected first import %+v", result)
	}

	result, err = Import(context.Background(), cfg, params)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if result.Success != 0 || result.Failed != 2 {
		t.Fatalf("expected duplicates to fail, got %+v", result)
	}
}

func TestImportRequiresEncryptionKey(t *testing.T) {
	dir := t.TempDir()
	cfg := writeAppConfig(t, "database-dsn: \"file:"+filepath.Join(dir, "nokey.db")+"\"\n")
	csvPath := filepath.Join(dir, "keys.csv")
	if err := os.WriteFile(csvPath, []byte("a,b\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if _, err := Import(context.Background(), cfg, ImportParams{UserID: "alice", Provider: "xai", File: csvPath}); err == nil {
		t.Fatalf("expected missing encryption key error")
	}
}

func TestImportMissingFile(t *testing.T) {
	cfg := writeAppConfig(t, "")
	if _, err := Import(context.Background(), cfg, ImportParams{UserID: "alice", Provider: "xai", File: "/does/not/exist.csv"}); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestLoadVerifierRequiresKey(t *testing.T) {
	cfg := writeAppConfig(t, "")
	if _, err := loadVerifier(cfg.ConfigPath); err == nil {
		t.Fatalf("expected error without a jwt secret or public key")
	}
	cfg = writeAppConfig(t, "auth:\n  jwt-secret: s3cret\n")
	if _, err := loadVerifier(cfg.ConfigPath); err != nil {
		t.Fatalf("expected verifier, got %v", err)
	}
}
