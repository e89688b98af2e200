package bulkimport

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/audit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/db"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/lifecycle"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/security"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/store"
)

type importEnv struct {
	importer  *Engine
	lifecycle *lifecycle.Engine
	audit     *audit.GormLog
	store     *store.GormKeyStore
}

func newImportEnv(t *testing.T) *importEnv {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "import-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() { db.Close(conn) })
	sealer, errSealer := security.NewSecretCipher("import-test-master-key")
	if errSealer != nil {
		t.Fatalf("cipher: %v", errSealer)
	}
	keyStore := store.NewGormKeyStore(conn)
	auditLog := audit.NewGormLog(conn)
	engine := lifecycle.NewEngine(keyStore, auditLog, sealer)
	return &importEnv{
		importer:  NewEngine(engine, keyStore, auditLog, nil),
		lifecycle: engine,
		audit:     auditLog,
		store:     keyStore,
	}
}

func TestImportWorkedExample(t *testing.T) {
	env := newImportEnv(t)
	ctx := context.Background()
	if _, errAdd := env.lifecycle.AddProviderKey(ctx, lifecycle.AddProviderKeyRequest{
		UserID: "alice", Provider: "google", Secret: "secretB",
	}); errAdd != nil {
		t.Fatalf("seed: %v", errAdd)
	}

	result, errImport := env.importer.Import(ctx, "alice", "google", "desc1,secretA\n,secretB\n,\nbadrow\n")
	if errImport != nil {
		t.Fatalf("import: %v", errImport)
	}
	if result.Total != 3 || result.Success != 1 || result.Failed != 2 {
		t.Fatalf("expected total=3 success=1 failed=2, got %+v", result)
	}

	entries, _ := env.audit.List(ctx, "alice", 10)
	if len(entries) != 2 {
		t.Fatalf("expected seed ADD plus one batch ADD, got %d entries", len(entries))
	}
	batch := entries[0]
	if batch.Action != credential.ActionAdd || batch.KeyID != nil {
		t.Fatalf("unexpected batch entry %+v", batch)
	}
	if batch.Description != "Imported 1 of 3 keys via CSV" {
		t.Fatalf("unexpected description %q", batch.Description)
	}
	if batch.Details["failed"] != float64(2) {
		t.Fatalf("expected failed=2 in details, got %v", batch.Details)
	}

	keys, _ := env.store.ListProviderKeys(ctx, "alice", "google")
	if len(keys) != 2 {
		t.Fatalf("expected 2 stored keys, got %d", len(keys))
	}
	for _, key := range keys {
		if key.IsSelected {
			t.Fatalf("expected imported keys to be unselected")
		}
		if key.Name == "desc1" && strings.Contains(key.SecretEncrypted, "secretA") {
			t.Fatalf("imported secret stored in clear text")
		}
	}
}

func TestImportNothingWritesNoAudit(t *testing.T) {
	env := newImportEnv(t)
	ctx := context.Background()
	result, errImport := env.importer.Import(ctx, "alice", "xai", ",\n\n desc ;\n")
	if errImport != nil {
		t.Fatalf("import: %v", errImport)
	}
	if result.Total != 0 {
		t.Fatalf("expected empty batch, got %+v", result)
	}
	if entries, _ := env.audit.List(ctx, "alice", 10); len(entries) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(entries))
	}
}

func TestImportDuplicatesWithinBatch(t *testing.T) {
	env := newImportEnv(t)
	result, errImport := env.importer.Import(context.Background(), "alice", "perplexity", "a,k1\nb,k1\nc;k2\nd\tk3\n")
	if errImport != nil {
		t.Fatalf("import: %v", errImport)
	}
	if result.Total != 4 || result.Success != 3 || result.Failed != 1 {
		t.Fatalf("expected total=4 success=3 failed=1, got %+v", result)
	}
}

func TestImportRejectsUnknownProvider(t *testing.T) {
	env := newImportEnv(t)
	_, errImport := env.importer.Import(context.Background(), "alice", "openai", "a,k1\n")
	if !credential.IsKind(errImport, credential.KindValidation) {
		t.Fatalf("expected validation error, got %v", errImport)
	}
}

func TestImportEnforcesMaxRows(t *testing.T) {
	env := newImportEnv(t)
	env.importer.SetMaxRows(func() int { return 2 })
	_, errImport := env.importer.Import(context.Background(), "alice", "google", "a,k1\nb,k2\nc,k3\n")
	if !credential.IsKind(errImport, credential.KindValidation) {
		t.Fatalf("expected validation error, got %v", errImport)
	}
	keys, _ := env.store.ListProviderKeys(context.Background(), "alice", "google")
	if len(keys) != 0 {
		t.Fatalf("expected no keys stored when over the bound, got %d", len(keys))
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestImportStoreUnavailableBeforeBatch(t *testing.T) {
	env := newImportEnv(t)
	importer := NewEngine(env.lifecycle, downPinger{}, env.audit, nil)
	_, errImport := importer.Import(context.Background(), "alice", "google", "a,k1\n")
	if !credential.IsKind(errImport, credential.KindStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", errImport)
	}
	keys, _ := env.store.ListProviderKeys(context.Background(), "alice", "google")
	if len(keys) != 0 {
		t.Fatalf("expected batch not to start, got %d keys", len(keys))
	}
}
