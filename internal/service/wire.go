package service

import (
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/audit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/bulkimport"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/lifecycle"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/store"
	"gorm.io/gorm"
)

// Build wires a Service and its engines on top of a migrated database connection.
func Build(conn *gorm.DB, sealer lifecycle.SecretSealer, metrics *observability.Metrics, opts ...lifecycle.Option) (*Service, *lifecycle.Engine) {
	keyStore := store.NewGormKeyStore(conn)
	auditLog := audit.NewGormLog(conn)
	engine := lifecycle.NewEngine(keyStore, auditLog, sealer, append([]lifecycle.Option{lifecycle.WithMetrics(metrics)}, opts...)...)
	importer := bulkimport.NewEngine(engine, keyStore, auditLog, metrics)
	svc := New(Config{
		Store:     keyStore,
		Lifecycle: engine,
		Importer:  importer,
		Audit:     auditLog,
		Metrics:   metrics,
	})
	return svc, engine
}
