package bulkimport

import (
	"context"
	"fmt"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/audit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/lifecycle"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	internalsettings "github.com/router-for-me/CLIProxyAPIKeyManager/internal/settings"
	log "github.com/sirupsen/logrus"
)

// KeyAdder adds a single provider key.
type KeyAdder interface {
	AddProviderKey(ctx context.Context, req lifecycle.AddProviderKeyRequest) (credential.ProviderKey, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Engine imports provider keys one row at a time and writes a single summary audit entry per batch.
type Engine struct {
	adder   KeyAdder
	pinger  Pinger
	audit   audit.Log
	metrics *observability.Metrics
	maxRows func() int
}

// NewEngine constructs an Engine whose row bound follows the IMPORT_MAX_ROWS setting.
func NewEngine(adder KeyAdder, pinger Pinger, auditLog audit.Log, metrics *observability.Metrics) *Engine {
	return &Engine{
		adder:   adder,
		pinger:  pinger,
		audit:   auditLog,
		metrics: metrics,
		maxRows: func() int {
			return internalsettings.IntValue(internalsettings.ImportMaxRowsKey, internalsettings.DefaultImportMaxRows)
		},
	}
}

// SetMaxRows overrides the row bound. Zero or less disables the bound.
func (e *Engine) SetMaxRows(fn func() int) {
	if e != nil && fn != nil {
		e.maxRows = fn
	}
}

// Import parses content and adds each candidate row for (userID, provider) in file order.
// Per-row failures, including duplicates, are counted and do not stop the batch.
func (e *Engine) Import(ctx context.Context, userID, provider, content string) (credential.ImportBatchResult, error) {
	canonical := credential.NormalizeProvider(provider)
	if canonical == "" {
		return credential.ImportBatchResult{}, credential.ValidationError("unknown provider %q", provider)
	}
	if e.pinger != nil {
		if errPing := e.pinger.Ping(ctx); errPing != nil {
			if credential.KindOf(errPing) == "" {
				errPing = credential.StoreUnavailableError(errPing, "key store unreachable")
			}
			return credential.ImportBatchResult{}, errPing
		}
	}

	rows := Parse(content)
	if limit := e.maxRows(); limit > 0 && len(rows) > limit {
		return credential.ImportBatchResult{}, credential.ValidationError("import exceeds %d rows", limit)
	}

	var result credential.ImportBatchResult
	for _, row := range rows {
		switch row.Kind {
		case RowSkipped:
			continue
		case RowMalformed:
			result.Total++
			result.Failed++
			continue
		}
		result.Total++
		_, errAdd := e.adder.AddProviderKey(ctx, lifecycle.AddProviderKeyRequest{
			UserID:   userID,
			Provider: canonical,
			Secret:   row.Secret,
			Name:     row.Description,
			Source:   lifecycle.SourceImport,
		})
		if errAdd != nil {
			result.Failed++
			log.WithFields(log.Fields{
				"user_id":  userID,
				"provider": canonical,
				"line":     row.Line,
				"kind":     credential.KindOf(errAdd),
			}).Debug("bulk import: row rejected")
			continue
		}
		result.Success++
	}

	e.metrics.RecordImportRows(canonical, result.Success, result.Failed)
	if result.Total > 0 {
		e.recordBatch(ctx, userID, canonical, result)
	}
	return result, nil
}

func (e *Engine) recordBatch(ctx context.Context, userID, provider string, result credential.ImportBatchResult) {
	if e.audit == nil {
		return
	}
	entry := audit.Entry{
		UserID:       userID,
		Action:       credential.ActionAdd,
		ProviderName: provider,
		Description:  fmt.Sprintf("Imported %d of %d keys via CSV", result.Success, result.Total),
		Details: map[string]any{
			"total":   result.Total,
			"success": result.Success,
			"failed":  result.Failed,
		},
	}
	if errAppend := e.audit.Append(ctx, entry); errAppend != nil {
		e.metrics.RecordAuditWriteFailure()
		log.WithError(errAppend).WithFields(log.Fields{
			"user_id":  userID,
			"provider": provider,
		}).Error("audit: append failed")
	}
}
