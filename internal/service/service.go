// Package service is the caller boundary of the credential manager.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/audit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/bulkimport"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/lifecycle"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/store"
)

// Service validates caller input, delegates to the engines and publishes change events.
type Service struct {
	store     store.KeyStore
	lifecycle *lifecycle.Engine
	importer  *bulkimport.Engine
	audit     audit.Log
	notifier  *credential.Notifier
	metrics   *observability.Metrics
}

// Config groups the dependencies of a Service.
type Config struct {
	Store     store.KeyStore
	Lifecycle *lifecycle.Engine
	Importer  *bulkimport.Engine
	Audit     audit.Log
	Notifier  *credential.Notifier
	Metrics   *observability.Metrics
}

// New constructs a Service.
func New(cfg Config) *Service {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = credential.NewNotifier()
	}
	return &Service{
		store:     cfg.Store,
		lifecycle: cfg.Lifecycle,
		importer:  cfg.Importer,
		audit:     cfg.Audit,
		notifier:  notifier,
		metrics:   cfg.Metrics,
	}
}

// Notifier returns the change event fan-out.
func (s *Service) Notifier() *credential.Notifier {
	return s.notifier
}

// Ping reports whether the key store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AddProviderKeyInput is the caller payload of AddProviderKey.
type AddProviderKeyInput struct {
	Provider string
	Secret   string
	Name     string
}

// AddProviderKey stores a new provider key for userID.
func (s *Service) AddProviderKey(ctx context.Context, userID string, in AddProviderKeyInput) (key credential.ProviderKey, err error) {
	defer s.observe("add_provider_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return credential.ProviderKey{}, err
	}
	provider, errProvider := requireProvider(in.Provider)
	if errProvider != nil {
		return credential.ProviderKey{}, errProvider
	}
	key, err = s.lifecycle.AddProviderKey(ctx, lifecycle.AddProviderKeyRequest{
		UserID:   userID,
		Provider: provider,
		Secret:   in.Secret,
		Name:     in.Name,
		Source:   lifecycle.SourceManual,
	})
	if err != nil {
		return credential.ProviderKey{}, err
	}
	s.publish(ctx, userID, credential.ScopeProviderKeys, provider)
	return key, nil
}

// ListProviderKeys lists userID's provider keys. An empty provider lists all of them.
func (s *Service) ListProviderKeys(ctx context.Context, userID, provider string) (keys []credential.ProviderKey, err error) {
	defer s.observe("list_provider_keys", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return nil, err
	}
	canonical := ""
	if strings.TrimSpace(provider) != "" {
		if canonical, err = requireProvider(provider); err != nil {
			return nil, err
		}
	}
	return s.lifecycle.ListProviderKeys(ctx, userID, canonical)
}

// GetProviderKey returns one provider key of userID.
func (s *Service) GetProviderKey(ctx context.Context, userID, id string) (key credential.ProviderKey, err error) {
	defer s.observe("get_provider_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return credential.ProviderKey{}, err
	}
	if id, err = requireID(id); err != nil {
		return credential.ProviderKey{}, err
	}
	return s.lifecycle.GetProviderKey(ctx, userID, id)
}

// SelectProviderKey makes id the selected key of its provider.
func (s *Service) SelectProviderKey(ctx context.Context, userID, id string) (key credential.ProviderKey, err error) {
	defer s.observe("select_provider_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return credential.ProviderKey{}, err
	}
	if id, err = requireID(id); err != nil {
		return credential.ProviderKey{}, err
	}
	if key, err = s.lifecycle.SelectProviderKey(ctx, userID, id); err != nil {
		return credential.ProviderKey{}, err
	}
	s.publish(ctx, userID, credential.ScopeProviderKeys, key.ProviderName)
	return key, nil
}

// UnselectProviderKey clears the selected flag of id.
func (s *Service) UnselectProviderKey(ctx context.Context, userID, id string) (key credential.ProviderKey, err error) {
	defer s.observe("unselect_provider_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return credential.ProviderKey{}, err
	}
	if id, err = requireID(id); err != nil {
		return credential.ProviderKey{}, err
	}
	if key, err = s.lifecycle.UnselectProviderKey(ctx, userID, id); err != nil {
		return credential.ProviderKey{}, err
	}
	s.publish(ctx, userID, credential.ScopeProviderKeys, key.ProviderName)
	return key, nil
}

// DeleteProviderKey removes id.
func (s *Service) DeleteProviderKey(ctx context.Context, userID, id string) (err error) {
	defer s.observe("delete_provider_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return err
	}
	if id, err = requireID(id); err != nil {
		return err
	}
	if err = s.lifecycle.DeleteProviderKey(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, userID, credential.ScopeProviderKeys, "")
	return nil
}

// DeleteAllProviderKeys removes every key of (userID, provider).
func (s *Service) DeleteAllProviderKeys(ctx context.Context, userID, provider string) (deleted int, err error) {
	defer s.observe("delete_all_provider_keys", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return 0, err
	}
	canonical, errProvider := requireProvider(provider)
	if errProvider != nil {
		return 0, errProvider
	}
	if deleted, err = s.lifecycle.DeleteAllProviderKeys(ctx, userID, canonical); err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.publish(ctx, userID, credential.ScopeProviderKeys, canonical)
	}
	return deleted, nil
}

// ImportProviderKeys adds every candidate row of content as a provider key.
func (s *Service) ImportProviderKeys(ctx context.Context, userID, provider, content string) (result credential.ImportBatchResult, err error) {
	defer s.observe("import_provider_keys", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return credential.ImportBatchResult{}, err
	}
	canonical, errProvider := requireProvider(provider)
	if errProvider != nil {
		return credential.ImportBatchResult{}, errProvider
	}
	if result, err = s.importer.Import(ctx, userID, canonical, content); err != nil {
		return credential.ImportBatchResult{}, err
	}
	if result.Success > 0 {
		s.publish(ctx, userID, credential.ScopeProviderKeys, canonical)
	}
	return result, nil
}

// CreateGatewayKey issues a gateway key. The full secret is returned only here.
func (s *Service) CreateGatewayKey(ctx context.Context, userID, name string) (created credential.CreatedGatewayKey, err error) {
	defer s.observe("create_gateway_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return credential.CreatedGatewayKey{}, err
	}
	if created, err = s.lifecycle.CreateGatewayKey(ctx, userID, name); err != nil {
		return credential.CreatedGatewayKey{}, err
	}
	s.publish(ctx, userID, credential.ScopeGatewayKeys, "")
	return created, nil
}

// ListGatewayKeys lists userID's gateway keys by prefix.
func (s *Service) ListGatewayKeys(ctx context.Context, userID string) (keys []credential.GatewayKey, err error) {
	defer s.observe("list_gateway_keys", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return nil, err
	}
	return s.lifecycle.ListGatewayKeys(ctx, userID)
}

// ActivateGatewayKey sets prefix active.
func (s *Service) ActivateGatewayKey(ctx context.Context, userID, prefix string) (key credential.GatewayKey, err error) {
	defer s.observe("activate_gateway_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return credential.GatewayKey{}, err
	}
	if key, err = s.lifecycle.ActivateGatewayKey(ctx, userID, strings.TrimSpace(prefix)); err != nil {
		return credential.GatewayKey{}, err
	}
	s.publish(ctx, userID, credential.ScopeGatewayKeys, "")
	return key, nil
}

// DeactivateGatewayKey sets prefix inactive.
func (s *Service) DeactivateGatewayKey(ctx context.Context, userID, prefix string) (key credential.GatewayKey, err error) {
	defer s.observe("deactivate_gateway_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return credential.GatewayKey{}, err
	}
	if key, err = s.lifecycle.DeactivateGatewayKey(ctx, userID, strings.TrimSpace(prefix)); err != nil {
		return credential.GatewayKey{}, err
	}
	s.publish(ctx, userID, credential.ScopeGatewayKeys, "")
	return key, nil
}

// DeleteGatewayKeyPermanently removes prefix for good.
func (s *Service) DeleteGatewayKeyPermanently(ctx context.Context, userID, prefix string) (err error) {
	defer s.observe("delete_gateway_key", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return err
	}
	if err = s.lifecycle.DeleteGatewayKeyPermanently(ctx, userID, strings.TrimSpace(prefix)); err != nil {
		return err
	}
	s.publish(ctx, userID, credential.ScopeGatewayKeys, "")
	return nil
}

// AuthenticateGatewayKey resolves a presented gateway key to its owner.
func (s *Service) AuthenticateGatewayKey(ctx context.Context, fullKey string) (principal credential.Principal, err error) {
	defer s.observe("authenticate_gateway_key", time.Now(), &err)
	return s.lifecycle.AuthenticateGatewayKey(ctx, fullKey)
}

// ProviderFailure is reported by the gateway when a selected provider key fails upstream.
type ProviderFailure struct {
	Provider     string
	FailedKeyID  string
	ErrorCode    int
	ErrorMessage string
}

// ReportProviderFailure rotates userID's selection away from the failed key.
// It returns the newly selected key, or nil when every other key is unavailable.
func (s *Service) ReportProviderFailure(ctx context.Context, userID string, failure ProviderFailure) (next *credential.ProviderKey, err error) {
	defer s.observe("report_provider_failure", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return nil, err
	}
	provider, errProvider := requireProvider(failure.Provider)
	if errProvider != nil {
		return nil, errProvider
	}
	keyID, errID := requireID(failure.FailedKeyID)
	if errID != nil {
		return nil, errID
	}
	if failure.ErrorCode < 100 || failure.ErrorCode > 599 {
		return nil, credential.ValidationError("error_code must be an HTTP status")
	}
	next, err = s.lifecycle.Failover(ctx, lifecycle.FailoverRequest{
		UserID:       userID,
		Provider:     provider,
		FailedKeyID:  keyID,
		ErrorCode:    failure.ErrorCode,
		ErrorMessage: strings.TrimSpace(failure.ErrorMessage),
	})
	if err != nil {
		return nil, err
	}
	if next != nil {
		s.publish(ctx, userID, credential.ScopeProviderKeys, provider)
	}
	return next, nil
}

// ListActivity returns userID's audit entries, newest first.
func (s *Service) ListActivity(ctx context.Context, userID string, limit int) (entries []credential.AuditEntry, err error) {
	defer s.observe("list_activity", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return nil, err
	}
	return s.audit.List(ctx, userID, limit)
}

// SyncGatewayUser records a dashboard login for userID.
func (s *Service) SyncGatewayUser(ctx context.Context, userID, email string) (err error) {
	defer s.observe("sync_gateway_user", time.Now(), &err)
	if userID, err = requireUser(userID); err != nil {
		return err
	}
	return s.store.UpsertGatewayUser(ctx, models.GatewayUser{
		Subject: userID,
		Email:   strings.TrimSpace(email),
	})
}

func (s *Service) publish(ctx context.Context, userID string, scope credential.Scope, provider string) {
	s.notifier.Publish(ctx, credential.ChangeEvent{UserID: userID, Scope: scope, Provider: provider})
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	outcome := observability.OutcomeSuccess
	if err != nil && *err != nil {
		outcome = string(credential.KindOf(*err))
		if outcome == "" {
			outcome = observability.OutcomeError
		}
	}
	s.metrics.RecordOperation(operation, outcome, time.Since(start))
}

func requireUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", credential.ValidationError("user id is required")
	}
	return userID, nil
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", credential.ValidationError("key id is required")
	}
	return id, nil
}

func requireProvider(provider string) (string, error) {
	canonical := credential.NormalizeProvider(provider)
	if canonical == "" {
		return "", credential.ValidationError("unknown provider %q", strings.TrimSpace(provider))
	}
	return canonical, nil
}
