package providerkeys

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	sdkconfig "github.com/router-for-me/CLIProxyAPI/v6/sdk/config"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	log "github.com/sirupsen/logrus"
)

// defaultResyncInterval rewrites the config periodically so expired failover windows are picked up.
const defaultResyncInterval = 5 * time.Minute

// SecretSource lists the selected provider keys with their decrypted secrets.
type SecretSource interface {
	SelectedSecrets(ctx context.Context) ([]credential.ResolvedKey, error)
}

// Syncer keeps the gateway config file in step with the selected provider keys.
type Syncer struct {
	source     SecretSource
	configPath string
	metrics    *observability.Metrics
	interval   time.Duration
	trigger    chan struct{}

	mu       sync.Mutex
	lastHash string
}

// NewSyncer constructs a Syncer writing to configPath. An empty path disables syncing.
func NewSyncer(source SecretSource, configPath string, metrics *observability.Metrics) *Syncer {
	return &Syncer{
		source:     source,
		configPath: strings.TrimSpace(configPath),
		metrics:    metrics,
		interval:   defaultResyncInterval,
		trigger:    make(chan struct{}, 1),
	}
}

// Subscriber returns a change event handler that schedules a sync for provider key changes.
func (s *Syncer) Subscriber() credential.Subscriber {
	return func(_ context.Context, event credential.ChangeEvent) {
		if event.Scope == credential.ScopeProviderKeys {
			s.Trigger()
		}
	}
}

// Trigger schedules a sync. Triggers arriving while one is pending are coalesced.
func (s *Syncer) Trigger() {
	if s == nil {
		return
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run syncs on start, on every trigger and on every resync tick until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	if s == nil || s.configPath == "" {
		log.Info("gateway config sync disabled: no config path")
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.trigger:
			s.runOnce(ctx)
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Syncer) runOnce(ctx context.Context) {
	if errSync := s.SyncOnce(ctx); errSync != nil && !errors.Is(errSync, context.Canceled) {
		log.WithError(errSync).Warn("gateway config sync failed")
	}
}

// SyncOnce renders the current selection into the config file. It is a no-op when the
// config path is unset, the file does not exist, or the selection has not changed.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if s == nil || s.configPath == "" || s.source == nil {
		return nil
	}
	if _, errStat := os.Stat(s.configPath); errStat != nil {
		if os.IsNotExist(errStat) {
			log.WithField("path", s.configPath).Debug("gateway config sync: config file missing, skipping")
			return nil
		}
		s.metrics.RecordConfigSync(observability.OutcomeError)
		return errStat
	}

	keys, errResolve := s.source.SelectedSecrets(ctx)
	if errResolve != nil {
		s.metrics.RecordConfigSync(observability.OutcomeError)
		return errResolve
	}
	hash := fingerprint(keys)

	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.lastHash {
		return nil
	}

	cfg, errLoad := sdkconfig.LoadConfig(s.configPath)
	if errLoad != nil {
		s.metrics.RecordConfigSync(observability.OutcomeError)
		return errLoad
	}
	ApplyToConfig(cfg, keys)
	if errSave := sdkconfig.SaveConfigPreserveComments(s.configPath, cfg); errSave != nil {
		s.metrics.RecordConfigSync(observability.OutcomeError)
		return errSave
	}
	s.lastHash = hash
	s.metrics.RecordConfigSync(observability.OutcomeSuccess)
	log.WithField("keys", len(keys)).Info("gateway config synced")
	return nil
}
