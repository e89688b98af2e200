package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/config"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/db"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/http/api/dashboard"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/providerkeys"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/ratelimit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/security"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/service"
	internalsettings "github.com/router-for-me/CLIProxyAPIKeyManager/internal/settings"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// settingsRefreshInterval is how often the DB settings snapshot is reloaded.
const settingsRefreshInterval = 30 * time.Second

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ImportParams holds inputs for a CLI CSV import.
type ImportParams struct {
	UserID   string
	Provider string
	File     string
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conn, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(conn)
	return db.Migrate(conn)
}

// RunServer boots the dashboard API, the gateway config syncer and the settings refresher.
func RunServer(ctx context.Context, cfg config.AppConfig, portOverride int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	conn, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errReload := internalsettings.Reload(ctx, conn); errReload != nil {
		return errReload
	}

	sealer, err := loadSealer(configPath)
	if err != nil {
		return err
	}
	verifier, err := loadVerifier(configPath)
	if err != nil {
		return err
	}
	syncCfg, err := config.LoadGatewaySyncConfig(configPath)
	if err != nil {
		return err
	}
	serverCfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		serverCfg.Port = portOverride
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	svc, engine := service.Build(conn, sealer, metrics)
	syncer := providerkeys.NewSyncer(engine, syncCfg.ConfigPath, metrics)
	svc.Notifier().Subscribe(syncer.Subscriber())
	svc.Notifier().Subscribe(func(_ context.Context, event credential.ChangeEvent) {
		log.WithFields(log.Fields{
			"user_id":  event.UserID,
			"scope":    event.Scope,
			"provider": event.Provider,
		}).Debug("key list changed")
	})

	limiter := ratelimit.NewManager(ratelimit.CurrentPolicy, time.Now, nil)
	limiter.SetFallbackHook(metrics.RecordRateLimitFallback)
	defer func() {
		if errClose := limiter.Close(); errClose != nil {
			log.WithError(errClose).Warn("rate limit: close redis")
		}
	}()

	engineHTTP := gin.New()
	engineHTTP.Use(gin.Recovery())
	dashboard.RegisterDashboardRoutes(engineHTTP, dashboard.Deps{
		Service:  svc,
		Verifier: verifier,
		Limiter:  limiter,
		Metrics:  metrics,
		Gatherer: registry,
	})
	server := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           engineHTTP,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithField("addr", server.Addr).Info("starting key manager")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", errServe)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("http shutdown: %w", errShutdown)
		}
		return nil
	})
	group.Go(func() error {
		return syncer.Run(groupCtx)
	})
	group.Go(func() error {
		return internalsettings.RunRefresher(groupCtx, conn, settingsRefreshInterval)
	})

	errWait := group.Wait()
	if errWait != nil && !errors.Is(errWait, context.Canceled) {
		return errWait
	}
	log.Info("key manager stopped")
	return nil
}

// Import adds provider keys for a user from a CSV file, outside of the HTTP surface.
func Import(ctx context.Context, cfg config.AppConfig, params ImportParams) (credential.ImportBatchResult, error) {
	data, errRead := os.ReadFile(strings.TrimSpace(params.File))
	if errRead != nil {
		return credential.ImportBatchResult{}, fmt.Errorf("read import file: %w", errRead)
	}

	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	conn, err := openDatabase(ctx, cfg)
	if err != nil {
		return credential.ImportBatchResult{}, err
	}
	defer db.Close(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return credential.ImportBatchResult{}, errMigrate
	}
	if errReload := internalsettings.Reload(ctx, conn); errReload != nil {
		return credential.ImportBatchResult{}, errReload
	}
	sealer, err := loadSealer(configPath)
	if err != nil {
		return credential.ImportBatchResult{}, err
	}

	svc, _ := service.Build(conn, sealer, nil)
	return svc.ImportProviderKeys(ctx, params.UserID, params.Provider, string(data))
}

func openDatabase(ctx context.Context, cfg config.AppConfig) (*gorm.DB, error) {
	if errEnv := config.LoadDotEnv(); errEnv != nil {
		return nil, errEnv
	}
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return nil, err
	}
	return db.OpenWithRetry(ctx, dsn)
}

func loadSealer(configPath string) (*security.SecretCipher, error) {
	key, err := config.LoadEncryptionKey(configPath)
	if err != nil {
		return nil, err
	}
	return security.NewSecretCipher(key)
}

func loadVerifier(configPath string) (*security.TokenVerifier, error) {
	authCfg, err := config.LoadAuthConfig(configPath)
	if err != nil {
		return nil, err
	}
	verifierCfg := security.TokenVerifierConfig{
		HMACSecret:   authCfg.JWTSecret,
		Issuer:       authCfg.Issuer,
		Audience:     authCfg.Audience,
		SubjectClaim: authCfg.SubjectClaim,
	}
	if authCfg.PublicKeyFile != "" {
		data, errRead := os.ReadFile(authCfg.PublicKeyFile)
		if errRead != nil {
			return nil, fmt.Errorf("read auth public key: %w", errRead)
		}
		publicKey, errParse := security.ParsePublicKeyPEM(data)
		if errParse != nil {
			return nil, errParse
		}
		verifierCfg.PublicKey = publicKey
	}
	return security.NewTokenVerifier(verifierCfg)
}
