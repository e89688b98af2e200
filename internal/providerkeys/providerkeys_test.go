package providerkeys

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdkconfig "github.com/router-for-me/CLIProxyAPI/v6/sdk/config"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
)

func TestApplyToConfig_Gemini(t *testing.T) {
	keys := []credential.ResolvedKey{
		{ID: "k1", UserID: "alice", ProviderName: credential.ProviderGoogle, Secret: " AIza-1 "},
	}

	cfg := &sdkconfig.Config{}
	ApplyToConfig(cfg, keys)

	if len(cfg.GeminiKey) != 1 {
		t.Fatalf("expected 1 gemini key, got %d", len(cfg.GeminiKey))
	}
	if cfg.GeminiKey[0].APIKey != "AIza-1" {
		t.Fatalf("expected api key=AIza-1, got %q", cfg.GeminiKey[0].APIKey)
	}
	if cfg.GeminiKey[0].Prefix != UserPrefix("alice") {
		t.Fatalf("expected user prefix, got %q", cfg.GeminiKey[0].Prefix)
	}
}

func TestApplyToConfig_OpenAICompatibility(t *testing.T) {
	keys := []credential.ResolvedKey{
		{ID: "k2", UserID: "bob", ProviderName: credential.ProviderXAI, Secret: "xai-1"},
		{ID: "k3", UserID: "alice", ProviderName: credential.ProviderPerplexity, Secret: "pplx-1"},
		{ID: "k4", UserID: "alice", ProviderName: credential.ProviderGigaChat, Secret: ""},
	}

	cfg := &sdkconfig.Config{}
	ApplyToConfig(cfg, keys)

	if len(cfg.OpenAICompatibility) != 2 {
		t.Fatalf("expected 2 openai compatibility providers, got %d", len(cfg.OpenAICompatibility))
	}
	first := cfg.OpenAICompatibility[0]
	if first.BaseURL != "https://api.perplexity.ai" || first.Prefix != UserPrefix("alice") {
		t.Fatalf("unexpected first provider %+v", first)
	}
	if len(first.APIKeyEntries) != 1 || first.APIKeyEntries[0].APIKey != "pplx-1" {
		t.Fatalf("unexpected key entries %+v", first.APIKeyEntries)
	}
	if !strings.HasPrefix(cfg.OpenAICompatibility[1].Name, "xai-") {
		t.Fatalf("expected xai provider second, got %q", cfg.OpenAICompatibility[1].Name)
	}
}

func TestUserPrefix(t *testing.T) {
	prefix := UserPrefix("alice")
	if len(prefix) != 9 || prefix[0] != 'u' {
		t.Fatalf("unexpected prefix %q", prefix)
	}
	if prefix != UserPrefix(" alice ") {
		t.Fatalf("expected prefix to ignore surrounding space")
	}
	if prefix == UserPrefix("bob") {
		t.Fatalf("expected distinct prefixes per user")
	}
}

type staticSource struct {
	keys  []credential.ResolvedKey
	calls int
}

func (s *staticSource) SelectedSecrets(context.Context) ([]credential.ResolvedKey, error) {
	s.calls++
	return s.keys, nil
}

func TestSyncOnceSkipsMissingConfig(t *testing.T) {
	source := &staticSource{}
	syncer := NewSyncer(source, filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if errSync := syncer.SyncOnce(context.Background()); errSync != nil {
		t.Fatalf("expected missing config to be skipped, got %v", errSync)
	}
	if source.calls != 0 {
		t.Fatalf("expected no key resolution for a missing config")
	}

	disabled := NewSyncer(source, "", nil)
	if errRun := disabled.Run(context.Background()); errRun != nil {
		t.Fatalf("expected disabled syncer to return nil, got %v", errRun)
	}
}

func TestSyncOnceWritesSelectedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte("# gateway config\nport: 8317\n"), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	source := &staticSource{keys: []credential.ResolvedKey{
		{ID: "k1", UserID: "alice", ProviderName: credential.ProviderGoogle, Secret: "AIza-1"},
	}}
	syncer := NewSyncer(source, path, nil)

	if errSync := syncer.SyncOnce(context.Background()); errSync != nil {
		t.Fatalf("sync: %v", errSync)
	}
	cfg, errLoad := sdkconfig.LoadConfig(path)
	if errLoad != nil {
		t.Fatalf("reload config: %v", errLoad)
	}
	if len(cfg.GeminiKey) != 1 || cfg.GeminiKey[0].APIKey != "AIza-1" {
		t.Fatalf("expected synced gemini key, got %+v", cfg.GeminiKey)
	}

	info, _ := os.Stat(path)
	if errSync := syncer.SyncOnce(context.Background()); errSync != nil {
		t.Fatalf("second sync: %v", errSync)
	}
	again, _ := os.Stat(path)
	if !again.ModTime().Equal(info.ModTime()) {
		t.Fatalf("expected unchanged selection to skip the rewrite")
	}
}

func TestSyncerCoalescesTriggers(t *testing.T) {
	syncer := NewSyncer(&staticSource{}, "", nil)
	for i := 0; i < 5; i++ {
		syncer.Trigger()
	}
	if len(syncer.trigger) != 1 {
		t.Fatalf("expected one pending trigger, got %d", len(syncer.trigger))
	}
	syncer.Subscriber()(context.Background(), credential.ChangeEvent{Scope: credential.ScopeGatewayKeys})
	if len(syncer.trigger) != 1 {
		t.Fatalf("expected gateway key events to be ignored")
	}
}
