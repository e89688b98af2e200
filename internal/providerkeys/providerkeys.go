// Package providerkeys renders selected provider keys into the CLIProxyAPI gateway config.
package providerkeys

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	sdkconfig "github.com/router-for-me/CLIProxyAPI/v6/sdk/config"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
)

// openAIUpstream describes a provider served through an OpenAI compatible endpoint.
type openAIUpstream struct {
	name    string
	baseURL string
}

var openAIUpstreams = map[string]openAIUpstream{
	credential.ProviderXAI:        {name: "xai", baseURL: "https://api.x.ai/v1"},
	credential.ProviderPerplexity: {name: "perplexity", baseURL: "https://api.perplexity.ai"},
	credential.ProviderGigaChat:   {name: "gigachat", baseURL: "https://gigachat.devices.sberbank.ru/api/v1"},
}

// UserPrefix is the model prefix that routes a gateway request to one user's keys.
func UserPrefix(userID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(userID)))
	return "u" + hex.EncodeToString(sum[:])[:8]
}

// ApplyToConfig replaces the Gemini and OpenAI compatibility sections of cfg with keys.
func ApplyToConfig(cfg *sdkconfig.Config, keys []credential.ResolvedKey) {
	if cfg == nil {
		return
	}

	sorted := append([]credential.ResolvedKey(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UserID != sorted[j].UserID {
			return sorted[i].UserID < sorted[j].UserID
		}
		return sorted[i].ProviderName < sorted[j].ProviderName
	})

	geminiKeys := make([]sdkconfig.GeminiKey, 0)
	openAIProviders := make([]sdkconfig.OpenAICompatibility, 0)

	for i := range sorted {
		key := &sorted[i]
		secret := strings.TrimSpace(key.Secret)
		if secret == "" {
			continue
		}
		prefix := UserPrefix(key.UserID)
		if key.ProviderName == credential.ProviderGoogle {
			geminiKeys = append(geminiKeys, sdkconfig.GeminiKey{
				APIKey: secret,
				Prefix: prefix,
			})
			continue
		}
		upstream, ok := openAIUpstreams[key.ProviderName]
		if !ok {
			continue
		}
		openAIProviders = append(openAIProviders, sdkconfig.OpenAICompatibility{
			Name:    upstream.name + "-" + prefix,
			Prefix:  prefix,
			BaseURL: upstream.baseURL,
			APIKeyEntries: []sdkconfig.OpenAICompatibilityAPIKey{
				{APIKey: secret},
			},
		})
	}

	cfg.GeminiKey = geminiKeys
	cfg.OpenAICompatibility = openAIProviders

	cfg.SanitizeGeminiKeys()
	cfg.SanitizeOpenAICompatibility()
}

// fingerprint hashes the rendered key set so unchanged selections skip the config rewrite.
func fingerprint(keys []credential.ResolvedKey) string {
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key.UserID+"\x00"+key.ProviderName+"\x00"+key.ID+"\x00"+key.Secret)
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
