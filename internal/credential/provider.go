package credential

import (
	"sort"
	"strings"
)

// Canonical provider identifiers.
const (
	ProviderGoogle     = "google"
	ProviderXAI        = "xai"
	ProviderGigaChat   = "gigachat"
	ProviderPerplexity = "perplexity"

	// ProviderGateway tags audit entries about gateway keys.
	ProviderGateway = "gateway"
)

// providerAliases maps provider inputs to canonical identifiers.
var providerAliases = map[string]string{
	"google":     ProviderGoogle,
	"gemini":     ProviderGoogle,
	"xai":        ProviderXAI,
	"x-ai":       ProviderXAI,
	"x.ai":       ProviderXAI,
	"grok":       ProviderXAI,
	"gigachat":   ProviderGigaChat,
	"sber":       ProviderGigaChat,
	"perplexity": ProviderPerplexity,
	"pplx":       ProviderPerplexity,
	"sonar":      ProviderPerplexity,
}

// NormalizeProvider returns the canonical provider name, or "" if unknown.
func NormalizeProvider(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return ""
	}
	return providerAliases[trimmed]
}

// Providers lists the canonical provider names in stable order.
func Providers() []string {
	seen := make(map[string]struct{}, len(providerAliases))
	out := make([]string, 0, 4)
	for _, canonical := range providerAliases {
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}
