package credential

import "time"

// Audit actions.
const (
	ActionAdd               = "ADD"
	ActionDelete            = "DELETE"
	ActionSelect            = "SELECT"
	ActionUnselect          = "UNSELECT"
	ActionActivate          = "ACTIVATE"
	ActionDeactivate        = "DEACTIVATE"
	ActionFailoverExhausted = "FAILOVER_EXHAUSTED"
	ActionError             = "ERROR"
)

// ProviderKey is the read model of a stored provider key. It never carries the secret.
type ProviderKey struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ProviderName  string     `json:"provider_name"`
	Name          string     `json:"name"`
	IsSelected    bool       `json:"is_selected"`
	DisabledUntil *time.Time `json:"disabled_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// GatewayKey is the read model of a gateway key. Only the prefix is exposed.
type GatewayKey struct {
	KeyPrefix  string     `json:"key_prefix"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// CreatedGatewayKey is returned once, when a gateway key is issued.
type CreatedGatewayKey struct {
	GatewayKey
	FullSecret string `json:"full_api_key"`
}

// AuditEntry is the read model of an audit log record.
type AuditEntry struct {
	ID           uint64         `json:"id"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	ProviderName string         `json:"provider_name"`
	KeyID        *string        `json:"key_id"`
	Description  string         `json:"description"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ImportBatchResult summarizes one CSV import.
type ImportBatchResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Principal identifies the owner of an authenticated gateway key.
type Principal struct {
	UserID    string `json:"user_id"`
	KeyPrefix string `json:"key_prefix"`
}

// ResolvedKey is a selected provider key with its decrypted secret.
// It exists only for gateway configuration rendering.
type ResolvedKey struct {
	ID           string
	UserID       string
	ProviderName string
	Name         string
	Secret       string
}
