package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
)

func TestFailoverRotatesToNextKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	k1 := env.add(t, "alice", "google", "s1", "one")
	k2 := env.add(t, "alice", "google", "s2", "two")
	env.add(t, "alice", "google", "s3", "three")
	if _, errSelect := env.engine.SelectProviderKey(ctx, "alice", k1.ID); errSelect != nil {
		t.Fatalf("select: %v", errSelect)
	}

	next, errFailover := env.engine.Failover(ctx, FailoverRequest{
		UserID: "alice", Provider: "google", FailedKeyID: k1.ID, ErrorCode: 429, ErrorMessage: "quota",
	})
	if errFailover != nil {
		t.Fatalf("failover: %v", errFailover)
	}
	if next == nil || next.ID != k2.ID || !next.IsSelected {
		t.Fatalf("expected k2 to be selected, got %+v", next)
	}

	failed, _ := env.store.GetProviderKey(ctx, "alice", k1.ID)
	if failed.IsSelected {
		t.Fatalf("expected failed key unselected")
	}
	if failed.DisabledUntil == nil {
		t.Fatalf("expected 429 to disable the failed key")
	}

	entries := env.actions(t, "alice")
	if entries[0].Action != credential.ActionSelect || entries[0].Description != "Selected key 'two' by automatic failover from key 'one'" {
		t.Fatalf("unexpected select entry %+v", entries[0])
	}
	if entries[1].Action != credential.ActionUnselect || entries[1].Description != "Key 'one' unselected due to error 429: quota" {
		t.Fatalf("unexpected unselect entry %+v", entries[1])
	}
}

func TestFailoverWrapsAroundAndSkipsDisabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	k1 := env.add(t, "alice", "xai", "s1", "one")
	k2 := env.add(t, "alice", "xai", "s2", "two")
	k3 := env.add(t, "alice", "xai", "s3", "three")
	if _, errSelect := env.engine.SelectProviderKey(ctx, "alice", k2.ID); errSelect != nil {
		t.Fatalf("select: %v", errSelect)
	}
	if errDisable := env.store.DisableProviderKeyUntil(ctx, "alice", k3.ID, env.now.Add(time.Hour)); errDisable != nil {
		t.Fatalf("disable: %v", errDisable)
	}

	next, errFailover := env.engine.Failover(ctx, FailoverRequest{
		UserID: "alice", Provider: "xai", FailedKeyID: k2.ID, ErrorCode: 500,
	})
	if errFailover != nil {
		t.Fatalf("failover: %v", errFailover)
	}
	if next == nil || next.ID != k1.ID {
		t.Fatalf("expected wrap around to k1, got %+v", next)
	}
	failed, _ := env.store.GetProviderKey(ctx, "alice", k2.ID)
	if failed.DisabledUntil != nil {
		t.Fatalf("expected non-429 failure to leave the key enabled")
	}
}

func TestFailoverExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	k1 := env.add(t, "alice", "gigachat", "s1", "only")
	if _, errSelect := env.engine.SelectProviderKey(ctx, "alice", k1.ID); errSelect != nil {
		t.Fatalf("select: %v", errSelect)
	}

	next, errFailover := env.engine.Failover(ctx, FailoverRequest{
		UserID: "alice", Provider: "gigachat", FailedKeyID: k1.ID, ErrorCode: 401,
	})
	if errFailover != nil {
		t.Fatalf("failover: %v", errFailover)
	}
	if next != nil {
		t.Fatalf("expected no replacement, got %+v", next)
	}
	entries := env.actions(t, "alice")
	if entries[0].Action != credential.ActionFailoverExhausted {
		t.Fatalf("expected FAILOVER_EXHAUSTED, got %s", entries[0].Action)
	}
	still, _ := env.store.GetProviderKey(ctx, "alice", k1.ID)
	if !still.IsSelected {
		t.Fatalf("expected selection to be left in place when exhausted")
	}
}

func TestFailoverUnknownKeyIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "alice", "google", "s1", "one")
	_, errFailover := env.engine.Failover(ctx, FailoverRequest{
		UserID: "alice", Provider: "google", FailedKeyID: "missing", ErrorCode: 429,
	})
	if !credential.IsKind(errFailover, credential.KindNotFound) {
		t.Fatalf("expected not found, got %v", errFailover)
	}
}

func TestNextAvailable(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)
	candidates := []models.ProviderKey{
		{ID: "a"},
		{ID: "b", DisabledUntil: &future},
		{ID: "c", DisabledUntil: &past},
	}
	cases := []struct {
		failed string
		want   string
		found  bool
	}{
		{"a", "c", true},
		{"c", "a", true},
		{"b", "c", true},
		{"zzz", "", false},
	}
	for _, tc := range cases {
		got, found := nextAvailable(candidates, tc.failed, now)
		if found != tc.found || got.ID != tc.want {
			t.Fatalf("nextAvailable(%s) = %q,%v want %q,%v", tc.failed, got.ID, found, tc.want, tc.found)
		}
	}
}
