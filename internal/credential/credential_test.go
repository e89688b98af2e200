package credential

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeProviderAliases(t *testing.T) {
	cases := map[string]string{
		"google":      ProviderGoogle,
		" Gemini ":    ProviderGoogle,
		"GROK":        ProviderXAI,
		"x.ai":        ProviderXAI,
		"sber":        ProviderGigaChat,
		"pplx":        ProviderPerplexity,
		"sonar":       ProviderPerplexity,
		"":            "",
		"openai":      "",
		"gateway":     "",
		"not-a-thing": "",
	}
	for input, want := range cases {
		if got := NormalizeProvider(input); got != want {
			t.Fatalf("NormalizeProvider(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestProvidersListsCanonicalNames(t *testing.T) {
	got := Providers()
	want := []string{ProviderGigaChat, ProviderGoogle, ProviderPerplexity, ProviderXAI}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestKindOfWrappedErrors(t *testing.T) {
	base := ConflictError(errors.New("unique violation"), "provider key already exists")
	wrapped := fmt.Errorf("lifecycle: %w", base)
	if KindOf(wrapped) != KindConflict {
		t.Fatalf("expected conflict, got %q", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindConflict) {
		t.Fatalf("expected IsKind to match")
	}
	if Message(wrapped) != "provider key already exists" {
		t.Fatalf("unexpected message %q", Message(wrapped))
	}
	if !errors.Is(wrapped, errors.Unwrap(base)) {
		t.Fatalf("expected cause to be reachable")
	}
}

func TestMessageHidesUntypedErrors(t *testing.T) {
	if got := Message(errors.New("pq: password authentication failed")); got != "internal error" {
		t.Fatalf("expected internal error, got %q", got)
	}
	if got := Message(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty kind for untyped error")
	}
}

func TestNotifierFansOut(t *testing.T) {
	n := NewNotifier()
	var first, second []ChangeEvent
	n.Subscribe(func(_ context.Context, event ChangeEvent) { first = append(first, event) })
	n.Subscribe(func(_ context.Context, event ChangeEvent) { second = append(second, event) })
	n.Subscribe(nil)

	n.Publish(context.Background(), ChangeEvent{UserID: "alice", Scope: ScopeProviderKeys, Provider: ProviderXAI})
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both subscribers to receive one event, got %d and %d", len(first), len(second))
	}
	if first[0].Provider != ProviderXAI {
		t.Fatalf("unexpected event %+v", first[0])
	}

	var nilNotifier *Notifier
	nilNotifier.Publish(context.Background(), ChangeEvent{})
}
