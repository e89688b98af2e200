package main

import (
	"bytes"
	"testing"
)

func TestValidatePort(t *testing.T) {
	if err := validatePort(8080); err != nil {
		t.Fatalf("expected valid port, got %v", err)
	}
	for _, port := range []int{-1, 0, 65536} {
		if err := validatePort(port); err == nil {
			t.Fatalf("expected error for port %d", port)
		}
	}
}

func TestImportRequiresFlags(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"import", "--user", "alice"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected missing flag error")
	}
}

func TestServeRejectsBadPort(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"serve", "--port", "70000"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected invalid port error")
	}
}
