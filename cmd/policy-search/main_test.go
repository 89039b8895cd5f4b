package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestExecute_Version(t *testing.T) {
	err := Execute("1.0.0", "abc123", "policy-search", []string{"--version"})
	if err != nil {
		t.Errorf("Expected no error for --version, got: %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"regenerate", "--help"}, {"sync", "--help"}} {
		if err := Execute("1.0.0", "abc123", "policy-search", args); err != nil {
			t.Errorf("Expected no error for %v, got: %v", args, err)
		}
	}
}

func TestExecute_InvalidFlag(t *testing.T) {
	err := Execute("1.0.0", "abc123", "policy-search", []string{"--invalid-flag"})
	if err == nil {
		t.Error("Expected error for invalid flag")
	}
}

func TestExecute_InvalidTransport(t *testing.T) {
	err := Execute("1.0.0", "abc123", "policy-search", []string{"--transport", "invalid"})
	if err == nil {
		t.Fatal("Expected error for invalid transport")
	}
	if !strings.Contains(err.Error(), "transport") {
		t.Errorf("Expected error about transport, got: %v", err)
	}
}

func TestExecute_RegenerateRequiresFlags(t *testing.T) {
	err := Execute("1.0.0", "abc123", "policy-search", []string{"regenerate", "--tenant-alias", "acme"})
	if err == nil {
		t.Fatal("Expected error for missing required flags")
	}
	if !strings.Contains(err.Error(), "environment") {
		t.Errorf("Expected error naming the missing flag, got: %v", err)
	}
}

func TestExecute_SyncRequiresSource(t *testing.T) {
	err := Execute("1.0.0", "abc123", "policy-search", []string{
		"sync", "--index-base-dir", filepath.Join(t.TempDir(), "indexes"),
	})
	if err == nil || !strings.Contains(err.Error(), "source") {
		t.Errorf("Expected source database error, got: %v", err)
	}
}

func TestExecute_SyncAndRegenerate(t *testing.T) {
	dir := t.TempDir()
	common := []string{
		"--index-base-dir", filepath.Join(dir, "indexes"),
		"--source-path", filepath.Join(dir, "source.db"),
	}

	if err := Execute("1.0.0", "abc123", "policy-search", append([]string{"sync"}, common...)); err != nil {
		t.Fatalf("Sync over an empty source failed: %v", err)
	}

	err := Execute("1.0.0", "abc123", "policy-search", append([]string{
		"regenerate", "--tenant-alias", "acme", "--environment", "production", "--entity", "quote",
	}, common...))
	if err == nil || !strings.Contains(err.Error(), "tenant not found") {
		t.Errorf("Expected unknown tenant error, got: %v", err)
	}
}

func TestRunMain_Success(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	// --help should succeed
	runMain([]string{"policy-search", "--help"}, mockExit)

	if exitCode != -1 {
		t.Errorf("Expected no exit call for --help, got exit code: %d", exitCode)
	}
}

func TestRunMain_Failure(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	runMain([]string{"policy-search", "--invalid"}, mockExit)

	if exitCode != 1 {
		t.Errorf("Expected exit code 1 for invalid flag, got: %d", exitCode)
	}
}
