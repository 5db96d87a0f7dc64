// ABOUTME: Tests for CLI command execution and wiring.
// ABOUTME: Runs commands against a temp data directory.
package main

import (
	"bytes"
	"strings"
	"testing"
)

// execute runs the root command with args, capturing cobra output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func setTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")
}

func TestRunsCommandEmpty(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "runs", "somebody")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "No ingestion runs yet") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestIngestCommandRejectsMissingArchive(t *testing.T) {
	setTestEnv(t)

	_, err := execute(t, "ingest", "somebody", "/does/not/exist.zip")
	if err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestSyncCommandRequiresConnect(t *testing.T) {
	setTestEnv(t)

	_, err := execute(t, "sync", "somebody")
	if err == nil || !strings.Contains(err.Error(), "not linked") {
		t.Errorf("expected not-linked error, got %v", err)
	}
}

func TestExportCommandEmptyUser(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "export", "somebody", "--format", "json")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, `"user_id": "somebody"`) {
		t.Errorf("export output missing user: %q", out)
	}
}

func TestExportCommandUnknownFormat(t *testing.T) {
	setTestEnv(t)

	_, err := execute(t, "export", "somebody", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown export format") {
		t.Errorf("expected format error, got %v", err)
	}
}
