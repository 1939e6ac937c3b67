package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/magent-cryptograss/magenta/testutil"
)

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	return rootCmd.Execute()
}

func TestImportCommand(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	dbPath := filepath.Join(dir, "archive.db")

	session := testutil.WriteSessionFile(t, dir, "session.jsonl", []string{
		testutil.UserLine("00000000-0000-0000-0000-00000000000a", "", "hello"),
		testutil.AssistantTextLine("00000000-0000-0000-0000-00000000000b", "00000000-0000-0000-0000-00000000000a", "hi there"),
	})

	if err := runCommand(t, "--db", dbPath, "import", "--era", "exercise", session); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	// Re-importing the same file must be a no-op, not an error.
	if err := runCommand(t, "--db", dbPath, "import", "--era", "exercise", session); err != nil {
		t.Fatalf("second import failed: %v", err)
	}

	if err := runCommand(t, "--db", dbPath, "eras"); err != nil {
		t.Fatalf("eras failed after import: %v", err)
	}
	if err := runCommand(t, "--db", dbPath, "list", "--era", "exercise"); err != nil {
		t.Fatalf("list failed after import: %v", err)
	}
	if err := runCommand(t, "--db", dbPath, "orphans"); err != nil {
		t.Fatalf("orphans failed after import: %v", err)
	}
}

func TestImportCommand_DryRun(t *testing.T) {
	dir := testutil.CreateTempDir(t)

	session := testutil.WriteSessionFile(t, dir, "session.jsonl", []string{
		testutil.UserLine("00000000-0000-0000-0000-00000000001a", "", "dry run input"),
	})

	if err := runCommand(t, "import", "--dry-run", "--era", "scratch", session); err != nil {
		t.Fatalf("dry-run import failed: %v", err)
	}
}

func TestImportCommand_MissingPath(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	dbPath := filepath.Join(dir, "archive.db")

	if err := runCommand(t, "--db", dbPath, "import", filepath.Join(dir, "nope.jsonl")); err == nil {
		t.Error("import of missing path should fail")
	}
}
