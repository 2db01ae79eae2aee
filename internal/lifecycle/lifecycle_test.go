package lifecycle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRewriteHudsonWarBacksUpPrevious(t *testing.T) {
	dir := t.TempDir()
	warPath := filepath.Join(dir, "jenkins.war")
	if err := os.WriteFile(warPath, []byte("old core"), 0o644); err != nil {
		t.Fatal(err)
	}

	newWar := filepath.Join(dir, "new.war")
	if err := os.WriteFile(newWar, []byte("new core"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New(warPath)
	if err := m.RewriteHudsonWar(newWar); err != nil {
		t.Fatalf("RewriteHudsonWar: %v", err)
	}

	got, err := os.ReadFile(warPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new core" {
		t.Fatalf("core archive = %q, want %q", got, "new core")
	}

	bak, err := os.ReadFile(warPath + ".bak")
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if string(bak) != "old core" {
		t.Fatalf("backup = %q, want %q", bak, "old core")
	}
}

func TestRewriteHudsonWarWithNoExistingArchiveSkipsBackup(t *testing.T) {
	dir := t.TempDir()
	warPath := filepath.Join(dir, "jenkins.war")

	newWar := filepath.Join(dir, "new.war")
	if err := os.WriteFile(newWar, []byte("new core"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New(warPath)
	if err := m.RewriteHudsonWar(newWar); err != nil {
		t.Fatalf("RewriteHudsonWar: %v", err)
	}
	if _, err := os.Stat(warPath + ".bak"); !os.IsNotExist(err) {
		t.Fatal("expected no backup file when there was nothing to back up")
	}
}

func TestRestoreHudsonWarWithNoBackupFails(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "jenkins.war"))
	if err := m.RestoreHudsonWar(); err == nil {
		t.Fatal("expected an error restoring with no backup present")
	}
}

func TestCancelRestartWithoutPendingFails(t *testing.T) {
	m := New("")
	if err := m.CancelRestart(); err == nil {
		t.Fatal("expected an error canceling with nothing pending")
	}
}
