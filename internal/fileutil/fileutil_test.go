package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "workflow.json")

	if err := os.WriteFile(dst, []byte("old contents"), 0o644); err != nil {
		t.Fatal(err)
	}
	content := []byte(`{"steps":[]}`)
	if err := WriteAtomic(dst, content, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode mismatch: got %o, want 600", info.Mode().Perm())
	}
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteAtomic(filepath.Join(dir, "a.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestWriteAtomicMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	err := WriteAtomic(filepath.Join(dir, "nope", "a.json"), []byte("{}"), 0o644)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestVerifyDetectsMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := verify(path, []byte("abc")); err != nil {
		t.Fatalf("verify matching content: %v", err)
	}
	if err := verify(path, []byte("abcd")); err == nil {
		t.Fatal("expected size mismatch")
	}
	if err := verify(path, []byte("abd")); err == nil {
		t.Fatal("expected hash mismatch")
	}
}
