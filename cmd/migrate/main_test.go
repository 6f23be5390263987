package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run("sideways", options{dir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestCreateRequiresName(t *testing.T) {
	if err := run("create", options{dir: t.TempDir()}); err == nil {
		t.Fatalf("create without -name should fail")
	}
}

func TestCreateThenValidateWithoutDatabase(t *testing.T) {
	dir := t.TempDir()
	if err := run("create", options{dir: dir, name: "add coupon codes"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".sql" {
		t.Fatalf("expected one sql migration, got %v", entries)
	}
	if err := run("validate", options{dir: dir}); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestCommandNamesListsEveryCommand(t *testing.T) {
	names := commandNames()
	for _, want := range []string{"create", "down", "redo", "status", "up", "validate", "version"} {
		if !strings.Contains(names, want) {
			t.Fatalf("%q missing from %q", want, names)
		}
	}
}
